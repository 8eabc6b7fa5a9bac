// Package daemon runs the sensor on a schedule inside the long-lived seqwatch
// process.
//
// A single goroutine owns polling: the interval timer and filesystem nudges
// only wake it, so two polls never overlap. The daemon holds a flock on the
// state directory to keep a second instance from reconciling the same roots,
// prunes the event journal once per day, and publishes a poll_failed alert
// when a poll fails after a healthy one.
//
// Process concerns such as log files, pid files and signal handling belong in
// daemonrun; this package only coordinates the loop and its status.
package daemon
