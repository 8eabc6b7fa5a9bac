// Package daemonctl starts and stops a background seqwatch daemon through the
// pid file it records in the state directory.
package daemonctl
