// Package logs reads the daemon's log files for `seqwatch logs`.
//
// Last reads the final N lines of a file with bounded memory and returns the
// byte offset it stopped at. Follow polls from that offset and hands each new
// line to a callback, starting over from the top when the file shrinks or the
// seqwatch.log pointer is moved to a fresh per-run log.
package logs
