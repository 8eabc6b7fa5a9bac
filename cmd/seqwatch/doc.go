// Package main hosts the seqwatch CLI entrypoint and command graph.
//
// Commands run a single poll, host the daemon loop in the foreground or the
// background, tail its log, inspect watched roots and the run registry
// offline, and browse the event journal. The registry write operations are
// exposed for manual repair. Configuration is resolved lazily so commands
// such as `config init` work before a config file exists.
package main
