package main

import (
	"github.com/rjrssync/rjrssync/internal/launcher"
)

// runDoerMode is invoked when the root command is given --doer, the
// exact invocation the launcher execs on the remote end of a shell
// session (spec section 4.4). It speaks the handshake protocol over
// its own stdin/stdout and never prints anything else to them.
func runDoerMode(port int) error {
	stdin, stdout := launcher.StdStreams()
	return launcher.RunDoerMode(stdin, stdout, port)
}
