// Package launcher implements the remote-endpoint spawn, handshake and
// deploy machinery of spec section 4.4: spawning a shell transport to a
// remote host, detecting or deploying a compatible doer binary, and
// negotiating the AEAD-encrypted TCP channel that the sync engine then
// drives through internal/comms.
package launcher

import "io"

// shellSession is one spawned remote command, modeled on rclone's
// sshSession interface (backend/sftp/ssh_external.go,
// backend/sftp/ssh_internal.go) so the same handshake code works over
// either the external ssh binary or the internal x/crypto/ssh client.
type shellSession interface {
	Start(cmd string) error
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.Reader, error)
	SetStderr(w io.Writer)
	Wait() error
	Close() error
}

// shellClient is one connection to a remote host, capable of opening
// any number of sequential sessions (one for the handshake/doer
// command, another for a stdin-copy deploy if needed).
type shellClient interface {
	NewSession() (shellSession, error)
	Close() error
}
