// Package comms implements the duplex Command/Response bus between
// boss and doer: framing, AEAD encryption, and the two transports
// (in-process and TCP) described in spec section 4.1.
package comms

import (
	"net"

	"github.com/rjrssync/rjrssync/internal/crypto"
	"github.com/rjrssync/rjrssync/internal/protocol"
)

// BossLink is the boss-side duplex: it sends Commands and receives
// Responses.
type BossLink struct {
	t *transport
}

// Send issues a Command to the doer.
func (b *BossLink) Send(c protocol.Command) error {
	w := protocol.NewWriter()
	c.Encode(w)
	return b.t.Enqueue(w.Bytes())
}

// Recv blocks for the next Response (which may be an intermediate
// streaming response such as a file chunk or entry listing).
func (b *BossLink) Recv() (protocol.Response, error) {
	plaintext, err := b.t.Dequeue()
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.DecodeResponse(protocol.NewReader(plaintext))
}

// Close tears down the underlying transport.
func (b *BossLink) Close() error { return b.t.Close() }

// DoerLink is the doer-side duplex: it receives Commands and sends
// Responses.
type DoerLink struct {
	t *transport
}

// Recv blocks for the next Command. Closing the transport (EOF on the
// underlying conn, or an explicit Close) is how the doer is told to
// exit, mirroring spec section 3's lifecycle note that the doer
// observes EOF on its input and exits.
func (d *DoerLink) Recv() (protocol.Command, error) {
	plaintext, err := d.t.Dequeue()
	if err != nil {
		return protocol.Command{}, err
	}
	return protocol.DecodeCommand(protocol.NewReader(plaintext))
}

// Send issues a Response (terminal or streaming) back to the boss.
func (d *DoerLink) Send(r protocol.Response) error {
	w := protocol.NewWriter()
	r.Encode(w)
	return d.t.Enqueue(w.Bytes())
}

// Close tears down the underlying transport.
func (d *DoerLink) Close() error { return d.t.Close() }

// NewInProcessPair returns a connected (BossLink, DoerLink) pair
// backed by the channel transport: framed, unencrypted, used when a
// sync endpoint is local to the boss process.
func NewInProcessPair() (*BossLink, *DoerLink) {
	a, b := newChanPipe(64)
	bossT := newTransport(a, nil, DefaultChannelMemoryCapacity)
	doerT := newTransport(b, nil, DefaultChannelMemoryCapacity)
	return &BossLink{t: bossT}, &DoerLink{t: doerT}
}

// NewTCPBossLink wraps an established, pre-authenticated TCP
// connection as the boss side of an encrypted session.
func NewTCPBossLink(conn net.Conn, key [crypto.KeySize]byte) (*BossLink, error) {
	session, err := crypto.NewSession(key)
	if err != nil {
		return nil, err
	}
	return &BossLink{t: newTransport(conn, session, DefaultChannelMemoryCapacity)}, nil
}

// NewTCPDoerLink wraps an established, pre-authenticated TCP
// connection as the doer side of an encrypted session.
func NewTCPDoerLink(conn net.Conn, key [crypto.KeySize]byte) (*DoerLink, error) {
	session, err := crypto.NewSession(key)
	if err != nil {
		return nil, err
	}
	return &DoerLink{t: newTransport(conn, session, DefaultChannelMemoryCapacity)}, nil
}
