package comms

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/rjrssync/rjrssync/internal/crypto"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/rjrssync/rjrssync/internal/rlog"
)

// DefaultChannelMemoryCapacity is BOSS_DOER_CHANNEL_MEMORY_CAPACITY
// from spec section 4.1: the default ceiling on queued-but-unwritten
// outbound bytes in one direction.
const DefaultChannelMemoryCapacity = 256 * 1024 * 1024

// rawConn is the minimal interface both net.Conn and chanConn satisfy.
type rawConn interface {
	io.Reader
	io.Writer
	Close() error
}

// transport runs the two dedicated I/O threads described in spec
// section 4.1/section 5: a receiver goroutine that decrypts and
// decodes frames into an inbound queue, and a sender goroutine that
// encrypts and writes from an outbound queue gated by credit. The
// owning worker (boss or doer main loop) only ever touches the queues,
// so it is never blocked on the socket itself.
type transport struct {
	conn    rawConn
	session *crypto.Session // nil for in-process: plaintext framing

	credit *creditGate

	outCh chan []byte // plaintext payloads awaiting send
	inCh  chan []byte // plaintext payloads received

	errOnce sync.Once
	errCh   chan error

	closeOnce sync.Once
	doneCh    chan struct{}
}

func newTransport(conn rawConn, session *crypto.Session, creditCapacity int64) *transport {
	t := &transport{
		conn:    conn,
		session: session,
		credit:  newCreditGate(creditCapacity),
		outCh:   make(chan []byte, 64),
		inCh:    make(chan []byte, 64),
		errCh:   make(chan error, 1),
		doneCh:  make(chan struct{}),
	}
	go t.senderLoop()
	go t.receiverLoop()
	return t
}

// Enqueue blocks under the byte-credit gate, then hands plaintext off
// to the sender goroutine. Returns a Transport error if the transport
// has already failed or been closed.
func (t *transport) Enqueue(plaintext []byte) error {
	if t.credit.Acquire(int64(len(plaintext))) {
		return rerr.New(rerr.Transport, fmt.Errorf("transport closed"))
	}
	select {
	case t.outCh <- plaintext:
		return nil
	case <-t.doneCh:
		return rerr.New(rerr.Transport, fmt.Errorf("transport closed"))
	}
}

// Dequeue blocks until a decoded inbound payload is available, the
// transport fails, or it is closed.
func (t *transport) Dequeue() ([]byte, error) {
	select {
	case b, ok := <-t.inCh:
		if !ok {
			return nil, t.waitErr()
		}
		return b, nil
	case err := <-t.errCh:
		t.errCh <- err // let other readers see it too
		return nil, err
	case <-t.doneCh:
		return nil, rerr.New(rerr.Transport, fmt.Errorf("transport closed"))
	}
}

func (t *transport) waitErr() error {
	select {
	case err := <-t.errCh:
		t.errCh <- err
		return err
	default:
		return rerr.New(rerr.Transport, fmt.Errorf("transport closed"))
	}
}

func (t *transport) fail(err error) {
	wrapped := rerr.New(rerr.Transport, err)
	t.errOnce.Do(func() {
		t.errCh <- wrapped
		close(t.inCh)
	})
	t.Close()
}

// Close tears down the transport; idempotent.
func (t *transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.doneCh)
		t.credit.Close()
	})
	return t.conn.Close()
}

func (t *transport) senderLoop() {
	for {
		select {
		case plaintext := <-t.outCh:
			if err := t.writeFrame(plaintext); err != nil {
				rlog.Errorf("transport", "write frame: %v", err)
				t.fail(err)
				return
			}
			t.credit.Release(int64(len(plaintext)))
		case <-t.doneCh:
			return
		}
	}
}

func (t *transport) writeFrame(plaintext []byte) error {
	payload := plaintext
	if t.session != nil {
		sealed, ok := t.session.Seal(plaintext)
		if !ok {
			return fmt.Errorf("nonce space exhausted on send")
		}
		payload = sealed
	}
	if len(payload) > protocol.MaxFrameBytes {
		return fmt.Errorf("frame of %d bytes exceeds ceiling %d", len(payload), protocol.MaxFrameBytes)
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := t.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := t.conn.Write(payload); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

func (t *transport) receiverLoop() {
	for {
		plaintext, err := t.readFrame()
		if err != nil {
			if err != io.EOF {
				rlog.Errorf("transport", "read frame: %v", err)
			}
			t.fail(err)
			return
		}
		select {
		case t.inCh <- plaintext:
		case <-t.doneCh:
			return
		}
	}
}

func (t *transport) readFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(t.conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > protocol.MaxFrameBytes {
		return nil, fmt.Errorf("frame length %d exceeds ceiling %d", n, protocol.MaxFrameBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(t.conn, payload); err != nil {
		return nil, err
	}
	if t.session == nil {
		return payload, nil
	}
	plaintext, ok, err := t.session.Open(payload)
	if !ok {
		return nil, fmt.Errorf("nonce space exhausted on receive")
	}
	if err != nil {
		return nil, fmt.Errorf("decrypt frame: %w", err)
	}
	return plaintext, nil
}
