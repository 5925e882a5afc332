package comms

import (
	"io"
	"sync"
)

// chanConn is a full-duplex, channel-backed connection used for the
// in-process transport: "typed channels" per spec section 4.1, framed
// the same as the TCP path but skipping encryption entirely.
type chanConn struct {
	readCh  <-chan []byte
	writeCh chan<- []byte
	pending []byte
	closeCh chan struct{}
	once    *sync.Once
}

// newChanPipe returns two ends of an in-process duplex pipe: writes on
// one end arrive as reads on the other.
func newChanPipe(bufSize int) (a, b *chanConn) {
	ab := make(chan []byte, bufSize)
	ba := make(chan []byte, bufSize)
	closeCh := make(chan struct{})
	once := &sync.Once{}
	a = &chanConn{readCh: ba, writeCh: ab, closeCh: closeCh, once: once}
	b = &chanConn{readCh: ab, writeCh: ba, closeCh: closeCh, once: once}
	return a, b
}

func (c *chanConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		select {
		case b, ok := <-c.readCh:
			if !ok {
				return 0, io.EOF
			}
			c.pending = b
		case <-c.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *chanConn) Write(p []byte) (int, error) {
	b := append([]byte(nil), p...)
	select {
	case c.writeCh <- b:
		return len(p), nil
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	}
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.closeCh) })
	return nil
}
