package launcher

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/crypto"
	"github.com/rjrssync/rjrssync/internal/doer"
	"github.com/rjrssync/rjrssync/internal/rlog"
)

// AcceptDeadline bounds how long a freshly spawned doer waits for the
// boss to connect its TCP channel before self-terminating (spec
// section 4.4 point 6: "this guards against firewall orphans").
const AcceptDeadline = 30 * time.Second

// RunDoerMode implements the remote side of the handshake and comms
// setup described in spec section 4.4: it is what "rjrssync --doer"
// runs when exec'd by the launcher over the shell transport. stdin and
// stdout here are the process's own standard streams, piped from the
// boss's shell session.
func RunDoerMode(stdin io.Reader, stdout io.Writer, requestedPort int) error {
	r := bufio.NewReader(stdin)
	if err := readHello(r); err != nil {
		return fmt.Errorf("launcher: doer: read hello: %w", err)
	}

	if _, err := fmt.Fprint(stdout, bannerLine(ProtocolVersion, PlatformTag())); err != nil {
		return fmt.Errorf("launcher: doer: write banner: %w", err)
	}
	if f, ok := stdout.(flusher); ok {
		f.Flush()
	}

	key, port, err := readKeyAndPort(r)
	if err != nil {
		return fmt.Errorf("launcher: doer: read key/port: %w", err)
	}
	if requestedPort != 0 {
		port = requestedPort
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("launcher: doer: listen: %w", err)
	}
	defer listener.Close()

	boundPort := listener.Addr().(*net.TCPAddr).Port
	if _, err := fmt.Fprintf(stdout, "LISTENING %d\n", boundPort); err != nil {
		return fmt.Errorf("launcher: doer: write listening line: %w", err)
	}
	if f, ok := stdout.(flusher); ok {
		f.Flush()
	}

	conn, err := acceptWithDeadline(listener, AcceptDeadline)
	if err != nil {
		return fmt.Errorf("launcher: doer: accept: %w", err)
	}

	link, err := comms.NewTCPDoerLink(conn, key)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("launcher: doer: wrap tcp link: %w", err)
	}

	rlog.Infof("doer", "boss connected from %s", conn.RemoteAddr())
	return doer.New("remote").Serve(link)
}

type flusher interface{ Flush() }

func readHello(r *bufio.Reader) error {
	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	var version int
	if _, err := fmt.Sscanf(line, "HELLO VERSION %d", &version); err != nil {
		return fmt.Errorf("malformed hello line %q: %w", line, err)
	}
	return nil
}

func readKeyAndPort(r *bufio.Reader) (key [crypto.KeySize]byte, port int, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return key, 0, err
	}
	var hexKey string
	if _, err := fmt.Sscanf(line, "KEY %s PORT %d", &hexKey, &port); err != nil {
		return key, 0, fmt.Errorf("malformed key/port line %q: %w", line, err)
	}
	if len(hexKey) != crypto.KeySize*2 {
		return key, 0, fmt.Errorf("key has wrong length: %d hex chars", len(hexKey))
	}
	decoded, err := hex.DecodeString(hexKey)
	if err != nil {
		return key, 0, fmt.Errorf("malformed key hex: %w", err)
	}
	copy(key[:], decoded)
	return key, port, nil
}

// acceptWithDeadline accepts one connection, self-terminating the
// listener if nothing connects within timeout.
func acceptWithDeadline(listener net.Listener, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		ch <- result{conn, err}
	}()
	select {
	case res := <-ch:
		return res.conn, res.err
	case <-time.After(timeout):
		_ = listener.Close()
		return nil, fmt.Errorf("no connection accepted within %s, self-terminating", timeout)
	}
}

// StdStreams is a convenience for cmd/rjrssync's --doer subcommand.
func StdStreams() (io.Reader, io.Writer) { return os.Stdin, os.Stdout }
