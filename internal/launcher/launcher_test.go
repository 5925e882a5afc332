package launcher

import (
	"bufio"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformTagMapsKnownArches(t *testing.T) {
	assert.Equal(t, "x86_64-linux", platformTagFor("amd64", "linux"))
	assert.Equal(t, "aarch64-windows", platformTagFor("arm64", "windows"))
	assert.Equal(t, "x86-linux", platformTagFor("386", "linux"))
}

func TestBannerRoundTrip(t *testing.T) {
	line := bannerLine(ProtocolVersion, "x86_64-linux")
	b, err := parseBanner(line)
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, b.Version)
	assert.Equal(t, "x86_64-linux", b.Platform)
}

func TestParseBannerRejectsMalformedLine(t *testing.T) {
	_, err := parseBanner("not a banner\n")
	assert.Error(t, err)
}

func TestUnameToPlatformTag(t *testing.T) {
	assert.Equal(t, "x86_64-linux", unameToPlatformTag("x86_64", "Linux"))
	assert.Equal(t, "aarch64-darwin", unameToPlatformTag("arm64", "Darwin"))
}

// pipeSession is a fake shellSession backed by in-memory pipes, used to
// drive the boss-side handshake/deploy code against a real
// RunDoerMode instance without any actual network or ssh process. Like
// exec.Cmd, its pipes exist before Start so callers can take them
// first.
type pipeSession struct {
	toRemote     *io.PipeWriter
	fromRemote   *io.PipeReader
	remoteStdin  *io.PipeReader
	remoteStdout *flushWriter
	started      bool
	startCmd     func(cmd string, stdin io.Reader, stdout io.Writer)
	done         chan struct{}
}

type flushWriter struct{ w io.Writer }

func (f *flushWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *flushWriter) Flush()                      {}

func newPipeSession(onStart func(cmd string, stdin io.Reader, stdout io.Writer)) *pipeSession {
	toRemoteR, toRemoteW := io.Pipe()
	fromRemoteR, fromRemoteW := io.Pipe()
	return &pipeSession{
		toRemote:     toRemoteW,
		fromRemote:   fromRemoteR,
		remoteStdin:  toRemoteR,
		remoteStdout: &flushWriter{w: fromRemoteW},
		startCmd:     onStart,
		done:         make(chan struct{}),
	}
}

func (s *pipeSession) Start(cmd string) error {
	go func() {
		defer close(s.done)
		s.startCmd(cmd, s.remoteStdin, s.remoteStdout)
	}()
	s.started = true
	return nil
}

func (s *pipeSession) StdinPipe() (io.WriteCloser, error)  { return s.toRemote, nil }
func (s *pipeSession) StdoutPipe() (io.Reader, error)      { return s.fromRemote, nil }
func (s *pipeSession) SetStderr(w io.Writer)               {}
func (s *pipeSession) Wait() error                         { <-s.done; return nil }
func (s *pipeSession) Close() error {
	if s.toRemote != nil {
		_ = s.toRemote.Close()
	}
	return nil
}

type pipeShellClient struct {
	onStart func(cmd string, stdin io.Reader, stdout io.Writer)
	host    string
}

func (c *pipeShellClient) NewSession() (shellSession, error) {
	return newPipeSession(c.onStart), nil
}
func (c *pipeShellClient) Close() error { return nil }

// TestLaunchOverClientCompletesHandshakeAndDialsTCP drives the full
// boss-side flow against a real RunDoerMode goroutine, verifying the
// banner exchange, key/port negotiation and resulting TCP comms link
// all work together without any actual ssh process.
func TestLaunchOverClientCompletesHandshakeAndDialsTCP(t *testing.T) {
	client := &pipeShellClient{host: "127.0.0.1"}
	client.onStart = func(cmd string, stdin io.Reader, stdout io.Writer) {
		_ = RunDoerMode(stdin, stdout, 0)
	}

	remote, err := launchOverClient(client, Options{
		Host:             "127.0.0.1",
		HandshakeTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer remote.Close()

	assert.NotNil(t, remote.Link)
}

func TestReadListeningPortParsesLine(t *testing.T) {
	buf := bytes.NewBufferString("LISTENING 4821\n")
	port, err := readListeningPort(bufio.NewReader(buf), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4821, port)
}
