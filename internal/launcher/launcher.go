package launcher

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/crypto"
	"github.com/rjrssync/rjrssync/internal/pacer"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/rjrssync/rjrssync/internal/rlog"
)

// PromptFunc asks the user for permission to deploy a binary to the
// remote host, per spec section 4.4 point 3. It blocks on terminal
// input; the engine-level prompt serialization rule (spec section 4.3
// step 7) applies equally here.
type PromptFunc func(question string) bool

// Strategy selects how the launcher spawns the remote shell.
type Strategy int

const (
	// StrategyExternal shells out to the system "ssh" binary (the
	// default: inherits the user's own ssh config, agent and
	// known_hosts verification).
	StrategyExternal Strategy = iota
	// StrategyInternal dials out with golang.org/x/crypto/ssh directly.
	StrategyInternal
)

// Options configures a single remote launch.
type Options struct {
	Strategy Strategy

	// Host is the remote hostname or address the TCP comms channel
	// connects to once the handshake reports a listening port. It must
	// be reachable directly (not just via the shell's own routing),
	// matching spec section 4.4 point 5.
	Host string

	// External strategy fields.
	SSHCommand []string // full argv, e.g. []string{"ssh", "-p", "2222", "user@host"}

	// Internal strategy fields.
	Internal InternalSSHOptions

	RemotePath       string // doer binary path on the remote host; default "rjrssync"
	RemotePort       int    // 0 = let the remote doer pick
	ForceRedeploy    bool
	HandshakeTimeout time.Duration
	Deployer         Deployer
	Prompt           PromptFunc
}

func (o Options) remotePath() string {
	if o.RemotePath == "" {
		return "rjrssync"
	}
	return o.RemotePath
}

func (o Options) handshakeTimeout() time.Duration {
	if o.HandshakeTimeout == 0 {
		return defaultHandshakeTimeout
	}
	return o.HandshakeTimeout
}

// Remote is a live launched endpoint: the boss-side command/response
// link plus everything needed to tear the remote side down cleanly.
type Remote struct {
	Link *comms.BossLink

	shellClient  shellClient
	shellSession shellSession
	conn         net.Conn
}

// Close closes the TCP comms link, then the shell session and client.
// Closing the shell is what makes the remote stdin reach EOF so the
// shell transport itself ends (spec section 4.4 point 6); the TCP
// comms link is closed first so the doer sees a clean transport
// teardown rather than a plain shell hangup mid-frame.
func (r *Remote) Close() error {
	var firstErr error
	if err := r.Link.Close(); err != nil {
		firstErr = err
	}
	if r.shellSession != nil {
		_ = r.shellSession.Close()
	}
	if r.shellClient != nil {
		if err := r.shellClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Launch spawns the remote shell, performs the handshake (deploying a
// lite binary if needed), negotiates the AEAD TCP channel and returns
// a ready-to-use Remote. It implements spec section 4.4 in full.
func Launch(opts Options) (*Remote, error) {
	client, err := newShellClientFor(opts)
	if err != nil {
		return nil, rerr.New(rerr.Launch, err)
	}

	remote, err := launchOverClient(client, opts)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return remote, nil
}

func newShellClientFor(opts Options) (shellClient, error) {
	switch opts.Strategy {
	case StrategyInternal:
		return newShellClientInternal(opts.Internal)
	default:
		if len(opts.SSHCommand) == 0 {
			return nil, fmt.Errorf("launcher: external strategy requires SSHCommand")
		}
		return newShellClientExternal(opts.SSHCommand), nil
	}
}

func launchOverClient(client shellClient, opts Options) (*Remote, error) {
	deadline := opts.handshakeTimeout()
	remotePath := opts.remotePath()

	b, session, stdoutReader, err := attemptHandshake(client, remotePath, deadline)
	if err != nil || opts.ForceRedeploy {
		if opts.Prompt == nil {
			return nil, rerr.New(rerr.Launch, fmt.Errorf("launcher: handshake failed and no deploy prompt configured: %w", err))
		}
		if session != nil {
			_ = session.Close()
		}
		deployedPath, derr := deployFlow(client, opts, err)
		if derr != nil {
			return nil, rerr.New(rerr.Launch, derr)
		}
		remotePath = deployedPath
		b, session, stdoutReader, err = attemptHandshake(client, remotePath, deadline)
		if err != nil {
			return nil, rerr.New(rerr.Launch, fmt.Errorf("launcher: handshake failed after deploy: %w", err))
		}
	}

	if b.Version != ProtocolVersion {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, fmt.Errorf("launcher: protocol version mismatch: local %d, remote %d", ProtocolVersion, b.Version))
	}

	key, err := crypto.NewKey()
	if err != nil {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, err)
	}
	if _, err := fmt.Fprintf(stdin, "KEY %x PORT %d\n", key, opts.RemotePort); err != nil {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, fmt.Errorf("launcher: send key/port: %w", err))
	}

	port, err := readListeningPort(stdoutReader, deadline)
	if err != nil {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, err)
	}

	conn, err := dialRemote(opts.Host, port, deadline)
	if err != nil {
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, err)
	}

	link, err := comms.NewTCPBossLink(conn, key)
	if err != nil {
		_ = conn.Close()
		_ = session.Close()
		return nil, rerr.New(rerr.Launch, err)
	}

	rlog.Infof("launcher", "remote doer ready on port %d (platform %s)", port, b.Platform)
	return &Remote{Link: link, shellClient: client, shellSession: session, conn: conn}, nil
}

// attemptHandshake starts the remote doer command and reads its
// banner. A returned session is non-nil even on a parse failure, so
// the caller can decide whether to retry on the same connection or
// tear it down before deploying. The returned *bufio.Reader wraps the
// session's stdout and MUST be reused for any further reads on that
// session (the key/port exchange's "LISTENING" line): wrapping stdout
// in a fresh bufio.Reader later could silently drop bytes the first
// Reader already buffered past the banner line.
func attemptHandshake(client shellClient, remotePath string, timeout time.Duration) (banner, shellSession, *bufio.Reader, error) {
	session, err := client.NewSession()
	if err != nil {
		return banner{}, nil, nil, fmt.Errorf("launcher: new session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return banner{}, session, nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return banner{}, session, nil, err
	}
	r := bufio.NewReader(stdout)

	if err := session.Start(remotePath + " --doer"); err != nil {
		return banner{}, session, r, err
	}
	if _, err := stdin.Write([]byte(handshakeLine())); err != nil {
		return banner{}, session, r, fmt.Errorf("launcher: write handshake line: %w", err)
	}

	line, err := readLineWithDeadline(r, timeout)
	if err != nil {
		return banner{}, session, r, err
	}
	b, err := parseBanner(line)
	if err != nil {
		return banner{}, session, r, err
	}
	return b, session, r, nil
}

// deployFlow asks for permission, determines the remote platform
// (probing if the handshake never got far enough to report one),
// extracts the matching lite binary and stdin-copies it over.
func deployFlow(client shellClient, opts Options, handshakeErr error) (string, error) {
	question := fmt.Sprintf("doer binary not found or incompatible on remote host (%v); deploy it now?", handshakeErr)
	if !opts.Prompt(question) {
		return "", fmt.Errorf("launcher: deploy declined by user")
	}
	if opts.Deployer == nil {
		return "", fmt.Errorf("launcher: no deployer configured, cannot extract embedded binary")
	}
	platformTag, err := probeRemotePlatform(client)
	if err != nil {
		return "", fmt.Errorf("launcher: probe remote platform: %w", err)
	}
	binary, err := opts.Deployer.ExtractLiteBinary(platformTag)
	if err != nil {
		return "", fmt.Errorf("launcher: extract lite binary for %s: %w", platformTag, err)
	}
	return deployBinary(client, binary)
}

func readListeningPort(r *bufio.Reader, timeout time.Duration) (int, error) {
	line, err := readLineWithDeadline(r, timeout)
	if err != nil {
		return 0, fmt.Errorf("launcher: read listening port: %w", err)
	}
	var port int
	if _, err := fmt.Sscanf(line, "LISTENING %d", &port); err != nil {
		return 0, fmt.Errorf("launcher: malformed listening line %q: %w", line, err)
	}
	return port, nil
}

// dialRemote connects to the remote doer's TCP listener, retrying
// through internal/pacer's exponential backoff since the remote bind
// and the boss's connect attempt race (the doer has just started
// listening when its "LISTENING" line was printed, but the listener
// may not have completed registration on some platforms yet).
func dialRemote(host string, port int, timeout time.Duration) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	var conn net.Conn
	p := pacer.New(pacer.RetriesOption(5))
	err := p.Call(func() (bool, error) {
		c, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return true, err
		}
		conn = c
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("launcher: connect to remote doer at %s: %w", addr, err)
	}
	return conn, nil
}
