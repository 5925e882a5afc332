package launcher

import (
	"fmt"
	"io"
	"os"
	"time"

	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"
)

// shellClientInternal dials out with golang.org/x/crypto/ssh directly
// instead of shelling out to the system ssh binary, grounded on
// rclone's backend/sftp/ssh_internal.go sshClientInternal. Used when
// the caller asks for the "internal" transport strategy (no system ssh
// binary required, but the user must have a running ssh-agent or a
// key file configured).
type shellClientInternal struct {
	client *ssh.Client
}

// InternalSSHOptions configures the internal transport.
type InternalSSHOptions struct {
	User        string
	Host        string
	Port        int
	KeyFile     string // PEM private key path; empty means use ssh-agent
	DialTimeout time.Duration
}

func newShellClientInternal(opt InternalSSHOptions) (*shellClientInternal, error) {
	auth, err := internalAuthMethods(opt.KeyFile)
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ClientConfig{
		User:            opt.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         opt.DialTimeout,
		ClientVersion:   "SSH-2.0-rjrssync",
	}
	port := opt.Port
	if port == 0 {
		port = 22
	}
	addr := fmt.Sprintf("%s:%d", opt.Host, port)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("launcher: ssh internal: dial %s: %w", addr, err)
	}
	return &shellClientInternal{client: client}, nil
}

// internalAuthMethods prefers a key file when given, and otherwise
// asks a running ssh-agent for every signer it holds, mirroring
// backend/sftp's "no password or key file specified" fallback.
func internalAuthMethods(keyFile string) ([]ssh.AuthMethod, error) {
	if keyFile != "" {
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("launcher: read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("launcher: parse key file: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	agentClient, _, err := sshagent.New()
	if err != nil {
		return nil, fmt.Errorf("launcher: couldn't connect to ssh-agent: %w", err)
	}
	signers, err := agentClient.Signers()
	if err != nil {
		return nil, fmt.Errorf("launcher: couldn't read ssh-agent signers: %w", err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
}

func (c *shellClientInternal) NewSession() (shellSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("launcher: ssh internal: new session: %w", err)
	}
	return &shellSessionInternal{session: session}, nil
}

func (c *shellClientInternal) Close() error { return c.client.Close() }

type shellSessionInternal struct {
	session *ssh.Session
}

func (s *shellSessionInternal) Start(cmd string) error {
	if err := s.session.Start(cmd); err != nil {
		return fmt.Errorf("launcher: ssh internal: start: %w", err)
	}
	return nil
}

func (s *shellSessionInternal) StdinPipe() (io.WriteCloser, error) {
	p, err := s.session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: ssh internal: stdin pipe: %w", err)
	}
	return p, nil
}

func (s *shellSessionInternal) StdoutPipe() (io.Reader, error) {
	p, err := s.session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: ssh internal: stdout pipe: %w", err)
	}
	return p, nil
}

func (s *shellSessionInternal) SetStderr(w io.Writer) { s.session.Stderr = w }

func (s *shellSessionInternal) Wait() error { return s.session.Wait() }

func (s *shellSessionInternal) Close() error { return s.session.Close() }
