package launcher

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rjrssync/rjrssync/internal/platformtag"
	"github.com/rjrssync/rjrssync/internal/rlog"
)

// Deployer extracts a cross-compiled lite binary for a given platform
// tag out of the running big binary, per spec section 4.4's embedding
// format. internal/embed provides the concrete implementation; it is
// abstracted here so the launcher package doesn't need to know the
// on-disk section layout.
type Deployer interface {
	ExtractLiteBinary(platformTag string) ([]byte, error)
}

// remoteTempPath picks a collision-resistant temp path for a deployed
// binary, grounded on rclone's general preference (seen across its
// backends) for uuid-suffixed temp names over PID-based ones, which
// collide across container restarts.
func remoteTempPath() string {
	return "/tmp/rjrssync-" + uuid.NewString()
}

// deployBinary stdin-copies binary to remoteTempPath on the remote
// host over a fresh shell session and makes it executable. This is
// the "stdin-copy" path named in spec section 4.4 point 3; the
// alternative ("scp") is left to the external-ssh user's own scp
// binary and is not separately implemented, since stdin-copy works
// identically over both shell strategies.
func deployBinary(client shellClient, binary []byte) (remotePath string, err error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("launcher: deploy: new session: %w", err)
	}
	defer session.Close()

	remotePath = remoteTempPath()
	stdin, err := session.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("launcher: deploy: stdin pipe: %w", err)
	}
	cmd := fmt.Sprintf("cat > %s && chmod +x %s", remotePath, remotePath)
	if err := session.Start(cmd); err != nil {
		return "", fmt.Errorf("launcher: deploy: start copy command: %w", err)
	}
	if _, err := io.Copy(stdin, bytes.NewReader(binary)); err != nil {
		return "", fmt.Errorf("launcher: deploy: copy binary: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return "", fmt.Errorf("launcher: deploy: close stdin: %w", err)
	}
	if err := session.Wait(); err != nil {
		return "", fmt.Errorf("launcher: deploy: remote copy failed: %w", err)
	}
	rlog.Infof("launcher", "deployed lite binary to %s (%d bytes)", remotePath, len(binary))
	return remotePath, nil
}

// probeRemotePlatform runs `uname -m` and `uname -s` over a throwaway
// session to determine the remote platform tag when the handshake
// never got far enough to report one (e.g. "command not found").
func probeRemotePlatform(client shellClient) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("launcher: probe: new session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("launcher: probe: stdout pipe: %w", err)
	}
	if err := session.Start("uname -m && uname -s"); err != nil {
		return "", fmt.Errorf("launcher: probe: start: %w", err)
	}
	r := bufio.NewReader(stdout)
	machine, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("launcher: probe: read machine: %w", err)
	}
	osName, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("launcher: probe: read os: %w", err)
	}
	_ = session.Wait()
	return unameToPlatformTag(trimNL(machine), trimNL(osName)), nil
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func unameToPlatformTag(machine, osName string) string {
	return platformtag.FromUname(machine, osName)
}
