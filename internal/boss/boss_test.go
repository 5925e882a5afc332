package boss

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSyncLocalToLocalCopiesFile(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello"), 0o644))

	opts := Options{
		Src:   Endpoint{Path: srcRoot},
		Dest:  Endpoint{Path: destRoot},
		Flags: protocol.DefaultBehaviourFlags(),
	}
	require.NoError(t, RunSync(opts))

	got, err := os.ReadFile(filepath.Join(destRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestRunSyncDryRunLeavesDestUntouched(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello"), 0o644))

	opts := Options{
		Src:    Endpoint{Path: srcRoot},
		Dest:   Endpoint{Path: destRoot},
		Flags:  protocol.DefaultBehaviourFlags(),
		DryRun: true,
	}
	require.NoError(t, RunSync(opts))

	_, err := os.Stat(filepath.Join(destRoot, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSyncReportsStatsAtLeastOnceAtEnd(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hello"), 0o644))

	var lines []string
	opts := Options{
		Src:           Endpoint{Path: srcRoot},
		Dest:          Endpoint{Path: destRoot},
		Flags:         protocol.DefaultBehaviourFlags(),
		ReportStats:   func(line string) { lines = append(lines, line) },
		StatsInterval: time.Hour, // never fires on its own; only the final flush should land
	}
	require.NoError(t, RunSync(opts))
	assert.NotEmpty(t, lines)
}

func TestRunSyncRemoteEndpointWithoutHostFailsFast(t *testing.T) {
	opts := Options{
		Src:   Endpoint{Path: "/tmp/src", Remote: &RemoteSpec{}},
		Dest:  Endpoint{Path: t.TempDir()},
		Flags: protocol.DefaultBehaviourFlags(),
	}
	err := RunSync(opts)
	assert.Error(t, err)
}
