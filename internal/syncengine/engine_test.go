package syncengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/doer"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawnDoer starts an in-process doer and returns the boss-side link
// plus a func that shuts it down and waits for it to exit.
func spawnDoer(t *testing.T, side string) (link *comms.BossLink, shutdown func()) {
	t.Helper()
	boss, doerLink := comms.NewInProcessPair()
	done := make(chan struct{})
	go func() {
		_ = doer.New(side).Serve(doerLink)
		close(done)
	}()
	return boss, func() {
		_ = boss.Send(protocol.CmdShutdownOf())
		<-done
	}
}

func TestRunSyncCopiesNewFolderIntoExistingDest(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "hello.txt"), []byte("hi there"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "sub", "nested.txt"), []byte("nested"), 0o644))

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags()}
	require.NoError(t, e.RunSync(srcRoot, destRoot, false, false))

	got, err := os.ReadFile(filepath.Join(destRoot, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(got))

	got, err = os.ReadFile(filepath.Join(destRoot, "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(got))
}

func TestRunSyncRemovesStaleDestFile(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destRoot, "stale.txt"), []byte("old"), 0o644))

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags()}
	require.NoError(t, e.RunSync(srcRoot, destRoot, false, false))

	_, err := os.Stat(filepath.Join(destRoot, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSyncDryRunMakesNoChanges(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "hello.txt"), []byte("hi"), 0o644))

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags(), DryRun: true}
	require.NoError(t, e.RunSync(srcRoot, destRoot, false, false))

	_, err := os.Stat(filepath.Join(destRoot, "hello.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSyncSingleFileRootAppendsBasenameWithTrailingSlash(t *testing.T) {
	srcRoot := t.TempDir()
	destParent := t.TempDir()
	srcFile := filepath.Join(srcRoot, "one.txt")
	require.NoError(t, os.WriteFile(srcFile, []byte("single file contents"), 0o644))
	destRoot := filepath.Join(destParent, "out") + string(os.PathSeparator)

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags()}
	require.NoError(t, e.RunSync(srcFile, destRoot, false, true))

	got, err := os.ReadFile(filepath.Join(destParent, "out", "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "single file contents", string(got))
}

func TestExecuteContinuesPastFilesystemErrorAndAggregates(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "good.txt"), []byte("ok"), 0o644))

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	_, err := setRoot(srcLink, rerr.SideSource, srcRoot, protocol.DefaultBehaviourFlags())
	require.NoError(t, err)
	_, err = setRoot(destLink, rerr.SideDest, destRoot, protocol.DefaultBehaviourFlags())
	require.NoError(t, err)

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags()}
	plan := Plan{
		FileCreates: []Action{
			// missing.txt does not exist on the source side and fails
			// with a Filesystem-kind error; good.txt must still be
			// copied rather than being abandoned because of it.
			{Kind: ActCopyFile, RelPath: "missing.txt", Entry: protocol.NewFileEntry(1, time.Now())},
			{Kind: ActCopyFile, RelPath: "good.txt", Entry: protocol.NewFileEntry(2, time.Now())},
		},
	}

	err = e.execute(plan)
	require.Error(t, err)

	got, readErr := os.ReadFile(filepath.Join(destRoot, "good.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "ok", string(got))
}

func TestRunSyncUpdatesChangedFileContent(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("version two, longer"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(destRoot, "a.txt"), []byte("v1"), 0o644))
	// Make the destination copy older than the source so the default
	// flags take the ordinary update path rather than the dest-newer one.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(destRoot, "a.txt"), past, past))

	srcLink, srcDone := spawnDoer(t, "source")
	defer srcDone()
	destLink, destDone := spawnDoer(t, "dest")
	defer destDone()

	e := &Engine{Src: srcLink, Dest: destLink, Flags: protocol.DefaultBehaviourFlags()}
	require.NoError(t, e.RunSync(srcRoot, destRoot, false, false))

	got, err := os.ReadFile(filepath.Join(destRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "version two, longer", string(got))
}
