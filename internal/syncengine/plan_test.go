package syncengine

import (
	"testing"
	"time"

	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverWithFlags(flags protocol.BehaviourFlags) *flagResolver {
	return newFlagResolver(flags, nil)
}

func TestDiffCreatesOnlyForSourceOnlyEntries(t *testing.T) {
	src := Entries{"new.txt": protocol.NewFileEntry(10, time.Now())}
	dest := Entries{}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)
	require.Len(t, plan.FileCreates, 1)
	assert.Equal(t, "new.txt", plan.FileCreates[0].RelPath)
	assert.Empty(t, plan.Deletes)
}

func TestDiffDeletesOnlyForDestOnlyEntries(t *testing.T) {
	src := Entries{}
	dest := Entries{"stale.txt": protocol.NewFileEntry(10, time.Now())}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)
	require.Len(t, plan.Deletes, 1)
	assert.Equal(t, "stale.txt", plan.Deletes[0].RelPath)
}

func TestDiffSkipsUnchangedFiles(t *testing.T) {
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(10, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now)}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)
	assert.Empty(t, plan.FileCreates)
	assert.Empty(t, plan.Deletes)
}

func TestDiffUpdatesChangedSizeEvenIfDestOlder(t *testing.T) {
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(20, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now.Add(-time.Hour))}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)
	require.Len(t, plan.FileCreates, 1)
}

func TestDiffSkipsUpdateWhenDestNewerAndFlagIsSkip(t *testing.T) {
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(20, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now.Add(time.Hour))}
	flags := protocol.DefaultBehaviourFlags()
	flags.DestFileUpdateNewer = protocol.FlagSkip
	plan, err := Diff(src, dest, resolverWithFlags(flags))
	require.NoError(t, err)
	assert.Empty(t, plan.FileCreates)
}

func TestDiffProceedsWhenDestNewerAndFlagIsProceed(t *testing.T) {
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(20, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now.Add(time.Hour))}
	flags := protocol.DefaultBehaviourFlags()
	flags.DestFileUpdateNewer = protocol.FlagProceed
	plan, err := Diff(src, dest, resolverWithFlags(flags))
	require.NoError(t, err)
	assert.Len(t, plan.FileCreates, 1)
}

func TestDiffDestNewerIgnoresOverwriteNewerDestFlag(t *testing.T) {
	// OverwriteNewerDest governs the "dest is older" overwrite case
	// (below); it must have no say over a dest-is-newer decision, which
	// is DestFileUpdateNewer's case exclusively.
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(20, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now.Add(time.Hour))}
	flags := protocol.DefaultBehaviourFlags()
	flags.OverwriteNewerDest = protocol.FlagProceed
	flags.DestFileUpdateNewer = protocol.FlagSkip
	plan, err := Diff(src, dest, resolverWithFlags(flags))
	require.NoError(t, err)
	assert.Empty(t, plan.FileCreates)
}

func TestDiffSkipsUpdateWhenDestOlderAndOverwriteNewerDestIsSkip(t *testing.T) {
	now := time.Now()
	src := Entries{"a.txt": protocol.NewFileEntry(20, now)}
	dest := Entries{"a.txt": protocol.NewFileEntry(10, now.Add(-time.Hour))}
	flags := protocol.DefaultBehaviourFlags()
	flags.OverwriteNewerDest = protocol.FlagSkip
	plan, err := Diff(src, dest, resolverWithFlags(flags))
	require.NoError(t, err)
	assert.Empty(t, plan.FileCreates)
}

func TestDiffFileReplacedByFolderIsDestructive(t *testing.T) {
	src := Entries{"x": protocol.NewFolderEntry()}
	dest := Entries{"x": protocol.NewFileEntry(10, time.Now())}
	flags := protocol.DefaultBehaviourFlags()
	flags.ReplaceFileWithFolder = protocol.FlagProceed
	plan, err := Diff(src, dest, resolverWithFlags(flags))
	require.NoError(t, err)
	require.Len(t, plan.Replaces, 1)
	assert.Equal(t, "x", plan.Replaces[0].RelPath)
	assert.True(t, plan.Replaces[0].NewEntry.IsFolder)
}

func TestDiffReplaceBlockedByErrorFlag(t *testing.T) {
	src := Entries{"x": protocol.NewFolderEntry()}
	dest := Entries{"x": protocol.NewFileEntry(10, time.Now())}
	flags := protocol.DefaultBehaviourFlags()
	flags.ReplaceFileWithFolder = protocol.FlagError
	_, err := Diff(src, dest, resolverWithFlags(flags))
	assert.Error(t, err)
}

func TestOrderFoldersTopDownFilesAnyOrderDeletesBottomUp(t *testing.T) {
	src := Entries{
		"a":      protocol.NewFolderEntry(),
		"a/b":    protocol.NewFolderEntry(),
		"a/b/c.txt": protocol.NewFileEntry(1, time.Now()),
	}
	dest := Entries{
		"old":       protocol.NewFolderEntry(),
		"old/f.txt": protocol.NewFileEntry(1, time.Now()),
	}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)

	require.Len(t, plan.FolderCreates, 2)
	assert.Equal(t, "a", plan.FolderCreates[0].RelPath)
	assert.Equal(t, "a/b", plan.FolderCreates[1].RelPath)

	require.Len(t, plan.FileCreates, 1)
	assert.Equal(t, "a/b/c.txt", plan.FileCreates[0].RelPath)

	require.Len(t, plan.Deletes, 2)
	assert.Equal(t, "old/f.txt", plan.Deletes[0].RelPath)
	assert.Equal(t, "old", plan.Deletes[1].RelPath)
}

func TestSymlinkTargetChangeTriggersUpdate(t *testing.T) {
	src := Entries{"link": protocol.NewSymlinkEntry(protocol.SymlinkGeneric, []byte("new/target"))}
	dest := Entries{"link": protocol.NewSymlinkEntry(protocol.SymlinkGeneric, []byte("old/target"))}
	plan, err := Diff(src, dest, resolverWithFlags(protocol.DefaultBehaviourFlags()))
	require.NoError(t, err)
	require.Len(t, plan.FileCreates, 1)
	assert.Equal(t, ActCopySymlink, plan.FileCreates[0].Kind)
}
