package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRunsLocalToLocalSync(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hi"), 0o644))

	cmd := newRootCommand()
	cmd.SetArgs([]string{srcRoot, destRoot})
	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(filepath.Join(destRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestRootCommandRejectsWrongArgCount(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"only-one-arg"})
	assert.Error(t, cmd.Execute())
}

func TestRootCommandRejectsBadBehaviourFlagValue(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--overwrite-dest-newer=MAYBE", t.TempDir(), t.TempDir()})
	assert.Error(t, cmd.Execute())
}

func TestRootCommandDryRunLeavesDestUntouched(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("hi"), 0o644))

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--dry-run", srcRoot, destRoot})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(destRoot, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}
