package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeExecutable(marker string) []byte {
	return []byte("#!/bin/sh\n# " + marker + "\necho hi\n")
}

func TestIsBigFalseForPlainExecutable(t *testing.T) {
	assert.False(t, IsBig(fakeExecutable("lite")))
}

func TestAugmentWithSectionThenExtractRoundTrips(t *testing.T) {
	lite := fakeExecutable("base")
	windowsLite := fakeExecutable("windows-lite-payload")

	big, err := AugmentWithSection(lite, "x86_64-windows", windowsLite)
	require.NoError(t, err)
	assert.True(t, IsBig(big))

	sections, err := ListSections(big)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "x86_64-windows", sections[0].Platform)

	store, err := NewStore(big)
	require.NoError(t, err)
	extracted, err := store.ExtractLiteBinary("x86_64-windows")
	require.NoError(t, err)
	assert.Equal(t, windowsLite, extracted)
}

func TestAugmentWithSectionSupportsMultiplePlatforms(t *testing.T) {
	lite := fakeExecutable("base")
	winLite := fakeExecutable("win")
	linuxLite := fakeExecutable("linux-arm")

	big, err := AugmentWithSection(lite, "x86_64-windows", winLite)
	require.NoError(t, err)
	big, err = AugmentWithSection(big, "aarch64-linux", linuxLite)
	require.NoError(t, err)

	sections, err := ListSections(big)
	require.NoError(t, err)
	assert.Len(t, sections, 2)

	store, err := NewStore(big)
	require.NoError(t, err)

	got, err := store.ExtractLiteBinary("x86_64-windows")
	require.NoError(t, err)
	assert.Equal(t, winLite, got)

	got, err = store.ExtractLiteBinary("aarch64-linux")
	require.NoError(t, err)
	assert.Equal(t, linuxLite, got)
}

func TestExtractLiteBinaryErrorsForUnknownPlatform(t *testing.T) {
	lite := fakeExecutable("base")
	big, err := AugmentWithSection(lite, "x86_64-windows", fakeExecutable("win"))
	require.NoError(t, err)

	store, err := NewStore(big)
	require.NoError(t, err)
	_, err = store.ExtractLiteBinary("aarch64-darwin")
	assert.Error(t, err)
}

func TestAugmentProducesLiteForCurrentPlatformPlusTarget(t *testing.T) {
	// Simulate: the running big binary already carries a windows
	// section (built elsewhere) and we self-augment it with a new
	// darwin target while running "as" linux.
	lite := fakeExecutable("linux-base")
	winLite := fakeExecutable("win")
	self, err := AugmentWithSection(lite, "x86_64-windows", winLite)
	require.NoError(t, err)

	darwinLite := fakeExecutable("darwin")
	augmented, err := Augment(self, "x86_64-linux", "aarch64-darwin", darwinLite)
	require.NoError(t, err)

	sections, err := ListSections(augmented)
	require.NoError(t, err)
	platforms := map[string]bool{}
	for _, s := range sections {
		platforms[s.Platform] = true
	}
	assert.True(t, platforms["x86_64-windows"])
	assert.True(t, platforms["aarch64-darwin"])
	assert.False(t, platforms["x86_64-linux"], "current platform's own section is implicit, not stored")

	store, err := NewStore(augmented)
	require.NoError(t, err)
	got, err := store.ExtractLiteBinary("aarch64-darwin")
	require.NoError(t, err)
	assert.Equal(t, darwinLite, got)
}

func TestListSectionsOnLiteBinaryIsEmpty(t *testing.T) {
	sections, err := ListSections(fakeExecutable("lite"))
	require.NoError(t, err)
	assert.Empty(t, sections)
}
