//go:build !windows

package doer

import (
	"os"

	"github.com/rjrssync/rjrssync/internal/protocol"
)

// symlinkKindOf reports the kind of an existing symlink. Unix symlinks
// carry no file-vs-directory distinction, so the kind is always
// Generic. A Windows destination does not create Generic-kind links;
// it reports a filesystem error instead.
func symlinkKindOf(abs string, info os.FileInfo) (protocol.SymlinkKind, error) {
	return protocol.SymlinkGeneric, nil
}

// createSymlink creates a symlink at abs pointing at target. kind is
// ignored on Unix: symlink(2) has no file/directory flavor.
func createSymlink(abs string, kind protocol.SymlinkKind, target string) error {
	return os.Symlink(target, abs)
}

// removeSymlink removes the symlink at abs. kind is ignored on Unix:
// unlink(2) works the same regardless of what the link points at.
func removeSymlink(abs string, kind protocol.SymlinkKind) error {
	return os.Remove(abs)
}
