//go:build windows

package doer

import (
	"fmt"
	"os"

	"github.com/rjrssync/rjrssync/internal/protocol"
	"golang.org/x/sys/windows"
)

// symlinkKindOf determines whether an existing symlink is typed as a
// file-symlink or a folder-symlink. Windows stamps this onto the
// reparse point itself (FILE_ATTRIBUTE_DIRECTORY is set on a
// directory-symlink even when its target is missing), so it is
// queried directly rather than following the link.
func symlinkKindOf(abs string, info os.FileInfo) (protocol.SymlinkKind, error) {
	attrs, err := windows.GetFileAttributes(windows.StringToUTF16Ptr(abs))
	if err != nil {
		return protocol.SymlinkGeneric, err
	}
	if attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		return protocol.SymlinkFolder, nil
	}
	return protocol.SymlinkFile, nil
}

// createSymlink creates a typed symlink: Windows requires the
// directory-vs-file flavor to be chosen up front, unlike Unix.
// SYMLINK_FLAG_ALLOW_UNPRIVILEGED_CREATE lets this succeed under
// Developer Mode without running elevated. A Generic-kind symlink has
// no Windows equivalent and must not be guessed at; it is surfaced as
// an ordinary error rather than silently created as a file-symlink.
func createSymlink(abs string, kind protocol.SymlinkKind, target string) error {
	flags := uint32(0)
	switch kind {
	case protocol.SymlinkFolder:
		flags |= windows.SYMBOLIC_LINK_FLAG_DIRECTORY
	case protocol.SymlinkFile:
		// no directory flag
	default:
		return fmt.Errorf("doer: cannot create a Generic-kind symlink on Windows: kind must be File or Folder")
	}
	flags |= windows.SYMBOLIC_LINK_FLAG_ALLOW_UNPRIVILEGED_CREATE
	return windows.CreateSymbolicLink(
		windows.StringToUTF16Ptr(abs),
		windows.StringToUTF16Ptr(target),
		flags,
	)
}

// removeSymlink removes a typed symlink. A folder-symlink is itself a
// reparse point, not a real directory, so os.Remove (not RemoveAll)
// is correct for both kinds.
func removeSymlink(abs string, kind protocol.SymlinkKind) error {
	return os.Remove(abs)
}
