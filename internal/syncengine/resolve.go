package syncengine

import (
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rerr"
)

func errPolicyBlocked(question string) error {
	return rerr.Newf(rerr.Policy, "%s", question)
}

// rootKind collapses a doer's RootDetails into the three categories
// the resolution matrix cares about. Symlinks count as files; the
// Unix quirk where a trailing-slash path to a symlink-to-folder
// resolves through the OS to the target folder is handled for free by
// the doer's Lstat call receiving the slash-terminated path string,
// so no special case is needed here.
type rootKind int

const (
	rootAbsent rootKind = iota
	rootFile
	rootFolder
)

func classify(d protocol.RootDetails) rootKind {
	switch {
	case d.NonExistent:
		return rootAbsent
	case d.IsFolder:
		return rootFolder
	default:
		return rootFile
	}
}

// ResolvedRoot is the outcome of resolving one sync's source and
// destination roots against the effective source x dest matrix (spec
// section 4.3 step 1).
type ResolvedRoot struct {
	// AppendSourceBasename reports whether the destination path used
	// for the walk's effective root is dest + "/" + basename(src),
	// rather than dest as given.
	AppendSourceBasename bool

	// NeedsDestAncestors reports whether CreateDestAncestors must be
	// sent to the destination doer before anything else, because the
	// destination root does not exist yet.
	NeedsDestAncestors bool

	// Destructive is non-zero when the matrix cell is a root-level
	// replacement ('!' in the spec table): an existing folder is about
	// to be replaced by a file, or vice versa.
	Destructive destructiveKind
}

type destructiveKind int

const (
	destructiveNone destructiveKind = iota
	destructiveFileWithFolder // dest is a file, about to become a folder
	destructiveFolderWithFile // dest is a folder, about to become a file
)

// outcome is one cell of the matrix.
type outcome struct {
	err    bool
	append bool
	kind   destructiveKind
}

var errCell = outcome{err: true}

// matrix mirrors spec section 4.3's table exactly: rows are
// [src=absent, src=file (no slash), src=file/ , src=folder (no
// slash), src=folder/]; columns are [dest=absent b, dest=absent b/,
// dest=file b, dest=file b/, dest=folder b, dest=folder b/].
var matrix = [5][6]outcome{
	{errCell, errCell, errCell, errCell, errCell, errCell}, // src=absent
	{ // src=file a
		{append: false},                       // dest=absent b      -> b
		{append: true},                        // dest=absent b/     -> b/a
		{append: false},                       // dest=file b        -> b
		errCell,                                // dest=file b/       -> X
		{kind: destructiveFolderWithFile},      // dest=folder b      -> b!
		{append: true},                        // dest=folder b/     -> b/a
	},
	{errCell, errCell, errCell, errCell, errCell, errCell}, // src=file a/ (always invalid)
	{ // src=folder a
		{append: false},                  // dest=absent b   -> b
		{append: false},                  // dest=absent b/  -> b
		{kind: destructiveFileWithFolder}, // dest=file b     -> b!
		errCell,                           // dest=file b/    -> X
		{append: false},                  // dest=folder b   -> b
		{append: false},                  // dest=folder b/  -> b
	},
	{ // src=folder a/ (identical to src=folder a: trailing slash on a
		// folder source does not change where the destination root ends
		// up in this design)
		{append: false},
		{append: false},
		{kind: destructiveFileWithFolder},
		errCell,
		{append: false},
		{append: false},
	},
}

func rowIndex(kind rootKind, trailingSlash bool) int {
	switch kind {
	case rootAbsent:
		return 0
	case rootFile:
		if trailingSlash {
			return 2
		}
		return 1
	default: // rootFolder
		if trailingSlash {
			return 4
		}
		return 3
	}
}

func colIndex(kind rootKind, trailingSlash bool) int {
	switch kind {
	case rootAbsent:
		if trailingSlash {
			return 1
		}
		return 0
	case rootFile:
		if trailingSlash {
			return 3
		}
		return 2
	default: // rootFolder
		if trailingSlash {
			return 5
		}
		return 4
	}
}

// ResolveRoots consults the effective source x dest matrix and either
// returns how to proceed or an error. Destructive cells are reported
// in the result rather than resolved here; the caller is responsible
// for consulting the relevant behaviour flag (possibly via a prompt)
// before acting on them.
func ResolveRoots(srcDetails, destDetails protocol.RootDetails, srcTrailingSlash, destTrailingSlash bool) (ResolvedRoot, error) {
	srcKind := classify(srcDetails)
	destKind := classify(destDetails)
	row := rowIndex(srcKind, srcTrailingSlash)
	col := colIndex(destKind, destTrailingSlash)
	cell := matrix[row][col]
	if cell.err {
		return ResolvedRoot{}, rerr.Newf(rerr.UserInput,
			"source/destination combination is not resolvable (src kind=%d slash=%v, dest kind=%d slash=%v)",
			srcKind, srcTrailingSlash, destKind, destTrailingSlash)
	}
	return ResolvedRoot{
		AppendSourceBasename: cell.append,
		NeedsDestAncestors:   destKind == rootAbsent,
		Destructive:          cell.kind,
	}, nil
}
