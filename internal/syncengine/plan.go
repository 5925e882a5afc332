// Package syncengine implements the diff/plan/execute core described
// in spec section 4.3: it walks two doers' entry listings into sorted
// maps, diffs them by key, and emits an ordered action list.
package syncengine

import (
	"bytes"
	"sort"

	"github.com/rjrssync/rjrssync/internal/pathutil"
	"github.com/rjrssync/rjrssync/internal/protocol"
)

// Entries is a rel-path-keyed snapshot of one side's walk, as
// collected from a stream of EntryDetails responses.
type Entries map[string]protocol.EntryDetails

// ActionKind distinguishes the kinds of mutating step the engine can
// emit against a single doer.
type ActionKind int

const (
	ActCreateFolder ActionKind = iota
	ActCopyFile
	ActCopySymlink
	ActDeleteFile
	ActDeleteFolder
	ActDeleteSymlink
)

// Action is one step of the plan, targeting a single rel path.
type Action struct {
	Kind    ActionKind
	RelPath string
	Entry   protocol.EntryDetails // the entry driving the action (source entry for creates/updates, dest entry for deletes)
}

// ReplaceAction is a same-path kind change (file<->folder): the old
// object is removed and the new one created. It is kept distinct from
// plain Actions because it must run in its own delete-then-create step
// (spec section 4.3 step 3's "plan delete followed by create"),
// sandwiched between the general deletes and general creates so a
// folder-replaced-by-file is not recreated before its now-stale
// descendants have been cleared out, and is not deleted again by the
// general delete pass.
type ReplaceAction struct {
	RelPath  string
	OldEntry protocol.EntryDetails
	NewEntry protocol.EntryDetails
}

// Plan is the full ordered set of steps for one sync, per spec section
// 4.3 step 4. Execution order is: Deletes (bottom-up, already
// excluding paths covered by Replaces), then Replaces, then
// FolderCreates (top-down), then FileCreates (any order).
type Plan struct {
	Deletes       []Action
	Replaces      []ReplaceAction
	FolderCreates []Action
	FileCreates   []Action
}

func kindMatches(a, b protocol.EntryDetails) bool {
	return a.IsFile == b.IsFile && a.IsFolder == b.IsFolder && a.IsSymlink == b.IsSymlink
}

func createActionFor(rel string, e protocol.EntryDetails) Action {
	switch {
	case e.IsFolder:
		return Action{Kind: ActCreateFolder, RelPath: rel, Entry: e}
	case e.IsSymlink:
		return Action{Kind: ActCopySymlink, RelPath: rel, Entry: e}
	default:
		return Action{Kind: ActCopyFile, RelPath: rel, Entry: e}
	}
}

func deleteActionFor(rel string, e protocol.EntryDetails) Action {
	switch {
	case e.IsFolder:
		return Action{Kind: ActDeleteFolder, RelPath: rel, Entry: e}
	case e.IsSymlink:
		return Action{Kind: ActDeleteSymlink, RelPath: rel, Entry: e}
	default:
		return Action{Kind: ActDeleteFile, RelPath: rel, Entry: e}
	}
}

// symlinkEqual compares two symlink entries after separator
// normalization, per spec section 4.3 step 3.
func symlinkEqual(a, b protocol.EntryDetails) bool {
	if a.SymlinkKind != b.SymlinkKind {
		return false
	}
	return bytes.Equal(a.Target, b.Target)
}

// Diff scans the union of src and dest keys in lexicographic order
// and produces an unordered set of raw decisions, which order then
// arranges into the execution-ready Plan. resolver's flags govern
// destructive and ambiguous cases; a FlagPrompt entry consults resolver's
// PromptFunc exactly once and may pin the flag for the remainder of
// the run.
func Diff(src, dest Entries, resolver *flagResolver) (Plan, error) {
	keys := make(map[string]struct{}, len(src)+len(dest))
	for k := range src {
		keys[k] = struct{}{}
	}
	for k := range dest {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var creates, deletes []Action
	var replaces []ReplaceAction

	for _, rel := range sorted {
		srcEntry, inSrc := src[rel]
		destEntry, inDest := dest[rel]

		switch {
		case inSrc && !inDest:
			creates = append(creates, createActionFor(rel, srcEntry))

		case !inSrc && inDest:
			deletes = append(deletes, deleteActionFor(rel, destEntry))

		case kindMatches(srcEntry, destEntry):
			switch {
			case srcEntry.IsFolder:
				// no action
			case srcEntry.IsSymlink:
				if !symlinkEqual(srcEntry, destEntry) {
					creates = append(creates, createActionFor(rel, srcEntry))
				}
			default: // file
				changed := srcEntry.Size != destEntry.Size || !srcEntry.Modified.Equal(destEntry.Modified)
				if !changed {
					continue
				}
				var flag *protocol.BehaviourFlag
				var question string
				if destEntry.Modified.After(srcEntry.Modified) {
					flag = &resolver.flags.DestFileUpdateNewer
					question = "destination file " + rel + " is newer than source; overwrite?"
				} else {
					flag = &resolver.flags.OverwriteNewerDest
					question = "destination file " + rel + " differs from source; overwrite?"
				}
				proceed, err := resolver.resolve(flag, question)
				if err != nil {
					return Plan{}, err
				}
				if !proceed {
					continue
				}
				creates = append(creates, createActionFor(rel, srcEntry))
			}

		default: // present on both, different kind: destructive replace
			var proceed bool
			var err error
			if destEntry.IsFolder {
				proceed, err = resolver.resolve(&resolver.flags.ReplaceFolderWithFile,
					"replacing destination folder "+rel+" with a file")
			} else {
				proceed, err = resolver.resolve(&resolver.flags.ReplaceFileWithFolder,
					"replacing destination file "+rel+" with a folder")
			}
			if err != nil {
				return Plan{}, err
			}
			if !proceed {
				continue
			}
			replaces = append(replaces, ReplaceAction{RelPath: rel, OldEntry: destEntry, NewEntry: srcEntry})
		}
	}

	return order(creates, deletes, replaces), nil
}

// order arranges raw creates/deletes/replaces into the
// execution-ready Plan: folder creates top-down by depth, file/
// symlink creates in scan (lexicographic) order, deletes bottom-up by
// depth.
func order(creates, deletes []Action, replaces []ReplaceAction) Plan {
	var folderCreates, fileCreates []Action
	for _, a := range creates {
		if a.Kind == ActCreateFolder {
			folderCreates = append(folderCreates, a)
		} else {
			fileCreates = append(fileCreates, a)
		}
	}
	sort.SliceStable(folderCreates, func(i, j int) bool {
		return pathutil.Depth(folderCreates[i].RelPath) < pathutil.Depth(folderCreates[j].RelPath)
	})
	sort.SliceStable(deletes, func(i, j int) bool {
		return pathutil.Depth(deletes[i].RelPath) > pathutil.Depth(deletes[j].RelPath)
	})
	sort.SliceStable(replaces, func(i, j int) bool {
		return pathutil.Depth(replaces[i].RelPath) < pathutil.Depth(replaces[j].RelPath)
	})
	return Plan{
		Deletes:       deletes,
		Replaces:      replaces,
		FolderCreates: folderCreates,
		FileCreates:   fileCreates,
	}
}
