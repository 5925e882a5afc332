package syncengine

import (
	"strings"

	"github.com/rjrssync/rjrssync/internal/accounting"
	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rerr"
	"github.com/rjrssync/rjrssync/internal/rlog"
	"golang.org/x/sync/errgroup"
)

// wireErr turns a wire-carried error response into an *rerr.E, tagging
// it with the side and path the boss already knows from the request it
// just sent, so the printer never has to re-derive them.
func wireErr(kind protocol.ErrorKind, side rerr.Side, path, message string) error {
	return rerr.Wrapf(rerrKind(kind), side, path, "%s", message)
}

// DefaultChunkSize mirrors doer.ChunkSize (spec section 4.2: "4 MiB
// initial default, single knob"). Nothing in the engine reads it: the
// chunks the engine relays are sized by the source doer's reads.
const DefaultChunkSize = 4 * 1024 * 1024

// Engine drives one configured sync end to end against a source and
// destination doer. It holds no state across syncs; one Engine value
// is built per (src, dest, filter) triple.
type Engine struct {
	Src, Dest *comms.BossLink
	Flags     protocol.BehaviourFlags
	Filter    protocol.Filter
	DryRun    bool
	Prompt    PromptFunc
	Stats     *accounting.Stats
}

func basename(p string) string {
	p = strings.TrimRight(p, "/\\")
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func joinRoot(root, name string) string {
	root = strings.TrimRight(root, "/\\")
	return root + "/" + name
}

func setRoot(link *comms.BossLink, side rerr.Side, path string, flags protocol.BehaviourFlags) (protocol.RootDetails, error) {
	if err := link.Send(protocol.CmdSetRootOf(path, flags)); err != nil {
		return protocol.RootDetails{}, err
	}
	resp, err := link.Recv()
	if err != nil {
		return protocol.RootDetails{}, err
	}
	if resp.Tag() == protocol.RespError {
		return protocol.RootDetails{}, wireErr(resp.ErrorKind, side, path, resp.Message)
	}
	return resp.RootDetails, nil
}

func rerrKind(k protocol.ErrorKind) rerr.Kind {
	switch k {
	case protocol.ErrUserInput:
		return rerr.UserInput
	case protocol.ErrProtocol:
		return rerr.Protocol
	case protocol.ErrTransport:
		return rerr.Transport
	case protocol.ErrPolicy:
		return rerr.Policy
	case protocol.ErrLaunch:
		return rerr.Launch
	default:
		return rerr.Filesystem
	}
}

// simpleAck sends cmd and expects an Ack or Error back. Every caller
// targets the destination doer; cmd.RelPath is whatever is being
// mutated there.
func simpleAck(link *comms.BossLink, cmd protocol.Command) error {
	if err := link.Send(cmd); err != nil {
		return err
	}
	resp, err := link.Recv()
	if err != nil {
		return err
	}
	if resp.Tag() == protocol.RespError {
		return wireErr(resp.ErrorKind, rerr.SideDest, cmd.RelPath, resp.Message)
	}
	return nil
}

// CollectEntries drains one full GetEntries response stream into a
// sorted-by-key map (spec section 4.3 step 2).
func CollectEntries(link *comms.BossLink, side rerr.Side, filter protocol.Filter) (Entries, error) {
	if err := link.Send(protocol.CmdGetEntriesOf(filter)); err != nil {
		return nil, err
	}
	entries := make(Entries)
	for {
		resp, err := link.Recv()
		if err != nil {
			return nil, err
		}
		switch resp.Tag() {
		case protocol.RespEntryDetails:
			entries[resp.RelPath] = resp.EntryDetails
		case protocol.RespEndOfEntries:
			return entries, nil
		case protocol.RespError:
			return nil, wireErr(resp.ErrorKind, side, "", resp.Message)
		}
	}
}

// RunSync executes the whole algorithm of spec section 4.3 for one
// configured sync: root resolution, walk, diff, plan, ordering and
// execution (or, under DryRun, plan-and-log only).
func (e *Engine) RunSync(srcRoot, destRoot string, srcTrailingSlash, destTrailingSlash bool) error {
	srcDetails, err := setRoot(e.Src, rerr.SideSource, srcRoot, e.Flags)
	if err != nil {
		return err
	}
	destDetails, err := setRoot(e.Dest, rerr.SideDest, destRoot, e.Flags)
	if err != nil {
		return err
	}

	resolved, err := ResolveRoots(srcDetails, destDetails, srcTrailingSlash, destTrailingSlash)
	if err != nil {
		return err
	}

	resolver := newFlagResolver(e.Flags, e.Prompt)

	effectiveDest := destRoot
	if resolved.AppendSourceBasename {
		effectiveDest = joinRoot(destRoot, basename(srcRoot))
	}

	if resolved.Destructive != destructiveNone {
		proceed, err := resolveDestructiveRoot(resolver, resolved.Destructive, destRoot)
		if err != nil {
			return err
		}
		e.Flags = resolver.flags
		if !proceed {
			rlog.Infof("syncengine", "skipping sync %s -> %s: destructive root replacement declined", srcRoot, destRoot)
			return nil
		}
		if e.DryRun {
			rlog.Infof("syncengine", "dry-run: would replace destination root %s", destRoot)
			return nil
		}
		if err := e.replaceRoot(resolved.Destructive, destRoot); err != nil {
			return err
		}
		destDetails, err = setRoot(e.Dest, rerr.SideDest, destRoot, e.Flags)
		if err != nil {
			return err
		}
	}

	if resolved.NeedsDestAncestors && !e.DryRun {
		if err := simpleAck(e.Dest, protocol.CmdCreateDestAncestorsOf(effectiveDest)); err != nil {
			return err
		}
	}

	if effectiveDest != destRoot {
		destDetails, err = setRoot(e.Dest, rerr.SideDest, effectiveDest, e.Flags)
		if err != nil {
			return err
		}
	}

	if srcDetails.IsFolder {
		return e.syncFolder(effectiveDest, destDetails)
	}
	return e.syncSingleObject(srcDetails, destDetails)
}

// resolveDestructiveRoot consults the behaviour flag gating a
// root-level kind replacement.
func resolveDestructiveRoot(resolver *flagResolver, kind destructiveKind, destRoot string) (bool, error) {
	switch kind {
	case destructiveFileWithFolder:
		return resolver.resolve(&resolver.flags.ReplaceFileWithFolder, "replacing destination file "+destRoot+" with a folder")
	case destructiveFolderWithFile:
		return resolver.resolve(&resolver.flags.ReplaceFolderWithFile, "replacing destination folder "+destRoot+" with a file")
	default:
		return true, nil
	}
}

// replaceRoot physically clears whatever currently occupies the
// destination root so the new kind can be created in its place. A
// folder-with-file replacement must first recursively empty the
// folder, since DeleteFolder (like rmdir) only removes empty dirs.
func (e *Engine) replaceRoot(kind destructiveKind, destRoot string) error {
	if kind == destructiveFileWithFolder {
		return simpleAck(e.Dest, protocol.CmdDeleteFileOf(""))
	}
	entries, err := CollectEntries(e.Dest, rerr.SideDest, protocol.Filter{})
	if err != nil {
		return err
	}
	plan := order(nil, entriesToDeleteActions(entries), nil)
	for _, a := range plan.Deletes {
		if err := e.applyDelete(e.Dest, a); err != nil {
			return err
		}
	}
	return simpleAck(e.Dest, protocol.CmdDeleteFolderOf(""))
}

func entriesToDeleteActions(entries Entries) []Action {
	actions := make([]Action, 0, len(entries))
	for rel, ent := range entries {
		actions = append(actions, deleteActionFor(rel, ent))
	}
	return actions
}

// syncFolder is the full walk/diff/plan/execute path for a
// folder-rooted sync.
func (e *Engine) syncFolder(effectiveDest string, destDetails protocol.RootDetails) error {
	if !e.DryRun {
		if err := simpleAck(e.Dest, protocol.CmdCreateFolderOf("")); err != nil {
			return err
		}
	}

	var srcEntries, destEntries Entries
	g := new(errgroup.Group)
	g.Go(func() (err error) {
		srcEntries, err = CollectEntries(e.Src, rerr.SideSource, e.Filter)
		return err
	})
	g.Go(func() (err error) {
		destEntries, err = CollectEntries(e.Dest, rerr.SideDest, e.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	resolver := newFlagResolver(e.Flags, e.Prompt)
	plan, err := Diff(srcEntries, destEntries, resolver)
	if err != nil {
		return err
	}
	e.Flags = resolver.flags

	if e.Stats != nil {
		var totalBytes int64
		for _, a := range plan.FileCreates {
			totalBytes += int64(a.Entry.Size)
		}
		for _, r := range plan.Replaces {
			totalBytes += int64(r.NewEntry.Size)
		}
		e.Stats.SetTotals(int64(len(plan.FileCreates)+len(plan.Replaces)), totalBytes)
	}

	return e.execute(plan)
}

// syncSingleObject handles src roots that are a file or symlink: no
// walk, just a direct copy (or symlink recreation) at the root.
func (e *Engine) syncSingleObject(srcDetails, destDetails protocol.RootDetails) error {
	if e.DryRun {
		rlog.Infof("syncengine", "dry-run: would copy single root object")
		return nil
	}
	if srcDetails.IsSymlink {
		return e.copySymlink("", protocol.NewSymlinkEntry(srcDetails.SymlinkKind, srcDetails.Target))
	}
	return e.copyFile("", protocol.NewFileEntry(srcDetails.Size, srcDetails.Modified))
}

// execute applies a Plan in the order required for correctness:
// general deletes (bottom-up), then same-path replaces (their own
// delete-then-create step), then folder creates (top-down), then
// file/symlink creates.
//
// Per spec section 7 point 2, a Filesystem-kind error on one action
// does not abort the rest of the plan: it is recorded against Stats
// and the engine keeps going, aggregating into a single final nonzero
// error. Every other error kind (protocol, transport, policy, launch,
// user-input) is fatal to the session and aborts immediately.
func (e *Engine) execute(plan Plan) error {
	if e.DryRun {
		e.logPlan(plan)
		return nil
	}
	var failures int
	record := func(rel string, err error) error {
		if err == nil {
			return nil
		}
		if rerr.KindOf(err) != rerr.Filesystem {
			return err
		}
		rlog.Errorf("syncengine", "%s: %v", rel, err)
		if e.Stats != nil {
			e.Stats.AddError()
		}
		failures++
		return nil
	}

	for _, a := range plan.Deletes {
		if err := record(a.RelPath, e.applyDelete(e.Dest, a)); err != nil {
			return err
		}
	}
	for _, r := range plan.Replaces {
		if err := record(r.RelPath, e.applyReplace(r)); err != nil {
			return err
		}
	}
	for _, a := range plan.FolderCreates {
		if err := record(a.RelPath, simpleAck(e.Dest, protocol.CmdCreateFolderOf(a.RelPath))); err != nil {
			return err
		}
	}
	for _, a := range plan.FileCreates {
		if err := record(a.RelPath, e.applyCreate(a)); err != nil {
			return err
		}
	}
	if failures > 0 {
		return rerr.Newf(rerr.Filesystem, "%d action(s) failed during sync", failures)
	}
	return nil
}

func (e *Engine) logPlan(plan Plan) {
	for _, a := range plan.Deletes {
		rlog.Infof("syncengine", "dry-run: would delete %s", a.RelPath)
	}
	for _, r := range plan.Replaces {
		rlog.Infof("syncengine", "dry-run: would replace %s", r.RelPath)
	}
	for _, a := range plan.FolderCreates {
		rlog.Infof("syncengine", "dry-run: would create folder %s", a.RelPath)
	}
	for _, a := range plan.FileCreates {
		rlog.Infof("syncengine", "dry-run: would create/update %s", a.RelPath)
	}
}

func (e *Engine) applyDelete(link *comms.BossLink, a Action) error {
	switch a.Kind {
	case ActDeleteFile:
		return simpleAck(link, protocol.CmdDeleteFileOf(a.RelPath))
	case ActDeleteSymlink:
		return simpleAck(link, protocol.CmdDeleteSymlinkOf(a.RelPath, a.Entry.SymlinkKind))
	default:
		return simpleAck(link, protocol.CmdDeleteFolderOf(a.RelPath))
	}
}

func (e *Engine) applyReplace(r ReplaceAction) error {
	if r.OldEntry.IsFolder {
		// Recursively clear the old subtree first; its children were
		// already scheduled for deletion as ordinary dest-only deletes
		// by Diff since the new source has nothing under this key.
		if err := simpleAck(e.Dest, protocol.CmdDeleteFolderOf(r.RelPath)); err != nil {
			return err
		}
	} else if r.OldEntry.IsSymlink {
		if err := simpleAck(e.Dest, protocol.CmdDeleteSymlinkOf(r.RelPath, r.OldEntry.SymlinkKind)); err != nil {
			return err
		}
	} else {
		if err := simpleAck(e.Dest, protocol.CmdDeleteFileOf(r.RelPath)); err != nil {
			return err
		}
	}
	return e.applyCreate(createActionFor(r.RelPath, r.NewEntry))
}

func (e *Engine) applyCreate(a Action) error {
	switch a.Kind {
	case ActCreateFolder:
		return simpleAck(e.Dest, protocol.CmdCreateFolderOf(a.RelPath))
	case ActCopySymlink:
		return e.copySymlink(a.RelPath, a.Entry)
	default:
		return e.copyFile(a.RelPath, a.Entry)
	}
}

func (e *Engine) copySymlink(rel string, entry protocol.EntryDetails) error {
	return simpleAck(e.Dest, protocol.CmdCreateSymlinkOf(rel, entry.SymlinkKind, entry.Target))
}

// copyFile streams a file's content from the source doer to the
// destination doer in fixed-size chunks (spec section 4.3 step 5). Each
// chunk is relayed as a WriteFileChunk and the engine waits for the
// destination's Ack before reading the next source response.
func (e *Engine) copyFile(rel string, entry protocol.EntryDetails) error {
	if e.Stats != nil {
		e.Stats.StartTransfer(rel)
	}
	if err := simpleAck(e.Dest, protocol.CmdCreateOrUpdateFileOf(rel, entry.Modified.UnixNano())); err != nil {
		return err
	}
	if err := e.Src.Send(protocol.CmdGetFileContentOf(rel)); err != nil {
		return err
	}

	var endOffset uint64
	for {
		resp, err := e.Src.Recv()
		if err != nil {
			return err
		}
		switch resp.Tag() {
		case protocol.RespFileContent:
			if err := simpleAck(e.Dest, protocol.CmdWriteFileChunkOf(rel, resp.Offset, resp.Bytes, false)); err != nil {
				return err
			}
			if e.Stats != nil {
				e.Stats.AddBytes(int64(len(resp.Bytes)))
			}
			endOffset = resp.Offset + uint64(len(resp.Bytes))
		case protocol.RespFileContentEnd:
			if err := simpleAck(e.Dest, protocol.CmdWriteFileChunkOf(rel, endOffset, nil, true)); err != nil {
				return err
			}
			if e.Stats != nil {
				e.Stats.FinishTransfer(rel, 0)
			}
			return nil
		case protocol.RespError:
			return wireErr(resp.ErrorKind, rerr.SideSource, rel, resp.Message)
		}
	}
}
