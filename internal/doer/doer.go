// Package doer implements the filesystem-primitive worker side of the
// boss/doer protocol (spec section 4.2): a pure command responder
// that owns one root and a scratch buffer, processes Commands
// sequentially, and never initiates anything on its own.
package doer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rjrssync/rjrssync/internal/comms"
	"github.com/rjrssync/rjrssync/internal/filter"
	"github.com/rjrssync/rjrssync/internal/pathutil"
	"github.com/rjrssync/rjrssync/internal/protocol"
	"github.com/rjrssync/rjrssync/internal/rlog"
)

// ChunkSize is the fixed size used when streaming file content back to
// the boss (spec section 4.2: "4 MiB initial default, single knob").
const ChunkSize = 4 * 1024 * 1024

// Doer holds the state owned exclusively by the single worker thread
// that processes commands: root, behaviour flags and the scratch
// buffer used for chunked copies. There is no process-wide singleton -
// every remote endpoint or in-process side gets its own instance.
type Doer struct {
	root    string
	flags   protocol.BehaviourFlags
	side    string // "source" or "dest", for logging only
	scratch []byte

	// openFiles tracks in-progress CreateOrUpdateFile/WriteFileChunk
	// sequences, keyed by normalized rel path.
	openFiles map[string]*openFile
}

type openFile struct {
	f        *os.File
	modified time.Time
}

// New returns an un-rooted Doer; SetRoot must be called before any
// other command is meaningful.
func New(side string) *Doer {
	return &Doer{
		side:      side,
		scratch:   make([]byte, ChunkSize),
		openFiles: make(map[string]*openFile),
	}
}

// Serve processes commands from link until Shutdown, EOF, or a fatal
// transport error. It is the doer's entire lifecycle: spec section 3
// says the doer observes EOF on its input and exits.
func (d *Doer) Serve(link *comms.DoerLink) error {
	for {
		cmd, err := link.Recv()
		if err != nil {
			return err
		}
		if cmd.Tag() == protocol.CmdShutdown {
			rlog.Debugf(d.side, "shutdown received")
			return nil
		}
		if err := d.dispatch(link, cmd); err != nil {
			return err
		}
	}
}

func (d *Doer) dispatch(link *comms.DoerLink, cmd protocol.Command) error {
	switch cmd.Tag() {
	case protocol.CmdSetRoot:
		return d.handleSetRoot(link, cmd)
	case protocol.CmdGetEntries:
		return d.handleGetEntries(link, cmd)
	case protocol.CmdGetFileContent:
		return d.handleGetFileContent(link, cmd)
	case protocol.CmdCreateOrUpdateFile:
		return d.handleCreateOrUpdateFile(link, cmd)
	case protocol.CmdWriteFileChunk:
		return d.handleWriteFileChunk(link, cmd)
	case protocol.CmdCreateSymlink:
		return d.handleCreateSymlink(link, cmd)
	case protocol.CmdCreateFolder:
		return d.handleCreateFolder(link, cmd)
	case protocol.CmdDeleteFile:
		return d.handleDeleteFile(link, cmd)
	case protocol.CmdDeleteSymlink:
		return d.handleDeleteSymlink(link, cmd)
	case protocol.CmdDeleteFolder:
		return d.handleDeleteFolder(link, cmd)
	case protocol.CmdCreateDestAncestors:
		return d.handleCreateDestAncestors(link, cmd)
	case protocol.CmdSetModifiedTime:
		return d.handleSetModifiedTime(link, cmd)
	default:
		return link.Send(protocol.RespErrorOf(protocol.ErrProtocol, fmt.Sprintf("unknown command tag %d", cmd.Tag())))
	}
}

func sendErr(link *comms.DoerLink, kind protocol.ErrorKind, err error) error {
	return link.Send(protocol.RespErrorOf(kind, err.Error()))
}

// relToAbs normalizes and joins rel onto the doer's root, using native
// OS separators for the filesystem call but never for the wire.
func (d *Doer) relToAbs(rel string) (string, error) {
	norm, err := pathutil.Normalize(rel)
	if err != nil {
		return "", err
	}
	return pathutil.Join(d.root, norm, filepath.Separator), nil
}

func (d *Doer) handleSetRoot(link *comms.DoerLink, cmd protocol.Command) error {
	d.root = cmd.Path
	d.flags = cmd.Flags
	d.openFiles = make(map[string]*openFile)

	info, err := os.Lstat(d.root)
	if os.IsNotExist(err) {
		return link.Send(protocol.RespRootDetailsOf(protocol.NewRootNonExistent()))
	}
	if err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	details, err := rootDetailsFor(d.root, info)
	if err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespRootDetailsOf(details))
}

func rootDetailsFor(abs string, info os.FileInfo) (protocol.RootDetails, error) {
	if info.Mode()&os.ModeSymlink != 0 {
		kind, err := symlinkKindOf(abs, info)
		if err != nil {
			return protocol.RootDetails{}, err
		}
		target, err := os.Readlink(abs)
		if err != nil {
			return protocol.RootDetails{}, fmt.Errorf("readlink %q: %w", abs, err)
		}
		return protocol.NewRootSymlink(kind, []byte(pathutil.ToWireSlashes(target))), nil
	}
	if info.IsDir() {
		return protocol.NewRootFolder(), nil
	}
	return protocol.NewRootFile(uint64(info.Size()), info.ModTime()), nil
}

func (d *Doer) handleGetEntries(link *comms.DoerLink, cmd protocol.Command) error {
	f, err := filter.Compile(cmd.Filter)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := d.walk(d.root, "", f, func(rel string, details protocol.EntryDetails) error {
		return link.Send(protocol.RespEntryDetailsOf(rel, details))
	}); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespEndOfEntriesOf())
}

// walk performs a pre-order traversal of root, applying f to decide
// inclusion. Directories excluded by the filter are never descended
// into (spec section 4.2: "directories excluded by the filter are not
// descended into").
func (d *Doer) walk(absRoot, rel string, f *filter.Filter, emit func(string, protocol.EntryDetails) error) error {
	absDir := filepath.Join(absRoot, filepath.FromSlash(rel))
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", absDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, ent := range entries {
		childRel := ent.Name()
		if rel != "" {
			childRel = rel + "/" + ent.Name()
		}
		if !f.Included(childRel) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", childRel, err)
		}
		absChild := filepath.Join(absRoot, filepath.FromSlash(childRel))
		if info.Mode()&os.ModeSymlink != 0 {
			details, err := symlinkEntryDetails(absChild, info)
			if err != nil {
				return err
			}
			if err := emit(childRel, details); err != nil {
				return err
			}
			continue
		}
		if info.IsDir() {
			if err := emit(childRel, protocol.NewFolderEntry()); err != nil {
				return err
			}
			if err := d.walk(absRoot, childRel, f, emit); err != nil {
				return err
			}
			continue
		}
		if err := emit(childRel, protocol.NewFileEntry(uint64(info.Size()), info.ModTime())); err != nil {
			return err
		}
	}
	return nil
}

func symlinkEntryDetails(abs string, info os.FileInfo) (protocol.EntryDetails, error) {
	target, err := os.Readlink(abs)
	if err != nil {
		return protocol.EntryDetails{}, fmt.Errorf("readlink %q: %w", abs, err)
	}
	kind, err := symlinkKindOf(abs, info)
	if err != nil {
		return protocol.EntryDetails{}, err
	}
	return protocol.NewSymlinkEntry(kind, []byte(pathutil.ToWireSlashes(target))), nil
}

func (d *Doer) handleGetFileContent(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	defer f.Close()

	var offset uint64
	for {
		n, err := io.ReadFull(f, d.scratch)
		if n > 0 {
			chunk := append([]byte(nil), d.scratch[:n]...)
			if sendErr := link.Send(protocol.RespFileContentOf(offset, chunk)); sendErr != nil {
				return sendErr
			}
			offset += uint64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return sendErr(link, protocol.ErrFilesystem, err)
		}
	}
	return link.Send(protocol.RespFileContentEndOf())
}

func (d *Doer) handleCreateOrUpdateFile(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	f, err := os.Create(abs)
	if err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	norm, _ := pathutil.Normalize(cmd.RelPath)
	d.openFiles[norm] = &openFile{f: f, modified: time.Unix(0, cmd.Modified).UTC()}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleWriteFileChunk(link *comms.DoerLink, cmd protocol.Command) error {
	norm, err := pathutil.Normalize(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	of, ok := d.openFiles[norm]
	if !ok {
		return sendErr(link, protocol.ErrProtocol, fmt.Errorf("write chunk for %q with no open file", cmd.RelPath))
	}
	if _, err := of.f.WriteAt(cmd.Bytes, int64(cmd.Offset)); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	if !cmd.Final {
		return link.Send(protocol.RespAckOf())
	}
	delete(d.openFiles, norm)
	if err := of.f.Close(); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := os.Chtimes(abs, of.modified, of.modified); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleCreateSymlink(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	// Remove any existing file/symlink at the destination first: Go's
	// os.Symlink, like symlink(2), refuses to replace an existing node.
	if _, err := os.Lstat(abs); err == nil {
		if err := os.Remove(abs); err != nil {
			return sendErr(link, protocol.ErrFilesystem, err)
		}
	}
	target := filepath.FromSlash(string(cmd.Target))
	if err := createSymlink(abs, cmd.SymlinkKind, target); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleDeleteSymlink(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := removeSymlink(abs, cmd.SymlinkKind); err != nil && !os.IsNotExist(err) {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleCreateFolder(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := os.MkdirAll(abs, 0o777); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleDeleteFile(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleDeleteFolder(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleCreateDestAncestors(link *comms.DoerLink, cmd protocol.Command) error {
	if d.flags.CreateDestRootAncestors == protocol.FlagError {
		return sendErr(link, protocol.ErrPolicy, fmt.Errorf("creating ancestors of %q is blocked by behaviour flag", cmd.AbsPath))
	}
	if d.flags.CreateDestRootAncestors == protocol.FlagSkip {
		return link.Send(protocol.RespAckOf())
	}
	parent := filepath.Dir(cmd.AbsPath)
	if err := os.MkdirAll(parent, 0o777); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}

func (d *Doer) handleSetModifiedTime(link *comms.DoerLink, cmd protocol.Command) error {
	abs, err := d.relToAbs(cmd.RelPath)
	if err != nil {
		return sendErr(link, protocol.ErrUserInput, err)
	}
	t := time.Unix(0, cmd.Modified).UTC()
	if err := os.Chtimes(abs, t, t); err != nil {
		return sendErr(link, protocol.ErrFilesystem, err)
	}
	return link.Send(protocol.RespAckOf())
}
