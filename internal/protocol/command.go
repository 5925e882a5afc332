package protocol

import "fmt"

// CommandTag distinguishes the Command variants on the wire.
type CommandTag uint8

const (
	CmdSetRoot CommandTag = iota
	CmdGetEntries
	CmdGetFileContent
	CmdCreateOrUpdateFile
	CmdWriteFileChunk
	CmdCreateSymlink
	CmdCreateFolder
	CmdDeleteFile
	CmdDeleteSymlink
	CmdDeleteFolder
	CmdCreateDestAncestors
	CmdSetModifiedTime
	CmdShutdown
)

// Command is the alphabet of requests a boss issues to a doer. Every
// variant is fully enumerated; receivers must exhaustively switch on
// Tag(), never type-assert down a hierarchy.
type Command struct {
	tag CommandTag

	// SetRoot
	Path  string
	Flags BehaviourFlags

	// GetEntries
	Filter Filter

	// GetFileContent, CreateOrUpdateFile, WriteFileChunk,
	// CreateSymlink, CreateFolder, DeleteFile, DeleteSymlink,
	// DeleteFolder, SetModifiedTime
	RelPath string

	// CreateOrUpdateFile, SetModifiedTime
	Modified int64 // unix nanos

	// WriteFileChunk
	Offset uint64
	Bytes  []byte
	Final  bool

	// CreateSymlink, DeleteSymlink
	SymlinkKind SymlinkKind
	Target      []byte

	// CreateDestAncestors
	AbsPath string
}

// Tag reports which variant this Command holds.
func (c Command) Tag() CommandTag { return c.tag }

func CmdSetRootOf(path string, flags BehaviourFlags) Command {
	return Command{tag: CmdSetRoot, Path: path, Flags: flags}
}

func CmdGetEntriesOf(filter Filter) Command {
	return Command{tag: CmdGetEntries, Filter: filter}
}

func CmdGetFileContentOf(relPath string) Command {
	return Command{tag: CmdGetFileContent, RelPath: relPath}
}

func CmdCreateOrUpdateFileOf(relPath string, modified int64) Command {
	return Command{tag: CmdCreateOrUpdateFile, RelPath: relPath, Modified: modified}
}

func CmdWriteFileChunkOf(relPath string, offset uint64, b []byte, final bool) Command {
	return Command{tag: CmdWriteFileChunk, RelPath: relPath, Offset: offset, Bytes: b, Final: final}
}

func CmdCreateSymlinkOf(relPath string, kind SymlinkKind, target []byte) Command {
	return Command{tag: CmdCreateSymlink, RelPath: relPath, SymlinkKind: kind, Target: target}
}

func CmdCreateFolderOf(relPath string) Command {
	return Command{tag: CmdCreateFolder, RelPath: relPath}
}

func CmdDeleteFileOf(relPath string) Command {
	return Command{tag: CmdDeleteFile, RelPath: relPath}
}

func CmdDeleteSymlinkOf(relPath string, kind SymlinkKind) Command {
	return Command{tag: CmdDeleteSymlink, RelPath: relPath, SymlinkKind: kind}
}

func CmdDeleteFolderOf(relPath string) Command {
	return Command{tag: CmdDeleteFolder, RelPath: relPath}
}

func CmdCreateDestAncestorsOf(absPath string) Command {
	return Command{tag: CmdCreateDestAncestors, AbsPath: absPath}
}

func CmdSetModifiedTimeOf(relPath string, modified int64) Command {
	return Command{tag: CmdSetModifiedTime, RelPath: relPath, Modified: modified}
}

func CmdShutdownOf() Command { return Command{tag: CmdShutdown} }

// Encode appends the canonical binary form of c to w.
func (c Command) Encode(w *Writer) {
	w.WriteU8(uint8(c.tag))
	switch c.tag {
	case CmdSetRoot:
		w.WriteString(c.Path)
		c.Flags.encode(w)
	case CmdGetEntries:
		c.Filter.encode(w)
	case CmdGetFileContent:
		w.WriteString(c.RelPath)
	case CmdCreateOrUpdateFile:
		w.WriteString(c.RelPath)
		w.WriteI64(c.Modified)
	case CmdWriteFileChunk:
		w.WriteString(c.RelPath)
		w.WriteU64(c.Offset)
		w.WriteBytes(c.Bytes)
		w.WriteBool(c.Final)
	case CmdCreateSymlink:
		w.WriteString(c.RelPath)
		w.WriteU8(uint8(c.SymlinkKind))
		w.WriteBytes(c.Target)
	case CmdCreateFolder:
		w.WriteString(c.RelPath)
	case CmdDeleteFile:
		w.WriteString(c.RelPath)
	case CmdDeleteSymlink:
		w.WriteString(c.RelPath)
		w.WriteU8(uint8(c.SymlinkKind))
	case CmdDeleteFolder:
		w.WriteString(c.RelPath)
	case CmdCreateDestAncestors:
		w.WriteString(c.AbsPath)
	case CmdSetModifiedTime:
		w.WriteString(c.RelPath)
		w.WriteI64(c.Modified)
	case CmdShutdown:
		// no payload
	}
}

// DecodeCommand decodes exactly one Command from r.
func DecodeCommand(r *Reader) (Command, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return Command{}, err
	}
	tag := CommandTag(tagByte)
	switch tag {
	case CmdSetRoot:
		path, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		flags, err := decodeBehaviourFlags(r)
		if err != nil {
			return Command{}, err
		}
		return CmdSetRootOf(path, flags), nil
	case CmdGetEntries:
		filter, err := decodeFilter(r)
		if err != nil {
			return Command{}, err
		}
		return CmdGetEntriesOf(filter), nil
	case CmdGetFileContent:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		return CmdGetFileContentOf(rel), nil
	case CmdCreateOrUpdateFile:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		mod, err := r.ReadI64()
		if err != nil {
			return Command{}, err
		}
		return CmdCreateOrUpdateFileOf(rel, mod), nil
	case CmdWriteFileChunk:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		off, err := r.ReadU64()
		if err != nil {
			return Command{}, err
		}
		b, err := r.ReadBytes()
		if err != nil {
			return Command{}, err
		}
		final, err := r.ReadBool()
		if err != nil {
			return Command{}, err
		}
		return CmdWriteFileChunkOf(rel, off, b, final), nil
	case CmdCreateSymlink:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return Command{}, err
		}
		target, err := r.ReadBytes()
		if err != nil {
			return Command{}, err
		}
		return CmdCreateSymlinkOf(rel, SymlinkKind(kind), target), nil
	case CmdCreateFolder:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		return CmdCreateFolderOf(rel), nil
	case CmdDeleteFile:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		return CmdDeleteFileOf(rel), nil
	case CmdDeleteSymlink:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return Command{}, err
		}
		return CmdDeleteSymlinkOf(rel, SymlinkKind(kind)), nil
	case CmdDeleteFolder:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		return CmdDeleteFolderOf(rel), nil
	case CmdCreateDestAncestors:
		abs, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		return CmdCreateDestAncestorsOf(abs), nil
	case CmdSetModifiedTime:
		rel, err := r.ReadString()
		if err != nil {
			return Command{}, err
		}
		mod, err := r.ReadI64()
		if err != nil {
			return Command{}, err
		}
		return CmdSetModifiedTimeOf(rel, mod), nil
	case CmdShutdown:
		return CmdShutdownOf(), nil
	default:
		return Command{}, fmt.Errorf("protocol: unknown command tag %d", tagByte)
	}
}
