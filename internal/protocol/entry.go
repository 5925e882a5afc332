package protocol

import (
	"fmt"
	"time"
)

// SymlinkKind distinguishes Windows' typed symlinks from the untyped
// Unix ones. On Unix it is always Generic; on Windows it selects
// file-symlink vs directory-symlink creation.
type SymlinkKind uint8

const (
	SymlinkGeneric SymlinkKind = iota
	SymlinkFile
	SymlinkFolder
)

func (k SymlinkKind) String() string {
	switch k {
	case SymlinkGeneric:
		return "generic"
	case SymlinkFile:
		return "file"
	case SymlinkFolder:
		return "folder"
	default:
		return fmt.Sprintf("symlink-kind(%d)", uint8(k))
	}
}

// entryTag distinguishes the EntryDetails variants on the wire.
type entryTag uint8

const (
	entryTagFile entryTag = iota
	entryTagFolder
	entryTagSymlink
)

// EntryDetails is the tagged variant describing one filesystem object,
// as observed by a doer's walk. The zero value is a Folder.
type EntryDetails struct {
	IsFile    bool
	IsFolder  bool
	IsSymlink bool

	// File
	Size     uint64
	Modified time.Time

	// Symlink
	SymlinkKind SymlinkKind
	Target      []byte // opaque bytes, forward-slash normalized on the wire
}

// NewFileEntry builds a File variant.
func NewFileEntry(size uint64, modified time.Time) EntryDetails {
	return EntryDetails{IsFile: true, Size: size, Modified: modified}
}

// NewFolderEntry builds a Folder variant.
func NewFolderEntry() EntryDetails { return EntryDetails{IsFolder: true} }

// NewSymlinkEntry builds a Symlink variant.
func NewSymlinkEntry(kind SymlinkKind, target []byte) EntryDetails {
	return EntryDetails{IsSymlink: true, SymlinkKind: kind, Target: target}
}

func (e EntryDetails) tag() entryTag {
	switch {
	case e.IsFile:
		return entryTagFile
	case e.IsSymlink:
		return entryTagSymlink
	default:
		return entryTagFolder
	}
}

// Kind renders a short label for logging/diagnostics.
func (e EntryDetails) Kind() string {
	switch e.tag() {
	case entryTagFile:
		return "file"
	case entryTagSymlink:
		return "symlink"
	default:
		return "folder"
	}
}

func (e EntryDetails) encode(w *Writer) {
	w.WriteU8(uint8(e.tag()))
	switch e.tag() {
	case entryTagFile:
		w.WriteU64(e.Size)
		w.WriteI64(e.Modified.UnixNano())
	case entryTagSymlink:
		w.WriteU8(uint8(e.SymlinkKind))
		w.WriteBytes(e.Target)
	case entryTagFolder:
		// no payload
	}
}

func decodeEntry(r *Reader) (EntryDetails, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return EntryDetails{}, err
	}
	switch entryTag(tagByte) {
	case entryTagFile:
		size, err := r.ReadU64()
		if err != nil {
			return EntryDetails{}, err
		}
		nanos, err := r.ReadI64()
		if err != nil {
			return EntryDetails{}, err
		}
		return NewFileEntry(size, time.Unix(0, nanos).UTC()), nil
	case entryTagSymlink:
		kind, err := r.ReadU8()
		if err != nil {
			return EntryDetails{}, err
		}
		target, err := r.ReadBytes()
		if err != nil {
			return EntryDetails{}, err
		}
		return NewSymlinkEntry(SymlinkKind(kind), target), nil
	case entryTagFolder:
		return NewFolderEntry(), nil
	default:
		return EntryDetails{}, fmt.Errorf("protocol: unknown entry tag %d", tagByte)
	}
}

// rootTag distinguishes the RootDetails variants on the wire.
type rootTag uint8

const (
	rootTagNonExistent rootTag = iota
	rootTagFile
	rootTagFolder
	rootTagSymlink
)

// RootDetails is returned by SetRoot so the boss can apply the
// trailing-slash decision table before walking.
type RootDetails struct {
	NonExistent bool
	IsFile      bool
	IsFolder    bool
	IsSymlink   bool
	Size        uint64    // only set when IsFile
	Modified    time.Time // only set when IsFile
	SymlinkKind SymlinkKind
	Target      []byte // symlink target, forward-slash normalized; only set when IsSymlink
}

func NewRootNonExistent() RootDetails { return RootDetails{NonExistent: true} }
func NewRootFile(size uint64, modified time.Time) RootDetails {
	return RootDetails{IsFile: true, Size: size, Modified: modified}
}
func NewRootFolder() RootDetails { return RootDetails{IsFolder: true} }
func NewRootSymlink(kind SymlinkKind, target []byte) RootDetails {
	return RootDetails{IsSymlink: true, SymlinkKind: kind, Target: target}
}

func (r RootDetails) tag() rootTag {
	switch {
	case r.NonExistent:
		return rootTagNonExistent
	case r.IsFile:
		return rootTagFile
	case r.IsSymlink:
		return rootTagSymlink
	default:
		return rootTagFolder
	}
}

func (r RootDetails) encode(w *Writer) {
	w.WriteU8(uint8(r.tag()))
	switch r.tag() {
	case rootTagSymlink:
		w.WriteU8(uint8(r.SymlinkKind))
		w.WriteBytes(r.Target)
	case rootTagFile:
		w.WriteU64(r.Size)
		w.WriteI64(r.Modified.UnixNano())
	}
}

func decodeRootDetails(r *Reader) (RootDetails, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return RootDetails{}, err
	}
	switch rootTag(tagByte) {
	case rootTagNonExistent:
		return NewRootNonExistent(), nil
	case rootTagFile:
		size, err := r.ReadU64()
		if err != nil {
			return RootDetails{}, err
		}
		nanos, err := r.ReadI64()
		if err != nil {
			return RootDetails{}, err
		}
		return NewRootFile(size, time.Unix(0, nanos).UTC()), nil
	case rootTagFolder:
		return NewRootFolder(), nil
	case rootTagSymlink:
		kind, err := r.ReadU8()
		if err != nil {
			return RootDetails{}, err
		}
		target, err := r.ReadBytes()
		if err != nil {
			return RootDetails{}, err
		}
		return NewRootSymlink(SymlinkKind(kind), target), nil
	default:
		return RootDetails{}, fmt.Errorf("protocol: unknown root tag %d", tagByte)
	}
}
