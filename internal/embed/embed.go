// Package embed implements spec section 4.4's "embedding format": the
// outer rjrssync binary carries a set of cross-compiled "lite"
// binaries as named payload sections, one per platform tag, so the
// launcher can deploy a compatible doer to a remote host that doesn't
// already have one.
//
// A real ELF/PE section table requires either cgo and a linker-level
// objcopy step or a build-time asset pipeline; neither fits this
// module's plain `go build`. Section storage is instead implemented as
// a self-describing trailer appended after the executable's own
// bytes - the same append-and-read-your-own-argv[0] trick Go tools
// commonly use for self-contained installers. The section *vocabulary*
// (platform tags, gzip-class compression, lookup-by-tag,
// self-augmentation) matches spec section 4.4 exactly; only the
// physical container format is a Go-idiomatic substitute for actual
// object-file sections.
package embed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// magic terminates every big binary's trailer so ListSections can
// recognize one without guessing.
var magic = [8]byte{'R', 'J', 'R', 'S', 'E', 'M', 'B', '1'}

const trailerFixedLen = 8 /* magic */ + 8 /* directory length, uint64 LE */

// Section describes one embedded platform payload.
type Section struct {
	Platform       string
	CompressedSize int64
}

// directoryEntry is Section plus enough to locate its bytes.
type directoryEntry struct {
	Section
	offset int64 // offset from the start of the sections block
}

// layout is a parsed big binary: everything needed to read existing
// sections or rebuild the trailer around a different set.
type layout struct {
	data          []byte
	baseExeEnd    int64 // end of the pre-sections executable bytes
	sectionsStart int64
	entries       []directoryEntry
}

// parse reads data's trailer, if any. A binary with no trailer (a lite
// binary) parses to a layout with baseExeEnd == len(data) and no
// entries.
func parse(data []byte) (layout, error) {
	if len(data) < trailerFixedLen || !bytes.Equal(data[len(data)-8:], magic[:]) {
		return layout{data: data, baseExeEnd: int64(len(data))}, nil
	}

	dirLenOffset := len(data) - trailerFixedLen
	dirLen := binary.LittleEndian.Uint64(data[dirLenOffset : dirLenOffset+8])
	dirStart := int64(dirLenOffset) - int64(dirLen)
	if dirStart < 0 || dirStart > int64(dirLenOffset) {
		return layout{}, fmt.Errorf("embed: corrupt directory length")
	}
	dirBytes := data[dirStart:dirLenOffset]

	entries, sectionsTotal, err := decodeDirectory(dirBytes)
	if err != nil {
		return layout{}, err
	}

	sectionsStart := dirStart - sectionsTotal
	if sectionsStart < 0 {
		return layout{}, fmt.Errorf("embed: corrupt sections region")
	}

	offset := int64(0)
	for i := range entries {
		entries[i].offset = offset
		offset += entries[i].CompressedSize
	}

	return layout{
		data:          data,
		baseExeEnd:    sectionsStart,
		sectionsStart: sectionsStart,
		entries:       entries,
	}, nil
}

// decodeDirectory reads a sequence of (platform tag, compressed size)
// records: [uint16 tag length][tag bytes][uint64 compressed size].
func decodeDirectory(b []byte) ([]directoryEntry, int64, error) {
	var entries []directoryEntry
	var total int64
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		var tagLen uint16
		if err := binary.Read(r, binary.LittleEndian, &tagLen); err != nil {
			return nil, 0, fmt.Errorf("embed: decode directory: %w", err)
		}
		tag := make([]byte, tagLen)
		if _, err := io.ReadFull(r, tag); err != nil {
			return nil, 0, fmt.Errorf("embed: decode directory: %w", err)
		}
		var size uint64
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, 0, fmt.Errorf("embed: decode directory: %w", err)
		}
		entries = append(entries, directoryEntry{Section: Section{Platform: string(tag), CompressedSize: int64(size)}})
		total += int64(size)
	}
	return entries, total, nil
}

func encodeDirectory(entries []Section) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(e.Platform)))
		buf.WriteString(e.Platform)
		_ = binary.Write(&buf, binary.LittleEndian, uint64(e.CompressedSize))
	}
	return buf.Bytes()
}

// IsBig reports whether data carries an embedded-sections trailer.
func IsBig(data []byte) bool {
	l, err := parse(data)
	return err == nil && len(l.entries) > 0
}

// ListSections enumerates the platform tags and compressed sizes
// embedded in data, for `--list-embedded-binaries`.
func ListSections(data []byte) ([]Section, error) {
	l, err := parse(data)
	if err != nil {
		return nil, err
	}
	out := make([]Section, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Section
	}
	return out, nil
}

// ReadOwnExecutable reads the currently running binary's own bytes,
// for use as the "self" input to ListSections/Augment.
func ReadOwnExecutable() ([]byte, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("embed: locate own executable: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("embed: read own executable: %w", err)
	}
	return data, nil
}

// Store wraps a big binary's bytes and implements
// launcher.Deployer (ExtractLiteBinary) without importing
// internal/launcher, since cmd/rjrssync wires the two together.
type Store struct {
	l layout
}

// NewStore parses data (typically the running binary's own bytes).
func NewStore(data []byte) (*Store, error) {
	l, err := parse(data)
	if err != nil {
		return nil, err
	}
	return &Store{l: l}, nil
}

// ExtractLiteBinary finds the section for platformTag, gzip-decompresses
// it and returns the raw lite binary bytes ready to deploy.
func (s *Store) ExtractLiteBinary(platformTag string) ([]byte, error) {
	for _, e := range s.l.entries {
		if e.Platform != platformTag {
			continue
		}
		start := s.l.sectionsStart + e.offset
		end := start + e.CompressedSize
		if end > int64(len(s.l.data)) {
			return nil, fmt.Errorf("embed: section %s out of range", platformTag)
		}
		return decompress(s.l.data[start:end])
	}
	return nil, fmt.Errorf("embed: no embedded binary for platform %q", platformTag)
}

// ListSections enumerates this store's sections.
func (s *Store) ListSections() []Section {
	out := make([]Section, len(s.l.entries))
	for i, e := range s.l.entries {
		out[i] = e.Section
	}
	return out
}

func decompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("embed: gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("embed: gzip decompress: %w", err)
	}
	return out, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("embed: gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("embed: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// AugmentWithSection appends a new section for platformTag (compressing
// liteBinary) to a COPY of the given big/lite binary's sections, for
// build-time embedding. Unlike Augment (runtime self-augmentation, spec
// section 4.4's "big binary is self-augmenting"), this keeps the
// existing base executable bytes untouched - used to assemble the
// initial big binary out of N freshly cross-compiled lite binaries.
func AugmentWithSection(data []byte, platformTag string, liteBinary []byte) ([]byte, error) {
	l, err := parse(data)
	if err != nil {
		return nil, err
	}
	compressed, err := compress(liteBinary)
	if err != nil {
		return nil, err
	}
	sections := l.entries
	newEntries := make([]Section, 0, len(sections)+1)
	for _, e := range sections {
		if e.Platform == platformTag {
			continue // replaced below
		}
		newEntries = append(newEntries, e.Section)
	}
	newEntries = append(newEntries, Section{Platform: platformTag, CompressedSize: int64(len(compressed))})

	carry := map[string][]byte{platformTag: compressed}
	for _, e := range l.entries {
		if e.Platform == platformTag {
			continue
		}
		start := l.sectionsStart + e.offset
		end := start + e.CompressedSize
		carry[e.Platform] = l.data[start:end]
	}

	return rebuild(l.data[:l.baseExeEnd], newEntries, carry)
}

// Augment implements the runtime self-augmentation described in spec
// section 4.4: given the running big binary's own bytes (selfData) and
// a lite binary for a new target platform, it produces a new big
// binary that is a lite binary for the CURRENT platform (selfData with
// its trailer stripped - the running process already demonstrates that
// those bytes execute here) with the same section set appended, minus
// the current platform's own section (redundant - the stripped base
// executable already is that section) and plus the new target section.
func Augment(selfData []byte, currentPlatformTag string, targetPlatformTag string, liteBinaryForTarget []byte) ([]byte, error) {
	l, err := parse(selfData)
	if err != nil {
		return nil, err
	}
	compressedTarget, err := compress(liteBinaryForTarget)
	if err != nil {
		return nil, err
	}

	newEntries := make([]Section, 0, len(l.entries)+1)
	carry := map[string][]byte{}
	for _, e := range l.entries {
		if e.Platform == currentPlatformTag || e.Platform == targetPlatformTag {
			continue // current is implicit (the base exe); target is replaced below
		}
		newEntries = append(newEntries, e.Section)
		start := l.sectionsStart + e.offset
		end := start + e.CompressedSize
		carry[e.Platform] = l.data[start:end]
	}
	newEntries = append(newEntries, Section{Platform: targetPlatformTag, CompressedSize: int64(len(compressedTarget))})
	carry[targetPlatformTag] = compressedTarget

	baseExe := selfData[:l.baseExeEnd]
	return rebuild(baseExe, newEntries, carry)
}

// rebuild concatenates baseExe with each entry's already-compressed
// bytes (found in carry) in newEntries order, followed by the encoded
// directory and the fixed trailer.
func rebuild(baseExe []byte, newEntries []Section, carry map[string][]byte) ([]byte, error) {
	var out bytes.Buffer
	out.Write(baseExe)
	for _, e := range newEntries {
		b, ok := carry[e.Platform]
		if !ok {
			return nil, fmt.Errorf("embed: rebuild: missing bytes for %s", e.Platform)
		}
		if int64(len(b)) != e.CompressedSize {
			return nil, fmt.Errorf("embed: rebuild: size mismatch for %s", e.Platform)
		}
		out.Write(b)
	}
	dir := encodeDirectory(newEntries)
	out.Write(dir)
	if err := binary.Write(&out, binary.LittleEndian, uint64(len(dir))); err != nil {
		return nil, err
	}
	out.Write(magic[:])
	return out.Bytes(), nil
}
