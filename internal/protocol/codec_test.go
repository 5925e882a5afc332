package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripCommand(t *testing.T, c Command) Command {
	t.Helper()
	w := NewWriter()
	c.Encode(w)
	r := NewReader(w.Bytes())
	got, err := DecodeCommand(r)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining())
	return got
}

func roundTripResponse(t *testing.T, resp Response) Response {
	t.Helper()
	w := NewWriter()
	resp.Encode(w)
	r := NewReader(w.Bytes())
	got, err := DecodeResponse(r)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining())
	return got
}

func TestCommandRoundTrip(t *testing.T) {
	flags := DefaultBehaviourFlags()
	cases := []Command{
		CmdSetRootOf("/tmp/src", flags),
		CmdGetEntriesOf(Filter{Rules: []FilterRule{{Pattern: `.*\.txt`, Include: true}, {Pattern: `garbage\.txt`, Include: false}}}),
		CmdGetFileContentOf("sub/file2"),
		CmdCreateOrUpdateFileOf("file1", 123456789),
		CmdWriteFileChunkOf("sub/file2", 4096, []byte("hello chunk"), false),
		CmdWriteFileChunkOf("sub/file2", 8192, nil, true),
		CmdCreateSymlinkOf("link1", SymlinkFolder, []byte("target/dir")),
		CmdCreateFolderOf("sub"),
		CmdDeleteFileOf("stale.txt"),
		CmdDeleteSymlinkOf("link1", SymlinkGeneric),
		CmdDeleteFolderOf("old"),
		CmdCreateDestAncestorsOf("/tmp/dest/a/b"),
		CmdSetModifiedTimeOf("file1", 42),
		CmdShutdownOf(),
	}
	for _, c := range cases {
		got := roundTripCommand(t, c)
		assert.Equal(t, c, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	cases := []Response{
		RespRootDetailsOf(NewRootNonExistent()),
		RespRootDetailsOf(NewRootFile(2048, now)),
		RespRootDetailsOf(NewRootFolder()),
		RespRootDetailsOf(NewRootSymlink(SymlinkFile, []byte("target/path"))),
		RespEntryDetailsOf("a/b.txt", NewFileEntry(1024, now)),
		RespEntryDetailsOf("a", NewFolderEntry()),
		RespEntryDetailsOf("a/link", NewSymlinkEntry(SymlinkGeneric, []byte("../other"))),
		RespEndOfEntriesOf(),
		RespFileContentOf(0, []byte("payload bytes")),
		RespFileContentEndOf(),
		RespAckOf(),
		RespErrorOf(ErrFilesystem, "permission denied"),
	}
	for _, c := range cases {
		got := roundTripResponse(t, c)
		assert.Equal(t, c, got)
	}
}

func TestReaderRejectsOversizedLength(t *testing.T) {
	w := NewWriter()
	w.WriteU32(MaxFrameBytes + 1)
	r := NewReader(w.Bytes())
	_, err := r.ReadBytes()
	assert.Error(t, err)
}

func TestReaderRejectsTruncatedInput(t *testing.T) {
	w := NewWriter()
	CmdCreateFolderOf("a/b/c").Encode(w)
	truncated := w.Bytes()[:len(w.Bytes())-2]
	r := NewReader(truncated)
	_, err := DecodeCommand(r)
	assert.Error(t, err)
}
