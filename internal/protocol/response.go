package protocol

import "fmt"

// ResponseTag distinguishes the Response variants on the wire.
type ResponseTag uint8

const (
	RespRootDetails ResponseTag = iota
	RespEntryDetails
	RespEndOfEntries
	RespFileContent
	RespFileContentEnd
	RespAck
	RespError
)

// ErrorKind mirrors rerr.Kind but travels as a plain byte on the wire
// so internal/protocol never imports internal/rerr (kept leaf-level).
type ErrorKind uint8

const (
	ErrUserInput ErrorKind = iota
	ErrFilesystem
	ErrProtocol
	ErrTransport
	ErrPolicy
	ErrLaunch
)

// Response is the alphabet of replies a doer sends back to the boss.
// Every Command is eventually answered by exactly one terminal
// Response, optionally preceded by streaming intermediate responses
// (EntryDetails/FileContent).
type Response struct {
	tag ResponseTag

	RootDetails RootDetails

	RelPath      string
	EntryDetails EntryDetails

	Offset uint64
	Bytes  []byte

	ErrorKind ErrorKind
	Message   string
}

func (r Response) Tag() ResponseTag { return r.tag }

func RespRootDetailsOf(d RootDetails) Response {
	return Response{tag: RespRootDetails, RootDetails: d}
}

func RespEntryDetailsOf(relPath string, d EntryDetails) Response {
	return Response{tag: RespEntryDetails, RelPath: relPath, EntryDetails: d}
}

func RespEndOfEntriesOf() Response { return Response{tag: RespEndOfEntries} }

func RespFileContentOf(offset uint64, b []byte) Response {
	return Response{tag: RespFileContent, Offset: offset, Bytes: b}
}

func RespFileContentEndOf() Response { return Response{tag: RespFileContentEnd} }

func RespAckOf() Response { return Response{tag: RespAck} }

func RespErrorOf(kind ErrorKind, message string) Response {
	return Response{tag: RespError, ErrorKind: kind, Message: message}
}

// Encode appends the canonical binary form of r to w.
func (r Response) Encode(w *Writer) {
	w.WriteU8(uint8(r.tag))
	switch r.tag {
	case RespRootDetails:
		r.RootDetails.encode(w)
	case RespEntryDetails:
		w.WriteString(r.RelPath)
		r.EntryDetails.encode(w)
	case RespEndOfEntries:
		// no payload
	case RespFileContent:
		w.WriteU64(r.Offset)
		w.WriteBytes(r.Bytes)
	case RespFileContentEnd:
		// no payload
	case RespAck:
		// no payload
	case RespError:
		w.WriteU8(uint8(r.ErrorKind))
		w.WriteString(r.Message)
	}
}

// DecodeResponse decodes exactly one Response from r.
func DecodeResponse(r *Reader) (Response, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return Response{}, err
	}
	tag := ResponseTag(tagByte)
	switch tag {
	case RespRootDetails:
		d, err := decodeRootDetails(r)
		if err != nil {
			return Response{}, err
		}
		return RespRootDetailsOf(d), nil
	case RespEntryDetails:
		rel, err := r.ReadString()
		if err != nil {
			return Response{}, err
		}
		d, err := decodeEntry(r)
		if err != nil {
			return Response{}, err
		}
		return RespEntryDetailsOf(rel, d), nil
	case RespEndOfEntries:
		return RespEndOfEntriesOf(), nil
	case RespFileContent:
		off, err := r.ReadU64()
		if err != nil {
			return Response{}, err
		}
		b, err := r.ReadBytes()
		if err != nil {
			return Response{}, err
		}
		return RespFileContentOf(off, b), nil
	case RespFileContentEnd:
		return RespFileContentEndOf(), nil
	case RespAck:
		return RespAckOf(), nil
	case RespError:
		kind, err := r.ReadU8()
		if err != nil {
			return Response{}, err
		}
		msg, err := r.ReadString()
		if err != nil {
			return Response{}, err
		}
		return RespErrorOf(ErrorKind(kind), msg), nil
	default:
		return Response{}, fmt.Errorf("protocol: unknown response tag %d", tagByte)
	}
}
