// Package msgbase implements the native message base format (spec
// component C6): a single fixed-record ".sub" file whose first record
// is a header carrying a signature, format revision, live-post count
// and modification counter, followed by one PostRecord per message.
// Message text lives in a companion ".dt" file addressed by byte
// offset, the same header/index/text split the teacher's internal/jam
// package uses for its .jhr/.jdt pair — msgbase reuses that shape for
// WWIV's native (non-JAM) subtype storage instead of JAM's format.
package msgbase

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Signature identifies a valid header record.
var Signature = [4]byte{'W', 'W', 'I', 'V'}

// CurrentRevision is written into fresh bases and bumped whenever the
// on-disk PostRecord layout changes incompatibly.
const CurrentRevision = 1

// Header is record 0 of the .sub file.
type Header struct {
	Signature  [4]byte
	Revision   uint16
	NumMsgs    uint32
	ModCounter uint32
	Reserved   [92]byte
}

// PostRecord is one message's fixed-size slot, records 1..N of the
// .sub file. Title/DateWritten/QScan/OwnerSys/OwnerUser together form
// the equality predicate Resync uses to relocate a post whose record
// index shifted under it (spec §4.6).
type PostRecord struct {
	Title       [72]byte
	AnonFlag    uint8
	DateWritten uint32 // Daten
	QScan       uint32 // global scan pointer, monotonically increasing across the whole system
	OwnerSys    uint16
	OwnerUser   uint16
	NumBytes    uint32 // length of text in the companion .dt file
	TextOffset  uint32 // byte offset into the companion .dt file
	MsgNum      uint32 // stable message number, survives compaction
	Options     uint16
	Reserved    [7]byte
}

// RecordSize is the on-disk size shared by Header and PostRecord; both
// must marshal to exactly this many bytes so the two interleave in one
// fixed-stride file.
const RecordSize = 106

func init() {
	if sz := binary.Size(Header{}); sz != RecordSize {
		panic(fmt.Sprintf("msgbase: Header size mismatch: binary.Size=%d want=%d", sz, RecordSize))
	}
	if sz := binary.Size(PostRecord{}); sz != RecordSize {
		panic(fmt.Sprintf("msgbase: PostRecord size mismatch: binary.Size=%d want=%d", sz, RecordSize))
	}
}

// OptDeleted and other option bits for PostRecord.Options.
const (
	OptDeleted = 1 << iota
	OptPrivate
	OptLocked
)

// Deleted reports whether OptDeleted is set.
func (p PostRecord) Deleted() bool { return p.Options&OptDeleted != 0 }

// TitleString returns the title with trailing NUL padding trimmed.
func (p PostRecord) TitleString() string {
	n := bytes.IndexByte(p.Title[:], 0)
	if n < 0 {
		n = len(p.Title)
	}
	return string(p.Title[:n])
}

// SetTitle copies s into Title, truncating if it is too long to fit.
func (p *PostRecord) SetTitle(s string) {
	var buf [72]byte
	copy(buf[:], s)
	p.Title = buf
}

// matches reports whether p and other agree on every field Resync
// treats as identity: date, scan pointer, owning system/user and
// title. Two distinct posts colliding on all five is vanishingly
// unlikely in practice and is the same assumption the teacher's JAM
// lastread matching makes for MSGID correlation.
func (p PostRecord) matches(other PostRecord) bool {
	return p.DateWritten == other.DateWritten &&
		p.QScan == other.QScan &&
		p.OwnerSys == other.OwnerSys &&
		p.OwnerUser == other.OwnerUser &&
		p.TitleString() == other.TitleString()
}

func (h Header) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("msgbase: marshal header: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("msgbase: header record too short: %d < %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, h)
}

func (p PostRecord) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, p); err != nil {
		return nil, fmt.Errorf("msgbase: marshal post: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PostRecord) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("msgbase: post record too short: %d < %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, p)
}
