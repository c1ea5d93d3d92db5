// Package email implements the shared email store (spec component
// C7): a single fixed-record file in which every recipient of a
// multi-recipient message gets its own slot pointing at one shared
// text blob, and deletion tombstones a slot by zeroing its recipient
// rather than physically compacting the file. It reuses
// internal/recio the same way internal/msgbase does, grounded on the
// teacher's internal/jam header+index split.
package email

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Flags for Record.Status.
const (
	StatusMultiMail = 1 << iota // one of several recipients of the same send
	StatusRead
	StatusDeleted // slot tombstoned; ToUser is forced to 0 alongside this
)

// Record is one recipient's fixed-size slot in email.dat.
type Record struct {
	FromSys    uint16
	FromUser   uint16
	ToSys      uint16
	ToUser     uint16 // 0 marks a tombstoned (deleted) slot
	DateWritten uint32 // Daten
	Status     uint16
	Title      [60]byte
	TextOffset uint32 // offset into the shared email text file
	NumBytes   uint32 // length of the text blob
	GroupID    uint32 // correlates every recipient slot of one multi-send
	Reserved   [8]byte
}

// RecordSize is the on-disk size of Record.
const RecordSize = 2 + 2 + 2 + 2 + 4 + 2 + 60 + 4 + 4 + 4 + 8

func init() {
	if sz := binary.Size(Record{}); sz != RecordSize {
		panic(fmt.Sprintf("email: Record size mismatch: binary.Size=%d want=%d", sz, RecordSize))
	}
}

// Deleted reports whether the slot has been tombstoned.
func (r Record) Deleted() bool { return r.Status&StatusDeleted != 0 || r.ToUser == 0 }

// TitleString returns the title with trailing NUL padding trimmed.
func (r Record) TitleString() string {
	n := bytes.IndexByte(r.Title[:], 0)
	if n < 0 {
		n = len(r.Title)
	}
	return string(r.Title[:n])
}

// SetTitle copies s into Title, truncating if it is too long to fit.
func (r *Record) SetTitle(s string) {
	var buf [60]byte
	copy(buf[:], s)
	r.Title = buf
}

// Tombstone zeroes ToUser and sets StatusDeleted, per the store's
// delete-by-zeroing-touser contract: the slot stays in place (so every
// other recipient's slot index is unaffected) but is no longer visible
// to ToUser's inbox.
func (r *Record) Tombstone() {
	r.ToUser = 0
	r.Status |= StatusDeleted
}

func (r Record) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return nil, fmt.Errorf("email: marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("email: record too short: %d < %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, r)
}
