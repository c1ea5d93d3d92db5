// Package status implements the process-wide counters store (spec
// component C3): user/caller/mail counts, a rolling 3-entry date ring,
// and the 7-slot file-change vector peers use to invalidate their
// caches. It is grounded on the teacher's internal/multinode NodeStatus
// fixed binary record and the jam package's open/read/write-back
// transaction shape.
package status

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FileChange category indices into Record.FileChange.
const (
	ChangeUsers = iota
	ChangeSubs
	ChangeDirectories
	ChangeEmail
	ChangeChains
	ChangeGeneral
	ChangeNetworks
	numFileChangeSlots
)

const logRingSize = 3

// Record is the fixed-size status record (spec §3). Field order and
// widths are fixed on disk; add new fields only by growing Reserved.
type Record struct {
	Version      uint16
	_            uint16 // padding to keep 32-bit fields aligned on disk
	CreatedDaten uint32

	Callers       uint32 // total caller count (monotonic, never resets)
	CallersToday  uint32
	MailToday     uint32
	PostsToday    uint32
	UploadsToday  uint32
	Days          uint32 // number of times new_day() has rolled over

	FileChange [numFileChangeSlots]byte

	// LogDates holds the 3 most recent dates new_day() rotated in,
	// oldest first, each an 8-char YYYYMMDD string. The record stores
	// no log filenames. A corrupted (non-NUL-terminated or
	// wrong-length) entry is treated as empty by ValidLogDate.
	LogDates [logRingSize][8]byte

	Reserved [64]byte
}

// RecordSize is the on-disk/wire size of Record in bytes.
const RecordSize = 2 + 2 + 4 + 4*6 + numFileChangeSlots + logRingSize*8 + 64

func init() {
	if sz := binary.Size(Record{}); sz != RecordSize {
		panic(fmt.Sprintf("status: Record size mismatch: binary.Size=%d want=%d", sz, RecordSize))
	}
}

// MarshalBinary encodes the record to its fixed-size little-endian form.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return nil, fmt.Errorf("status: marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a fixed-size record. It returns an error if
// data is shorter than RecordSize.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("status: record too short: %d < %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, r)
}

// ValidLogDate reports whether slot i of the date ring holds a
// well-formed, NUL-terminated 8-character date string.
func (r *Record) ValidLogDate(i int) bool {
	s := r.LogDates[i]
	nul := bytes.IndexByte(s[:], 0)
	if nul < 0 {
		nul = len(s)
	}
	if nul != 8 {
		return false
	}
	for _, c := range s[:8] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SetLogDate overwrites slot i with an 8-digit YYYYMMDD date string,
// truncating/padding to fit. Used both for normal rotation and for
// repairing a corrupted slot (spec §4.3's "overwrite with today's date
// before use").
func (r *Record) SetLogDate(i int, yyyymmdd string) {
	var buf [8]byte
	copy(buf[:], yyyymmdd)
	r.LogDates[i] = buf
}

// BumpFileChange increments the byte for category so that peers that
// cached a prior value observe a change on their next GetStatus.
func (r *Record) BumpFileChange(category int) {
	r.FileChange[category]++
}
