// Package instance implements the instance registry (spec component
// C4): one fixed-size record per running node, indexed by node number,
// in a single shared file. It is grounded on the teacher's
// internal/multinode NodeStatus record layout, narrowed down to the
// exact fields the spec calls out (node number, current user, location
// and sub-location codes, flags, modem speed, started-at/last-updated
// timestamps).
package instance

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/stlalpha/wwivcore/internal/clock"
)

// Flag bits for Record.Flags.
const (
	FlagOnline = 1 << iota
	FlagAvailableForChat
	FlagInvisible
)

// Location codes describing what subsystem a node is currently in.
// Mirrors the teacher's NodeStatus* constants, trimmed to the subset
// the instance registry itself needs to report (detailed activity text
// lives with the session, not the shared registry).
const (
	LocationOffline = 0
	LocationWFC     = 1
	LocationLogon   = 2
	LocationMain    = 3
	LocationMsgBase = 4
	LocationFileBase = 5
	LocationChat    = 6
	LocationDoor    = 7
	LocationXfer    = 8
	LocationMaint   = 9
)

// Record is one node's fixed-size slot in the instance file.
type Record struct {
	NodeNum     uint16
	UserNum     uint16
	Location    uint8
	SubLocation uint8
	Flags       uint16
	ModemSpeed  uint32
	StartedAt   uint32 // Daten
	LastUpdated uint32 // Daten
	Reserved    [16]byte
}

// RecordSize is the on-disk size of one Record.
const RecordSize = 2 + 2 + 1 + 1 + 2 + 4 + 4 + 4 + 16

func init() {
	if sz := binary.Size(Record{}); sz != RecordSize {
		panic(fmt.Sprintf("instance: Record size mismatch: binary.Size=%d want=%d", sz, RecordSize))
	}
}

// Online reports whether FlagOnline is set.
func (r Record) Online() bool { return r.Flags&FlagOnline != 0 }

// Validate enforces the registry's two structural invariants: a node
// that isn't online must not claim a user, and LastUpdated can never
// precede StartedAt.
func (r Record) Validate() error {
	if !r.Online() && r.UserNum != 0 {
		return fmt.Errorf("instance: node %d: offline record carries user %d", r.NodeNum, r.UserNum)
	}
	if r.LastUpdated < r.StartedAt {
		return fmt.Errorf("instance: node %d: last_updated %d precedes started_at %d", r.NodeNum, r.LastUpdated, r.StartedAt)
	}
	return nil
}

// MarshalBinary encodes the record to its fixed-size little-endian form.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	if err := binary.Write(buf, binary.LittleEndian, r); err != nil {
		return nil, fmt.Errorf("instance: marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a fixed-size record.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("instance: record too short: %d < %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data[:RecordSize]), binary.LittleEndian, r)
}

// NewOffline returns the zero/offline record for a node number, the
// value every never-used slot should read as.
func NewOffline(nodeNum uint16) Record {
	return Record{NodeNum: nodeNum, Location: LocationOffline}
}

// Touch marks the record online for userNum at the given location,
// stamping StartedAt if this is a fresh logon (StartedAt is zero or the
// record was previously offline) and always stamping LastUpdated.
func (r *Record) Touch(clk clock.Clock, userNum uint16, location, subLocation uint8) {
	now := uint32(clock.Now(clk))
	if !r.Online() || r.StartedAt == 0 {
		r.StartedAt = now
	}
	r.Flags |= FlagOnline
	r.UserNum = userNum
	r.Location = location
	r.SubLocation = subLocation
	r.LastUpdated = now
}

// Clear marks the record offline and drops the user association, per
// the invariant that an offline node carries no user number.
func (r *Record) Clear(clk clock.Clock) {
	r.Flags &^= FlagOnline
	r.UserNum = 0
	r.Location = LocationOffline
	r.SubLocation = 0
	r.LastUpdated = uint32(clock.Now(clk))
}
