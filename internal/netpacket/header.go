// Package netpacket implements the wwivnet wire packet model (spec
// component C8): a fixed 23-byte header, the structural invariants
// between its fields and the variable-length list/text that follow it,
// and the per-main-type parsing of that text. It is grounded on the
// teacher's internal/ftn packet header, adapted from FTN Type-2+'s
// 58-byte fixed layout to wwivnet's leaner header and main/minor type
// scheme, the same way internal/ftn itself models FTS-0001.
package netpacket

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Main types, mirroring WWIV's net_header_rec.main_type values. Only
// the subset the dispatcher and gateway actually exercise is named;
// unrecognized values still round-trip through Packet unexamined.
const (
	MainTypeNetInfo   = 1
	MainTypeEmail     = 2
	MainTypePost      = 3
	MainTypeFile      = 4
	MainTypePrePost   = 5
	MainTypeStatus    = 6
	MainTypeNews      = 7
	MainTypeExternal  = 8
	MainTypeEmailName = 9 // email-by-name
	MainTypeSSM       = 20
	MainTypeNewPost   = 23
	MainTypeDead      = 0xFFFF // tombstoned by delete; never dispatched
)

// Minor types recognized under MainTypeNetInfo. MinorTypeFile is the
// generic flags+basename+payload replacement; any other minor type is
// raw replacement content for a well-known filename the caller derives
// from the minor-type value itself.
const (
	MinorTypeFile = 1
)

// Bits of ParsedText.NetInfoFlags for MinorTypeFile payloads.
const (
	NetInfoOverwrite = 1 << 0
	NetInfoZipped    = 1 << 1
)

// NetHeader is the fixed 23-byte wwivnet packet header. Field order
// and widths match the on-wire layout exactly: binary.Write/Read walk
// the struct field by field with no inserted padding, so reordering
// these fields changes the wire format.
type NetHeader struct {
	FromUser  uint16
	FromSys   uint16
	ListLen   uint16 // number of uint16 entries following the header, 0 if not list-addressed
	MainType  uint16
	MinorType uint16
	ToUser    uint16
	ToSys     uint16
	Daten     uint32
	Length    uint32 // byte length of Text
	Method    uint8  // 0 = uncompressed, 1 = de1-compressed
}

// HeaderSize is the on-disk size of NetHeader.
const HeaderSize = 2*7 + 4*2 + 1

func init() {
	if sz := binary.Size(NetHeader{}); sz != HeaderSize {
		panic(fmt.Sprintf("netpacket: NetHeader size mismatch: binary.Size=%d want=%d", sz, HeaderSize))
	}
}

func (h NetHeader) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("netpacket: marshal header: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *NetHeader) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("netpacket: header too short: %d < %d", len(data), HeaderSize)
	}
	return binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, h)
}
