package netpacket

import (
	"encoding/binary"
	"fmt"
)

// NoNode is the sentinel destination value meaning "not a specific
// node", used by list-addressed packets (ToSys == 0) and by the
// subscriber list format in internal/subscriber. It is distinct from
// NoRoute below: NoNode means "this packet names a list instead of a
// single node", NoRoute means "the routing table has no next hop for
// this node at all".
const NoNode = 0

// NoRoute is the sentinel next-hop value a BBS-list lookup returns
// when a node has no known route. Packets addressed to NoRoute are
// dead-letter, never promoted to an outbound bundle.
const NoRoute uint16 = 0xFFFE

// FTNFakeOutboundNode is the sentinel destination a post dispatcher
// uses when handing a post to an FTN-attached sub-board: the packet is
// never actually transmitted over wwivnet, it is written into the
// gateway's own pending queue for the FTN Gateway Queue Adapter (C16)
// to drain and re-file into the area's JAM echo base. Chosen from the
// same high end of the uint16 range as MainTypeDead/NoRoute so it can
// never collide with a real wwivnet node number in practice.
const FTNFakeOutboundNode uint16 = 0xFFF0

// Packet is one wwivnet packet: its header, an optional destination
// list (present when ListLen > 0), and its text payload. The header's
// ListLen and Length fields are kept in sync with List and Text by
// New and must not be hand-edited independently of them afterward.
type Packet struct {
	Header NetHeader
	List   []uint16
	Text   []byte
}

// New builds a Packet, deriving Header.ListLen and Header.Length from
// list and text so the two can never disagree with the data they
// describe.
func New(header NetHeader, list []uint16, text []byte) Packet {
	header.ListLen = uint16(len(list))
	header.Length = uint32(len(text))
	if len(list) > 0 {
		header.ToSys = NoNode
	}
	return Packet{Header: header, List: list, Text: text}
}

// Validate checks the structural invariants the packet model requires:
// ListLen must agree with len(List), Length must agree with len(Text),
// and a list-addressed packet (non-empty List) must carry ToSys ==
// NoNode rather than also naming a single destination.
func (p Packet) Validate() error {
	if int(p.Header.ListLen) != len(p.List) {
		return fmt.Errorf("netpacket: header.ListLen=%d but len(List)=%d", p.Header.ListLen, len(p.List))
	}
	if int(p.Header.Length) != len(p.Text) {
		return fmt.Errorf("netpacket: header.Length=%d but len(Text)=%d", p.Header.Length, len(p.Text))
	}
	if len(p.List) > 0 && p.Header.ToSys != NoNode {
		return fmt.Errorf("netpacket: list-addressed packet must have ToSys=0, got %d", p.Header.ToSys)
	}
	return nil
}

// Deleted reports whether this packet has been tombstoned in place by
// packetio.DeletePacket (spec §4.9): its MainType is overwritten with
// MainTypeDead rather than the record being physically removed.
func (p Packet) Deleted() bool {
	return p.Header.MainType == MainTypeDead
}

// MarshalBinary encodes the packet as header + list + text, the exact
// layout packetio reads back.
func (p Packet) MarshalBinary() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	hdr, err := p.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(hdr)+len(p.List)*2+len(p.Text))
	out = append(out, hdr...)
	for _, node := range p.List {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], node)
		out = append(out, buf[:]...)
	}
	out = append(out, p.Text...)
	return out, nil
}

// UnmarshalBinary decodes a packet from its on-disk layout. It does
// not call Validate; callers that need the invariants checked should
// call it explicitly, since packetio intentionally tolerates reading
// back a packet with a stale header it is about to repair.
func (p *Packet) UnmarshalBinary(data []byte) error {
	var h NetHeader
	if err := h.UnmarshalBinary(data); err != nil {
		return err
	}
	off := HeaderSize

	list := make([]uint16, h.ListLen)
	for i := range list {
		if off+2 > len(data) {
			return fmt.Errorf("netpacket: truncated list at entry %d", i)
		}
		list[i] = binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
	}

	if off+int(h.Length) > len(data) {
		return fmt.Errorf("netpacket: truncated text: want %d have %d", h.Length, len(data)-off)
	}
	text := make([]byte, h.Length)
	copy(text, data[off:off+int(h.Length)])

	p.Header = h
	p.List = list
	p.Text = text
	return nil
}
