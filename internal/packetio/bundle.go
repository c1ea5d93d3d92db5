package packetio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// bundleSignature identifies a de1-compressed bundle file: several
// packets destined for the same remote system concatenated behind one
// header, the wwivnet analogue of the teacher's FTN bundle format in
// internal/ftn/bundle.go.
var bundleSignature = [4]byte{'D', 'E', '1', 0}

// BundleHeader precedes a de1 bundle's concatenated packet records.
type BundleHeader struct {
	Signature  [4]byte
	Version    uint16
	SourceSys  uint16
	DestSys    uint16
	Daten      uint32
	NumPackets uint32
	Reserved   [128]byte
}

// BundleHeaderSize is the fixed on-disk size of BundleHeader.
const BundleHeaderSize = 146

func init() {
	if sz := binary.Size(BundleHeader{}); sz != BundleHeaderSize {
		panic(fmt.Sprintf("packetio: BundleHeader size mismatch: binary.Size=%d want=%d", sz, BundleHeaderSize))
	}
}

func (h BundleHeader) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(BundleHeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("packetio: marshal bundle header: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *BundleHeader) UnmarshalBinary(data []byte) error {
	if len(data) < BundleHeaderSize {
		return fmt.Errorf("packetio: bundle header too short: %d < %d", len(data), BundleHeaderSize)
	}
	if err := binary.Read(bytes.NewReader(data[:BundleHeaderSize]), binary.LittleEndian, h); err != nil {
		return err
	}
	if h.Signature != bundleSignature {
		return fmt.Errorf("packetio: bad bundle signature %q", h.Signature)
	}
	return nil
}

// NewBundleHeader builds a header for a bundle of numPackets packets
// traveling from sourceSys to destSys, stamped with daten.
func NewBundleHeader(sourceSys, destSys uint16, daten uint32, numPackets int) BundleHeader {
	return BundleHeader{
		Signature:  bundleSignature,
		Version:    1,
		SourceSys:  sourceSys,
		DestSys:    destSys,
		Daten:      daten,
		NumPackets: uint32(numPackets),
	}
}
