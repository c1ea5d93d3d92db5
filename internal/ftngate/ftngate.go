// Package ftngate implements the FTN Gateway Queue Adapter (spec
// component C16): the downstream consumer internal/dispatch hands
// FTN-bound posts to. internal/dispatch never talks FTN directly; it writes an
// ordinary wwivnet packet addressed to netpacket.FTNFakeOutboundNode
// into the attachment's configured directory, exactly like any other
// pending packet. Adapter drains that directory, resolves each
// packet's subtype back to the echo tag's sub-board via
// board.Registry.FindByEchoTag, and re-files it as a JAM echomail
// message for internal/tosser to export over real FTN transport. It is
// grounded on internal/inbound's read-process-remove shape applied to
// a gateway queue instead of local.net, and on internal/jam's
// WriteMessageExt for the echomail write itself.
package ftngate

import (
	"fmt"
	"log"
	"os"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/jam"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
)

// Adapter drains one FTN network's gateway queue.
type Adapter struct {
	boardReg  *board.Registry
	network   string // configured network name, matching board.NetAttachment.Network
	directory string
}

// New builds an Adapter for one FTN network's gateway directory.
// network must match the Network field the ftn-type NetAttachment
// entries carry so FindByEchoTag can resolve an arriving packet's
// subtype back to the right sub-board.
func New(boardReg *board.Registry, network, directory string) *Adapter {
	return &Adapter{boardReg: boardReg, network: network, directory: directory}
}

// Result summarizes one DrainLocal call.
type Result struct {
	Filed   int // posts successfully converted to JAM messages
	Skipped int // packets that matched no sub-board's echo tag, or failed to parse
}

// DrainLocal promotes any pending packets in the gateway directory onto
// their netpacket.FTNFakeOutboundNode destination file, reads every
// packet off it, converts each into a JAM echomail message on the
// sub-board its subtype (the echo tag) resolves to, and removes the
// drained file. A packet whose echo tag matches no sub-board, or whose
// JAM write fails, is logged and skipped rather than aborting the rest
// of the file, mirroring internal/inbound.Processor.ProcessLocal.
func (a *Adapter) DrainLocal() (Result, error) {
	if err := packetio.ScanPending(a.directory, 0); err != nil {
		return Result{}, fmt.Errorf("ftngate: scan pending in %s: %w", a.directory, err)
	}

	path := packetio.DestinationPath(a.directory, netpacket.FTNFakeOutboundNode, true)
	packets, err := packetio.ReadAll(path)
	if err != nil {
		return Result{}, fmt.Errorf("ftngate: read %s: %w", path, err)
	}
	if len(packets) == 0 {
		return Result{}, nil
	}

	var res Result
	for _, pkt := range packets {
		if pkt.Deleted() {
			res.Skipped++
			continue
		}
		if err := a.fileToJAM(pkt); err != nil {
			log.Printf("WARN: ftngate: %s: %v", a.network, err)
			res.Skipped++
			continue
		}
		res.Filed++
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return res, fmt.Errorf("ftngate: remove drained %s: %w", path, err)
	}
	return res, nil
}

func (a *Adapter) fileToJAM(pkt netpacket.Packet) error {
	parsed, err := netpacket.Parse(pkt.Header.MainType, pkt.Header.MinorType, pkt.Text)
	if err != nil {
		return fmt.Errorf("parse post text: %w", err)
	}

	desc, att, ok := a.boardReg.FindByEchoTag(a.network, parsed.Subtype)
	if !ok {
		return fmt.Errorf("no sub-board attached to %s/%s", a.network, parsed.Subtype)
	}

	base, err := a.boardReg.GetBase(desc.ID)
	if err != nil {
		return fmt.Errorf("open base for %q: %w", desc.Tag, err)
	}
	defer base.Close()

	msgType := jam.DetermineMessageType(desc.AreaType, att.SubType)
	msg := jam.NewMessage()
	msg.From = parsed.Sender
	msg.Subject = parsed.Title
	msg.DateTime = clock.Daten(pkt.Header.Daten).Time()
	msg.Text = string(parsed.Body)

	if _, err := base.WriteMessageExt(msg, msgType, att.SubType, "", ""); err != nil {
		return fmt.Errorf("write message to %q: %w", desc.Tag, err)
	}
	return nil
}
