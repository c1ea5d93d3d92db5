// Package inbound implements inbound post processing: draining
// local.net after a network poll, filing each live NewPost packet into
// its sub-board's native message base (spec component C6), and
// handing it back to internal/dispatch so it gates onward to any
// other network the board is attached to. It is grounded on
// internal/packetio's ScanPending (the same read-process-remove
// shape, applied to local.net instead of a p*.net pending file) and
// internal/dispatch's Post/Dispatcher for the redistribution step.
package inbound

import (
	"fmt"
	"log"
	"os"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/dispatch"
	"github.com/stlalpha/wwivcore/internal/msgbase"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
)

// Processor files posts arriving on one wwivnet network's local.net
// into their sub-boards and redistributes them.
type Processor struct {
	boardReg   *board.Registry
	dispatcher *dispatch.Dispatcher
	network    string // configured network name this local.net belongs to
	directory  string
}

// New builds a Processor for one wwivnet network attachment point.
// network must match the Network field sub-boards use in their
// NetAttachment entries so FindBySubtype can resolve an arriving
// packet's subtype back to the right board.
func New(boardReg *board.Registry, dispatcher *dispatch.Dispatcher, network, directory string) *Processor {
	return &Processor{boardReg: boardReg, dispatcher: dispatcher, network: network, directory: directory}
}

// Result summarizes one ProcessLocal call.
type Result struct {
	Filed   int // posts successfully written to the native message base and redistributed
	Skipped int // packets that were not live NewPost traffic, or matched no sub-board
}

// ProcessLocal reads every packet out of local.net, files each live
// MainTypeNewPost packet into the sub-board its subtype resolves to,
// and dispatches it onward to every other network that sub-board rides.
// A packet whose subtype matches no sub-board, or whose message base
// write fails, is logged and skipped rather than aborting the rest of
// the file — the same per-item error handling internal/dispatch.Dispatch
// uses. local.net is removed once every record in it has been
// considered, mirroring packetio.ScanPending's drain of a pending file.
func (p *Processor) ProcessLocal() (Result, error) {
	path := packetio.LocalPath(p.directory)
	packets, err := packetio.ReadAll(path)
	if err != nil {
		return Result{}, fmt.Errorf("inbound: read %s: %w", path, err)
	}
	if len(packets) == 0 {
		return Result{}, nil
	}

	var res Result
	for _, pkt := range packets {
		if pkt.Deleted() || pkt.Header.MainType != netpacket.MainTypeNewPost {
			res.Skipped++
			continue
		}
		if err := p.fileAndRedistribute(pkt); err != nil {
			log.Printf("WARN: inbound: %s/%s: %v", p.network, describeSubtype(pkt), err)
			res.Skipped++
			continue
		}
		res.Filed++
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return res, fmt.Errorf("inbound: remove drained %s: %w", path, err)
	}
	return res, nil
}

func describeSubtype(pkt netpacket.Packet) string {
	parsed, err := netpacket.Parse(pkt.Header.MainType, pkt.Header.MinorType, pkt.Text)
	if err != nil {
		return "?"
	}
	return parsed.Subtype
}

func (p *Processor) fileAndRedistribute(pkt netpacket.Packet) error {
	parsed, err := netpacket.Parse(pkt.Header.MainType, pkt.Header.MinorType, pkt.Text)
	if err != nil {
		return fmt.Errorf("parse post text: %w", err)
	}

	desc, att, ok := p.boardReg.FindBySubtype(p.network, parsed.Subtype)
	if !ok {
		return fmt.Errorf("no sub-board attached to %s/%s", p.network, parsed.Subtype)
	}

	base, err := p.boardReg.GetMsgBase(desc.ID)
	if err != nil {
		return fmt.Errorf("open base for %q: %w", desc.Tag, err)
	}

	var rec msgbase.PostRecord
	rec.SetTitle(parsed.Title)
	rec.DateWritten = pkt.Header.Daten
	rec.OwnerSys = pkt.Header.FromSys
	rec.OwnerUser = pkt.Header.FromUser

	if _, err := base.AddPost(rec, parsed.Body); err != nil {
		return fmt.Errorf("write message to %q: %w", desc.Tag, err)
	}

	errs := p.dispatcher.Dispatch(dispatch.Post{
		BoardID:             desc.ID,
		OriginatingNetIndex: att.NetworkIndex,
		FromSys:             pkt.Header.FromSys,
		FromUser:            pkt.Header.FromUser,
		Daten:               pkt.Header.Daten,
		Title:               parsed.Title,
		Sender:              parsed.Sender,
		Body:                parsed.Body,
	})
	if len(errs) > 0 {
		return fmt.Errorf("redistribute: %v", errs)
	}
	return nil
}
