// Package dispatch implements the post dispatcher (spec component
// C11): converting a post already written to its sub-board's native
// message base into one wwivnet packet per network that sub-board is
// attached to, deciding per attachment whether this instance hosts or
// merely gates that subtype, and rewriting the packet header and
// payload subtype accordingly. It is grounded on internal/board for
// attachment lookup, internal/subscriber for the hosting fan-out list,
// internal/netpacket for header/payload construction and
// internal/packetio for handing the result to the pending queue.
//
// FTN attachments get the same packet treatment as a non-hosting
// wwivnet leaf: Dispatch addresses the packet to
// netpacket.FTNFakeOutboundNode with an empty destination list and
// writes it into the attachment's configured directory exactly like
// any other pending packet. It is never actually transmitted over
// wwivnet; internal/ftngate (C16) drains that directory, looks the
// echo tag back up to a sub-board, and re-files the post into the
// area's JAM echo base for internal/tosser to export. This keeps JAM
// fed entirely from the dispatcher's own packet model rather than
// bypassed by a parallel write path.
package dispatch

import (
	"fmt"
	"log"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
	"github.com/stlalpha/wwivcore/internal/subscriber"
)

// AppID is the producing-subsystem byte this package stamps onto every
// pending file it creates, distinguishing its pending queue entries
// from other producers (e.g. internal/tosser) sharing the same network
// directory.
const AppID byte = 'P'

// NetworkConfig names one wwivnet network's own node number and the
// directory its s{node}.net/p{origin}-{appId}-{seq}.net files live in.
type NetworkConfig struct {
	OwnNode   uint16
	Directory string
}

// Dispatcher fans a post out to every wwivnet network its sub-board is
// attached to.
type Dispatcher struct {
	boardReg *board.Registry
	networks map[string]NetworkConfig // keyed by board.NetAttachment.Network
}

// New builds a Dispatcher over boardReg. networks must carry an entry
// for every wwivnet network named by any sub-board's attachments;
// dispatch to an unconfigured network is reported as a per-attachment
// error rather than aborting the whole post (spec.md's "any I/O error
// on a given net is logged and does not abort the other nets'
// dispatch").
func New(boardReg *board.Registry, networks map[string]NetworkConfig) *Dispatcher {
	return &Dispatcher{boardReg: boardReg, networks: networks}
}

// Post is a sub-board post, already durably written to its native
// message base, ready to be converted into wwivnet packets.
type Post struct {
	BoardID int

	// OriginatingNetIndex is the index into the sub-board's Attachments
	// the post arrived on, or -1 if it was created locally on this
	// instance rather than received from any network.
	OriginatingNetIndex int

	// FromSys/FromUser/Daten are the original sender and timestamp as
	// they should appear when a header is NOT rewritten (non-gating
	// attachments preserve them so a reply routes to the true author).
	FromSys  uint16
	FromUser uint16
	Daten    uint32

	Title  string
	Sender string
	Body   []byte

	// SkipNodes are additional nodes a caller wants excluded from a
	// hosting attachment's fan-out, beyond the original sender.
	SkipNodes []uint16
}

// Dispatch converts p into one packet per wwivnet attachment on its
// sub-board: a hosting attachment (HostNode == 0) writes a
// list-addressed packet to every subscriber but the sender and any
// SkipNodes, dropping the post if that leaves nobody; a non-hosting
// attachment writes a single packet addressed to its host. Every
// attachment whose network index differs from OriginatingNetIndex has
// its header rewritten to originate from this instance's node on that
// network, per spec.md's gating rule. FTN attachments get a packet
// addressed to netpacket.FTNFakeOutboundNode instead of a real
// destination, handed to internal/ftngate rather than transmitted.
// Errors are collected per attachment, not returned early, so one bad
// network never blocks the others.
func (d *Dispatcher) Dispatch(p Post) []error {
	area, ok := d.boardReg.Get(p.BoardID)
	if !ok {
		return []error{fmt.Errorf("dispatch: no sub-board %d", p.BoardID)}
	}

	origin := packetio.OriginLocal
	if p.OriginatingNetIndex >= 0 {
		origin = packetio.OriginNetwork
	}

	dateLine := clock.FormatWWIVnetTime(clock.Daten(p.Daten).Time())

	var errs []error
	for i, att := range area.Attachments {
		net, ok := d.networks[att.Network]
		if !ok {
			errs = append(errs, fmt.Errorf("dispatch: network %q not configured", att.Network))
			continue
		}

		if att.NetworkType == "ftn" {
			text := netpacket.Build(netpacket.MainTypeNewPost, 0, netpacket.ParsedText{
				Subtype: att.SubType,
				Title:   p.Title,
				Sender:  p.Sender,
				Date:    dateLine,
				Body:    p.Body,
			})
			hdr := netpacket.NetHeader{
				FromSys:  p.FromSys,
				FromUser: p.FromUser,
				ToSys:    netpacket.FTNFakeOutboundNode,
				MainType: netpacket.MainTypeNewPost,
				Daten:    p.Daten,
			}
			pkt := netpacket.New(hdr, nil, text)
			if err := createPendWithRetry(net.Directory, origin, pkt); err != nil {
				errs = append(errs, fmt.Errorf("dispatch: %s/%s: %w", att.Network, att.SubType, err))
				log.Printf("WARN: dispatch: %s/%s: %v", att.Network, att.SubType, err)
			}
			continue
		}

		hosting := att.HostNode == 0
		gating := i != p.OriginatingNetIndex

		if !hosting && !gating {
			// A leaf's only peer on this network is the host it just
			// received the post from; there is nowhere else to relay it.
			continue
		}

		fromSys, fromUser := p.FromSys, p.FromUser
		if gating {
			if net.OwnNode == 0 {
				errs = append(errs, fmt.Errorf("dispatch: network %q has no own node configured, cannot gate", att.Network))
				continue
			}
			fromSys, fromUser = net.OwnNode, 0
		}

		text := netpacket.Build(netpacket.MainTypeNewPost, 0, netpacket.ParsedText{
			Subtype: att.SubType,
			Title:   p.Title,
			Sender:  p.Sender,
			Date:    dateLine,
			Body:    p.Body,
		})
		hdr := netpacket.NetHeader{
			FromSys:  fromSys,
			FromUser: fromUser,
			MainType: netpacket.MainTypeNewPost,
			Daten:    p.Daten,
		}

		var pkt netpacket.Packet
		if hosting {
			subs, err := subscriber.Read(net.Directory, att.SubType)
			if err != nil {
				errs = append(errs, fmt.Errorf("dispatch: read subscribers for %s/%s: %w", att.Network, att.SubType, err))
				continue
			}
			subs = excludeNodes(subs, p.FromSys, p.SkipNodes)
			if len(subs) == 0 {
				log.Printf("TRACE: dispatch: %s/%s has no remaining subscribers after excluding sender, dropping", att.Network, att.SubType)
				continue
			}
			pkt = netpacket.New(hdr, subs, text)
		} else {
			hdr.ToSys = att.HostNode
			pkt = netpacket.New(hdr, nil, text)
		}

		if err := createPendWithRetry(net.Directory, origin, pkt); err != nil {
			errs = append(errs, fmt.Errorf("dispatch: %s/%s: %w", att.Network, att.SubType, err))
			log.Printf("WARN: dispatch: %s/%s: %v", att.Network, att.SubType, err)
		}
	}
	return errs
}

func excludeNodes(subs []uint16, sender uint16, skip []uint16) []uint16 {
	drop := make(map[uint16]bool, len(skip)+1)
	drop[sender] = true
	for _, n := range skip {
		drop[n] = true
	}
	out := subs[:0]
	for _, n := range subs {
		if !drop[n] {
			out = append(out, n)
		}
	}
	return out
}

// createPendWithRetry calls packetio.CreatePend, retrying once on a
// fresh pending name if the first attempt fails, per spec.md's
// "packets that pass validation but fail to write are retried once by
// calling write_packet on a new pending name."
func createPendWithRetry(dir string, origin packetio.Origin, pkt netpacket.Packet) error {
	_, err := packetio.CreatePend(dir, origin, AppID, pkt)
	if err == nil {
		return nil
	}
	_, err = packetio.CreatePend(dir, origin, AppID, pkt)
	return err
}
