package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stlalpha/wwivcore/internal/logging"
	"github.com/stlalpha/wwivcore/internal/packetio"
)

// runNewDay is the midnight builtin: rolls Status's daily counters and
// log-date ring over for today, per spec.md §4.3's new_day().
func (d *daemon) runNewDay(ctx context.Context) error {
	today := time.Now().Format("20060102")
	return d.statusReg.NewDay(today, today+".log")
}

// runNetworkPoll is the periodic builtin combining C9's pending-queue
// scan, C11's inbound-post redistribution, C16's FTN gateway queue
// drain, and C13's FTN toss/scan into one cycle, exactly as
// SPEC_FULL.md §4.14 describes. Every network is polled even if an
// earlier one errors, so one bad network directory or misconfigured
// link never starves the others.
func (d *daemon) runNetworkPoll(ctx context.Context) error {
	var errs []string

	for name, net := range d.networks {
		logging.Debug("network-poll: scanning pending for %s (node %d, dir %s)", name, net.OwnNode, net.Directory)
		if err := packetio.ScanPending(net.Directory, net.OwnNode); err != nil {
			errs = append(errs, fmt.Sprintf("%s: scan pending: %v", name, err))
			continue
		}
		proc, ok := d.processors[name]
		if !ok {
			continue
		}
		res, err := proc.ProcessLocal()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: process inbound: %v", name, err))
			continue
		}
		if res.Filed > 0 || res.Skipped > 0 {
			log.Printf("INFO: wwivnetd: %s: filed %d post(s), skipped %d", name, res.Filed, res.Skipped)
		}
	}

	for name, gw := range d.ftnGateways {
		res, err := gw.DrainLocal()
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: drain ftn gateway: %v", name, err))
			continue
		}
		if res.Filed > 0 || res.Skipped > 0 {
			log.Printf("INFO: wwivnetd: ftn gateway %s: filed %d post(s), skipped %d", name, res.Filed, res.Skipped)
		}
	}

	for name, t := range d.ftnTossers {
		result := t.RunOnce()
		if len(result.Errors) > 0 {
			errs = append(errs, fmt.Sprintf("%s: %v", name, result.Errors))
		}
		if result.MessagesImported > 0 || result.MessagesExported > 0 {
			log.Printf("INFO: wwivnetd: ftn %s: imported %d, exported %d", name, result.MessagesImported, result.MessagesExported)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("network poll: %d error(s): %v", len(errs), errs)
	}
	return nil
}
