// Command wwivnetd is the long-running daemon that hosts the scheduler
// (C14): it owns the sub-board registry, the wwivnet dispatcher and
// inbound processors, the FTN tossers, and the status store, and wires
// them to cron so that local.net/s*.net traffic, FTN toss/scan, and the
// midnight rollover all happen without an operator running v3mail or
// wwivutil by hand. It is grounded on cmd/v3mail's loadFTNDeps/
// toTosserConfig for FTN wiring and on the teacher's
// cmd/vision3/config_watcher.go for the fsnotify-based config reload.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stlalpha/wwivcore/internal/logging"
)

func main() {
	configDir := flag.String("config", "configs", "Config directory")
	dataDir := flag.String("data", "data", "Data directory")
	pollSeconds := flag.Int("poll-seconds", 60, "Default network poll interval when no ftn.json network overrides it")
	debug := flag.Bool("debug", os.Getenv("DEBUG") == "1", "Enable verbose per-cycle debug logging")
	flag.Parse()
	logging.DebugEnabled = *debug

	d, err := newDaemon(*configDir, *dataDir, *pollSeconds)
	if err != nil {
		log.Fatalf("ERROR: wwivnetd: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d.watcher.Start()
	defer d.watcher.Stop()

	fmt.Printf("wwivnetd: %d wwivnet network(s), %d FTN network(s) with internal tosser enabled\n",
		len(d.processors), d.enabledFTNCount())

	d.scheduler.Start(ctx)
	log.Printf("INFO: wwivnetd: shutdown complete")
}
