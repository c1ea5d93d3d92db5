package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/config"
	"github.com/stlalpha/wwivcore/internal/tosser"
)

// cmdToss implements 'v3mail toss': unpack FTN bundles and toss .PKT files into JAM bases.
func cmdToss(args []string) {
	fs := flag.NewFlagSet("toss", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	networkName := fs.String("network", "", "Limit to a single network (default: all enabled)")
	quiet := fs.Bool("q", false, "Quiet mode")
	fs.Parse(args)

	ftnCfg, boardReg, dupeDB, err := loadFTNDeps(*configDir, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	totalImported, totalDupes, totalPackets := 0, 0, 0
	hadErrors := false

	for name, netCfg := range ftnCfg.Networks {
		if !netCfg.InternalTosserEnabled {
			continue
		}
		if *networkName != "" && name != *networkName {
			continue
		}

		t, err := tosser.New(name, toTosserConfig(ftnCfg, name, netCfg, boardReg), dupeDB, boardReg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating tosser for %s: %v\n", name, err)
			hadErrors = true
			continue
		}

		result := t.ProcessInbound()
		totalPackets += result.PacketsProcessed
		totalImported += result.MessagesImported
		totalDupes += result.DupesSkipped

		if !*quiet {
			fmt.Printf("[%s] toss: %d packets, %d imported, %d dupes",
				name, result.PacketsProcessed, result.MessagesImported, result.DupesSkipped)
			if len(result.Errors) > 0 {
				fmt.Printf(", %d errors", len(result.Errors))
			}
			fmt.Println()
		}
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  [%s] ERROR: %s\n", name, e)
			hadErrors = true
		}
	}

	if !*quiet {
		fmt.Printf("Toss complete: %d packets, %d messages imported, %d dupes skipped\n",
			totalPackets, totalImported, totalDupes)
	}

	if hadErrors {
		os.Exit(1)
	}
}

// cmdScan implements 'v3mail scan': scan JAM bases for unsent echomail and create outbound .PKT files.
func cmdScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	networkName := fs.String("network", "", "Limit to a single network (default: all enabled)")
	quiet := fs.Bool("q", false, "Quiet mode")
	fs.Parse(args)

	ftnCfg, boardReg, dupeDB, err := loadFTNDeps(*configDir, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	totalExported := 0
	hadErrors := false

	for name, netCfg := range ftnCfg.Networks {
		if !netCfg.InternalTosserEnabled {
			continue
		}
		if *networkName != "" && name != *networkName {
			continue
		}

		t, err := tosser.New(name, toTosserConfig(ftnCfg, name, netCfg, boardReg), dupeDB, boardReg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating tosser for %s: %v\n", name, err)
			hadErrors = true
			continue
		}

		result := t.ScanAndExport()
		totalExported += result.MessagesExported

		if !*quiet {
			fmt.Printf("[%s] scan: %d messages exported",
				name, result.MessagesExported)
			if len(result.Errors) > 0 {
				fmt.Printf(", %d errors", len(result.Errors))
			}
			fmt.Println()
		}
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  [%s] ERROR: %s\n", name, e)
			hadErrors = true
		}
	}

	if !*quiet {
		fmt.Printf("Scan complete: %d messages exported to outbound\n", totalExported)
	}

	if hadErrors {
		os.Exit(1)
	}
}

// cmdFtnPack implements 'v3mail ftn-pack': create ZIP bundles from staged .PKT files for binkd.
func cmdFtnPack(args []string) {
	fs := flag.NewFlagSet("ftn-pack", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	dataDir := fs.String("data", "data", "Data directory")
	networkName := fs.String("network", "", "Limit to a single network (default: all enabled)")
	quiet := fs.Bool("q", false, "Quiet mode")
	fs.Parse(args)

	ftnCfg, boardReg, dupeDB, err := loadFTNDeps(*configDir, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	totalBundles, totalPackets := 0, 0
	hadErrors := false

	for name, netCfg := range ftnCfg.Networks {
		if !netCfg.InternalTosserEnabled {
			continue
		}
		if *networkName != "" && name != *networkName {
			continue
		}

		t, err := tosser.New(name, toTosserConfig(ftnCfg, name, netCfg, boardReg), dupeDB, boardReg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating tosser for %s: %v\n", name, err)
			hadErrors = true
			continue
		}

		result := t.PackOutbound()
		totalBundles += result.BundlesCreated
		totalPackets += result.PacketsPacked

		if !*quiet {
			fmt.Printf("[%s] ftn-pack: %d bundles created (%d packets)",
				name, result.BundlesCreated, result.PacketsPacked)
			if len(result.Errors) > 0 {
				fmt.Printf(", %d errors", len(result.Errors))
			}
			fmt.Println()
		}
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  [%s] ERROR: %s\n", name, e)
			hadErrors = true
		}
	}

	if !*quiet {
		fmt.Printf("Pack complete: %d bundles created, %d packets packed\n", totalBundles, totalPackets)
	}

	if hadErrors {
		os.Exit(1)
	}
}

// resolveFTNPath makes path absolute by joining with root if it is not already absolute.
// Root is the BBS root (directory containing the data folder).
func resolveFTNPath(root, path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// loadFTNDeps loads all shared dependencies needed by toss/scan/ftn-pack commands.
// FTN paths in ftn.json are resolved relative to the BBS root (parent of dataDir)
// so toss/scan/pack work correctly regardless of CWD when v3mail is run.
func loadFTNDeps(configDir, dataDir string) (config.FTNConfig, *board.Registry, *tosser.DupeDB, error) {
	ftnCfg, err := config.LoadFTNConfig(configDir)
	if err != nil {
		return config.FTNConfig{}, nil, nil, fmt.Errorf("load ftn config: %w", err)
	}

	// BBS root = directory containing the data folder (for resolving relative FTN paths)
	absData, err := filepath.Abs(dataDir)
	if err != nil {
		absData = dataDir
	}
	bbsRoot := filepath.Dir(absData)

	// Resolve relative FTN paths against BBS root
	ftnCfg.InboundPath = resolveFTNPath(bbsRoot, ftnCfg.InboundPath)
	ftnCfg.SecureInboundPath = resolveFTNPath(bbsRoot, ftnCfg.SecureInboundPath)
	ftnCfg.OutboundPath = resolveFTNPath(bbsRoot, ftnCfg.OutboundPath)
	ftnCfg.BinkdOutboundPath = resolveFTNPath(bbsRoot, ftnCfg.BinkdOutboundPath)
	ftnCfg.TempPath = resolveFTNPath(bbsRoot, ftnCfg.TempPath)

	boardReg, err := board.Open(configDir)
	if err != nil {
		return config.FTNConfig{}, nil, nil, fmt.Errorf("open sub-board registry: %w", err)
	}

	// Load or create dupe database (resolve path if from ftn.json)
	dupeDBPath := ftnCfg.DupeDBPath
	if dupeDBPath == "" {
		dupeDBPath = filepath.Join(dataDir, "ftn", "dupes.json")
	} else {
		dupeDBPath = resolveFTNPath(bbsRoot, dupeDBPath)
	}
	dupeDB, err := tosser.NewDupeDBFromPath(dupeDBPath)
	if err != nil {
		return config.FTNConfig{}, nil, nil, fmt.Errorf("load dupe db: %w", err)
	}

	return ftnCfg, boardReg, dupeDB, nil
}

// toTosserConfig builds a tosser.Config for a single FTN network from the
// shared FTNConfig paths and that network's FTNNetworkConfig entry. Per-link
// EchoAreas are not stored in ftn.json (FTNLinkConfig carries none) — they
// are derived here from the sub-board registry: every sub-board whose ftn
// attachment names this network contributes its echo tag to every link on
// the network, matching how the registry (not per-link config) is already
// the source of truth for which boards ride which network.
func toTosserConfig(ftnCfg config.FTNConfig, networkName string, netCfg config.FTNNetworkConfig, boardReg *board.Registry) tosser.Config {
	var echoAreas []string
	for _, d := range boardReg.List() {
		if att, ok := d.Attachment("ftn"); ok && strings.EqualFold(att.Network, networkName) {
			echoAreas = append(echoAreas, att.SubType)
		}
	}

	links := make([]tosser.LinkConfig, 0, len(netCfg.Links))
	for _, l := range netCfg.Links {
		links = append(links, tosser.LinkConfig{
			Address:   l.Address,
			Password:  l.PacketPassword,
			Name:      l.Name,
			EchoAreas: echoAreas,
			Flavour:   l.Flavour,
		})
	}

	return tosser.Config{
		Enabled:           netCfg.InternalTosserEnabled,
		OwnAddress:        netCfg.OwnAddress,
		InboundPath:       ftnCfg.InboundPath,
		SecureInboundPath: ftnCfg.SecureInboundPath,
		OutboundPath:      ftnCfg.OutboundPath,
		BinkdOutboundPath: ftnCfg.BinkdOutboundPath,
		TempPath:          ftnCfg.TempPath,
		DupeDBPath:        ftnCfg.DupeDBPath,
		PollSeconds:       netCfg.PollSeconds,
		// FTNConfig carries no netmail-area tag; netmail routing stays off
		// here unless a future config revision adds one (see DESIGN.md).
		BadAreaTag:  ftnCfg.BadAreaTag,
		DupeAreaTag: ftnCfg.DupeAreaTag,
		Links:       links,
	}
}
