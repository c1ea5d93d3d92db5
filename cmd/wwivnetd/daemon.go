package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/config"
	"github.com/stlalpha/wwivcore/internal/dispatch"
	"github.com/stlalpha/wwivcore/internal/ftngate"
	"github.com/stlalpha/wwivcore/internal/inbound"
	"github.com/stlalpha/wwivcore/internal/scheduler"
	"github.com/stlalpha/wwivcore/internal/status"
	"github.com/stlalpha/wwivcore/internal/tosser"
)

// daemon holds every long-lived dependency wwivnetd's scheduled jobs
// close over.
type daemon struct {
	configDir string
	dataDir   string

	boardReg  *board.Registry
	statusReg *status.Store

	networks    map[string]dispatch.NetworkConfig // wwivnet and FTN gateway networks, by name
	dispatcher  *dispatch.Dispatcher
	processors  map[string]*inbound.Processor // wwivnet local.net drains, by network name
	ftnGateways map[string]*ftngate.Adapter   // FTN gateway queue drains, by network name
	ftnTossers  map[string]*tosser.Tosser     // FTN networks with internal tosser enabled, by name
	pollSeconds int

	scheduler *scheduler.Scheduler
	watcher   *configWatcher
}

func newDaemon(configDir, dataDir string, defaultPollSeconds int) (*daemon, error) {
	dataCfg, err := config.LoadDataConfig(configDir, dataDir)
	if err != nil {
		return nil, fmt.Errorf("load data config: %w", err)
	}

	boardReg, err := board.Open(configDir)
	if err != nil {
		return nil, fmt.Errorf("open sub-board registry: %w", err)
	}

	netsCfg, err := config.LoadNetworksConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load networks config: %w", err)
	}
	networks := make(map[string]dispatch.NetworkConfig, len(netsCfg.Networks))
	for _, n := range netsCfg.Networks {
		networks[n.Name] = dispatch.NetworkConfig{OwnNode: n.OwnNode, Directory: n.Directory}
	}

	ftnCfgForGateways, err := config.LoadFTNConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load ftn config: %w", err)
	}
	ftnGateways := make(map[string]*ftngate.Adapter, len(ftnCfgForGateways.Networks))
	for name := range ftnCfgForGateways.Networks {
		dir := filepath.Join(dataDir, "ftngate", name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ftn gateway directory for %q: %w", name, err)
		}
		networks[name] = dispatch.NetworkConfig{Directory: dir}
		ftnGateways[name] = ftngate.New(boardReg, name, dir)
	}

	dispatcher := dispatch.New(boardReg, networks)

	processors := make(map[string]*inbound.Processor, len(netsCfg.Networks))
	for _, n := range netsCfg.Networks {
		processors[n.Name] = inbound.New(boardReg, dispatcher, n.Name, n.Directory)
	}

	ftnCfg, ftnTossers, err := loadFTNTossers(configDir, dataDir, boardReg)
	if err != nil {
		return nil, fmt.Errorf("load FTN tossers: %w", err)
	}

	eventsCfg, err := config.LoadEventsConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load events config: %w", err)
	}

	historyPath := filepath.Join(dataCfg.ScratchDir, "scheduler", "history.json")
	sched := scheduler.NewScheduler(eventsCfg, historyPath)

	statusReg := status.New(dataCfg.StatusPath, clock.SystemClock{})

	d := &daemon{
		configDir:   configDir,
		dataDir:     dataDir,
		boardReg:    boardReg,
		statusReg:   statusReg,
		networks:    networks,
		dispatcher:  dispatcher,
		processors:  processors,
		ftnGateways: ftnGateways,
		ftnTossers:  ftnTossers,
		pollSeconds: defaultPollSeconds,
		scheduler:   sched,
	}

	sched.RegisterBuiltin(scheduler.BuiltinJob{
		ID:       "status-new-day",
		Name:     "midnight status rollover",
		Schedule: "0 0 0 * * *",
		Run:      d.runNewDay,
	})
	sched.RegisterBuiltin(scheduler.BuiltinJob{
		ID:       "network-poll",
		Name:     "wwivnet/FTN network poll",
		Schedule: fmt.Sprintf("@every %ds", pollIntervalSeconds(ftnCfg, defaultPollSeconds)),
		Run:      d.runNetworkPoll,
	})

	watcher, err := newConfigWatcher(configDir, d)
	if err != nil {
		return nil, fmt.Errorf("start config watcher: %w", err)
	}
	d.watcher = watcher

	return d, nil
}

func (d *daemon) enabledFTNCount() int { return len(d.ftnTossers) }

// pollIntervalSeconds picks the network-poll cadence: the fastest
// poll_interval_seconds configured by any internal-tosser-enabled FTN
// network, or fallback when none is configured or all are 0 (manual).
func pollIntervalSeconds(ftnCfg config.FTNConfig, fallback int) int {
	best := 0
	for _, net := range ftnCfg.Networks {
		if !net.InternalTosserEnabled || net.PollSeconds <= 0 {
			continue
		}
		if best == 0 || net.PollSeconds < best {
			best = net.PollSeconds
		}
	}
	if best == 0 {
		return fallback
	}
	return best
}

// loadFTNTossers mirrors cmd/v3mail's loadFTNDeps/toTosserConfig: it
// resolves ftn.json's relative paths against the BBS root, builds one
// shared DupeDB, and constructs a *tosser.Tosser per network with the
// internal tosser enabled, deriving each link's EchoAreas from the
// sub-board registry the same way the CLI does.
func loadFTNTossers(configDir, dataDir string, boardReg *board.Registry) (config.FTNConfig, map[string]*tosser.Tosser, error) {
	ftnCfg, err := config.LoadFTNConfig(configDir)
	if err != nil {
		return config.FTNConfig{}, nil, fmt.Errorf("load ftn config: %w", err)
	}

	absData, err := filepath.Abs(dataDir)
	if err != nil {
		absData = dataDir
	}
	bbsRoot := filepath.Dir(absData)
	ftnCfg.InboundPath = resolveRelative(bbsRoot, ftnCfg.InboundPath)
	ftnCfg.SecureInboundPath = resolveRelative(bbsRoot, ftnCfg.SecureInboundPath)
	ftnCfg.OutboundPath = resolveRelative(bbsRoot, ftnCfg.OutboundPath)
	ftnCfg.BinkdOutboundPath = resolveRelative(bbsRoot, ftnCfg.BinkdOutboundPath)
	ftnCfg.TempPath = resolveRelative(bbsRoot, ftnCfg.TempPath)

	dupeDBPath := ftnCfg.DupeDBPath
	if dupeDBPath == "" {
		dupeDBPath = filepath.Join(dataDir, "ftn", "dupes.json")
	} else {
		dupeDBPath = resolveRelative(bbsRoot, dupeDBPath)
	}
	dupeDB, err := tosser.NewDupeDBFromPath(dupeDBPath)
	if err != nil {
		return config.FTNConfig{}, nil, fmt.Errorf("load dupe db: %w", err)
	}

	tossers := make(map[string]*tosser.Tosser)
	for name, netCfg := range ftnCfg.Networks {
		if !netCfg.InternalTosserEnabled {
			continue
		}
		t, err := tosser.New(name, toTosserConfig(ftnCfg, name, netCfg, boardReg), dupeDB, boardReg)
		if err != nil {
			log.Printf("WARN: wwivnetd: skipping FTN network %q: %v", name, err)
			continue
		}
		tossers[name] = t
	}
	return ftnCfg, tossers, nil
}

func toTosserConfig(ftnCfg config.FTNConfig, networkName string, netCfg config.FTNNetworkConfig, boardReg *board.Registry) tosser.Config {
	var echoAreas []string
	for _, desc := range boardReg.List() {
		if att, ok := desc.Attachment("ftn"); ok && strings.EqualFold(att.Network, networkName) {
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
		BadAreaTag:        ftnCfg.BadAreaTag,
		DupeAreaTag:       ftnCfg.DupeAreaTag,
		Links:             links,
	}
}

func resolveRelative(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
