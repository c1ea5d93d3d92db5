package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stlalpha/wwivcore/internal/status"
)

// configWatcher watches the config directory for changes and, where the
// running process can absorb the change without a restart, reloads the
// affected component in place — grounded on the teacher's
// cmd/vision3/config_watcher.go debounce-then-dispatch-by-filename
// shape. sub_boards.json is hot-reloaded into the live board.Registry;
// networks.json and ftn.json changes would require rebuilding the
// dispatcher/tosser set, so they only bump Status's file-change vector
// (spec.md §3's "peer cache invalidation") and log that a restart is
// needed to pick up the new topology.
type configWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	d       *daemon
}

func newConfigWatcher(configDir string, d *daemon) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := w.Add(configDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", configDir, err)
	}
	return &configWatcher{watcher: w, done: make(chan struct{}), d: d}, nil
}

// Start launches the watch loop in a goroutine.
func (cw *configWatcher) Start() {
	go cw.loop()
}

// Stop closes the underlying watcher and terminates the loop goroutine.
func (cw *configWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.watcher == nil {
		return
	}
	select {
	case <-cw.done:
	default:
		close(cw.done)
	}
	cw.watcher.Close()
	cw.watcher = nil
}

func (cw *configWatcher) loop() {
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				name := event.Name
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() { cw.handleChange(name) })
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: wwivnetd: config watcher: %v", err)
		case <-cw.done:
			return
		}
	}
}

func (cw *configWatcher) handleChange(path string) {
	switch strings.ToLower(filepath.Base(path)) {
	case "sub_boards.json":
		log.Printf("INFO: wwivnetd: sub_boards.json changed, reloading registry")
		if err := cw.d.boardReg.Reload(); err != nil {
			log.Printf("ERROR: wwivnetd: reload sub_boards.json: %v", err)
			return
		}
		cw.bump(status.ChangeSubs)
	case "networks.json":
		log.Printf("WARN: wwivnetd: networks.json changed - restart required to pick up new topology")
		cw.bump(status.ChangeNetworks)
	case "ftn.json":
		log.Printf("WARN: wwivnetd: ftn.json changed - restart required to pick up new links/tosser settings")
		cw.bump(status.ChangeNetworks)
	case "events.json":
		log.Printf("WARN: wwivnetd: events.json changed - restart required for schedule changes")
	default:
		log.Printf("DEBUG: wwivnetd: ignoring change to %s", filepath.Base(path))
	}
}

func (cw *configWatcher) bump(category int) {
	if err := cw.d.statusReg.Run(func(rec *status.Record) error {
		rec.BumpFileChange(category)
		return nil
	}); err != nil {
		log.Printf("WARN: wwivnetd: bump status file-change vector: %v", err)
	}
}
