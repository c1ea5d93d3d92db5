// Package board implements the sub-board registry (spec component
// C12): the JSON-backed list of message area descriptors, each naming
// which network(s) it is attached to, and GetBase, which opens the
// JAM message base backing a given area for reading and posting. It
// replaces the teacher's internal/message package, whose JSONL message
// storage and MessageManager.GetBase-less API did not match what
// internal/tosser actually calls — this package is grounded on
// internal/message.MessageArea's descriptor shape and
// cmd/v3mail/main.go's jam.Open(meta.Path) usage, unified into one
// consistent type.
package board

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stlalpha/wwivcore/internal/jam"
	"github.com/stlalpha/wwivcore/internal/msgbase"
)

const descriptorFile = "sub_boards.json"

// NetAttachment ties a sub-board to one of its network connections:
// the network it rides (by index into the system's configured
// networks and by configured name, e.g. "fsxnet"), that network's wire
// identifier for the area (FTN echo tag or wwivnet subtype), and the
// node that hosts it.
type NetAttachment struct {
	NetworkIndex int    `json:"network_index"`
	NetworkType  string `json:"network_type"` // "ftn" or "wwivnet"
	Network      string `json:"network"`      // configured network name, e.g. "fsxnet"
	SubType      string `json:"sub_type"`     // FTN echo tag or wwivnet subtype keyword
	HostNode     uint16 `json:"host_node"`
}

// Descriptor is one sub-board's registry entry.
type Descriptor struct {
	ID          int             `json:"id"`
	Tag         string          `json:"tag"`
	Name        string          `json:"name"`
	BasePath    string          `json:"base_path"`
	AreaType    string          `json:"area_type"` // "local", "echomail", "netmail"
	Attachments []NetAttachment `json:"attachments,omitempty"`
}

// Registry is the in-memory, JSON-persisted set of sub-boards.
type Registry struct {
	mu   sync.RWMutex
	path string
	byID map[int]*Descriptor
}

// Open loads the registry from dir/sub_boards.json, creating an empty
// one in memory (not yet persisted) if the file does not exist.
func Open(dir string) (*Registry, error) {
	path := filepath.Join(dir, descriptorFile)
	byID, err := loadDescriptors(path)
	if err != nil {
		return nil, err
	}
	return &Registry{path: path, byID: byID}, nil
}

// Reload re-reads the registry's backing file and atomically replaces
// its in-memory contents, for a config-directory watcher to call when
// sub_boards.json changes underneath a running process.
func (r *Registry) Reload() error {
	byID, err := loadDescriptors(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()
	return nil
}

func loadDescriptors(path string) (map[int]*Descriptor, error) {
	byID := make(map[int]*Descriptor)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return byID, nil
	}
	if err != nil {
		return nil, fmt.Errorf("board: read %s: %w", path, err)
	}

	var list []*Descriptor
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("board: parse %s: %w", path, err)
	}
	for _, d := range list {
		byID[d.ID] = d
	}
	return byID, nil
}

// Save persists the registry to disk atomically (temp file + rename),
// so a reader never observes a half-written descriptor list.
func (r *Registry) Save() error {
	r.mu.RLock()
	list := make([]*Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		list = append(list, d)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("board: marshal registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("board: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sub_boards.json.tmp*")
	if err != nil {
		return fmt.Errorf("board: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("board: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("board: rename temp: %w", err)
	}
	return nil
}

// Add registers a new sub-board, returning an error if its ID or Tag
// collides with an existing one.
func (r *Registry) Add(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[d.ID]; ok {
		return fmt.Errorf("board: id %d already registered", d.ID)
	}
	for _, existing := range r.byID {
		if existing.Tag == d.Tag {
			return fmt.Errorf("board: tag %q already registered", d.Tag)
		}
	}
	r.byID[d.ID] = &d
	return nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id int) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// GetByTag returns the descriptor whose Tag matches tag.
func (r *Registry) GetByTag(tag string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byID {
		if d.Tag == tag {
			return *d, true
		}
	}
	return Descriptor{}, false
}

// List returns every descriptor, sorted by ID.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetBase opens the JAM echo base backing the sub-board with id,
// returning *jam.Base exactly as internal/tosser and internal/ftngate
// expect it: GetMessageCount, ReadMessageHeader, ReadMessage and
// UpdateMessageHeader all come from internal/jam unmodified. This is
// the FTN interchange format: tosser scans it for export, and
// internal/ftngate is the only writer for locally- or wwivnet-sourced
// posts, filing the FTN gateway packets internal/dispatch queues for
// them. It shares
// BasePath with GetMsgBase without collision since jam's suffixes
// (.jhr/.jdt/.jdx/.jlr) never match msgbase's (bare path + .dt).
func (r *Registry) GetBase(id int) (*jam.Base, error) {
	d, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("board: no sub-board with id %d", id)
	}
	base, err := jam.Open(d.BasePath)
	if err != nil {
		return nil, fmt.Errorf("board: open base for %q at %s: %w", d.Tag, d.BasePath, err)
	}
	return base, nil
}

// GetMsgBase opens the native message base (spec component C6)
// backing the sub-board with id. This is the canonical store for
// every post on the system, local or wwivnet-originated: internal/
// inbound files arriving wwivnet traffic here, cmd/wwivutil's "board
// post" writes local posts here, and internal/dispatch reads nothing
// back from it directly since callers already hold the post's title
// and body when they dispatch it onward.
func (r *Registry) GetMsgBase(id int) (*msgbase.Base, error) {
	d, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("board: no sub-board with id %d", id)
	}
	return msgbase.Open(d.BasePath), nil
}

// Attachment returns the NetAttachment matching networkType ("ftn" or
// "wwivnet"), if this sub-board rides that kind of network at all.
func (d Descriptor) Attachment(networkType string) (NetAttachment, bool) {
	for _, a := range d.Attachments {
		if a.NetworkType == networkType {
			return a, true
		}
	}
	return NetAttachment{}, false
}

// AttachmentNamed returns the NetAttachment whose configured network
// name matches network, case-insensitively, regardless of type.
func (d Descriptor) AttachmentNamed(network string) (NetAttachment, bool) {
	for _, a := range d.Attachments {
		if strings.EqualFold(a.Network, network) {
			return a, true
		}
	}
	return NetAttachment{}, false
}

// AttachmentFor returns the NetAttachment matching networkType for the
// sub-board with id, if that sub-board rides that network at all.
func (r *Registry) AttachmentFor(id int, networkType string) (NetAttachment, bool) {
	d, ok := r.Get(id)
	if !ok {
		return NetAttachment{}, false
	}
	return d.Attachment(networkType)
}

// FindBySubtype resolves an inbound wwivnet packet back to the
// sub-board and attachment that produced it: it matches a wwivnet
// attachment by configured network name and subtype, case-insensitively,
// so a post arriving on local.net can be filed into the right native
// message base (GetMsgBase) and redistributed with the right
// OriginatingNetIndex.
func (r *Registry) FindBySubtype(network, subType string) (Descriptor, NetAttachment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byID {
		for _, a := range d.Attachments {
			if a.NetworkType != "wwivnet" {
				continue
			}
			if strings.EqualFold(a.Network, network) && strings.EqualFold(a.SubType, subType) {
				return *d, a, true
			}
		}
	}
	return Descriptor{}, NetAttachment{}, false
}

// FindByEchoTag resolves a packet drained from the FTN gateway queue
// back to the sub-board and attachment whose echo tag produced it: it
// matches an ftn attachment by configured network name and SubType
// (the echo tag), case-insensitively, so internal/ftngate can convert
// the packet into a JAM message on the right base.
func (r *Registry) FindByEchoTag(network, echoTag string) (Descriptor, NetAttachment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byID {
		for _, a := range d.Attachments {
			if a.NetworkType != "ftn" {
				continue
			}
			if strings.EqualFold(a.Network, network) && strings.EqualFold(a.SubType, echoTag) {
				return *d, a, true
			}
		}
	}
	return Descriptor{}, NetAttachment{}, false
}
