// Package instmsg implements inter-instance messaging (spec component
// C5): best-effort, one-shot notifications delivered as individual
// JSON files dropped into a shared scratch directory, rather than the
// single shared binary record the teacher's multinode NodeMessage type
// uses. The per-file approach is grounded on the same first-free-name
// probing internal/recio already exposes for pending network packets,
// reused here for scratch-directory messages instead of a single
// contended binary file.
package instmsg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/recio"
)

// Kind identifies what a Message is for, mirroring the teacher's
// NodeMsgType enumeration narrowed to what the spec's instance
// messaging actually needs.
type Kind string

const (
	KindChat      Kind = "chat"
	KindPage      Kind = "page"
	KindBroadcast Kind = "broadcast"
	KindAlert     Kind = "alert"
)

// Message is the JSON payload persisted as one scratch file.
type Message struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	FromNode  uint16 `json:"from_node"`
	ToNode    uint16 `json:"to_node"` // 0 = broadcast
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	CreatedAt uint32 `json:"created_at"` // Daten
}

// Mailbox manages the msgNNN.json scratch files in one directory.
type Mailbox struct {
	dir   string
	clock clock.Clock
	limit int
}

// maxScratchSlots bounds how many msgNNN.json names Send will probe
// before giving up; a directory this full almost certainly means a
// reader has stopped draining it.
const maxScratchSlots = 1000

// New returns a Mailbox rooted at dir, creating dir if it does not
// already exist.
func New(dir string, clk clock.Clock) (*Mailbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("instmsg: create scratch dir %s: %w", dir, err)
	}
	return &Mailbox{dir: dir, clock: clk, limit: maxScratchSlots}, nil
}

func (m *Mailbox) pattern(i int) string {
	return filepath.Join(m.dir, "msg"+pad3(i)+".json")
}

func pad3(i int) string {
	s := strconv.Itoa(i)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// Send writes msg to the first free scratch slot. Delivery is
// best-effort: a receiver that never polls the directory simply never
// sees it, and there is no acknowledgement path. msg.ID and CreatedAt
// are assigned by Send if left zero-valued.
func (m *Mailbox) Send(msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = uint32(clock.Now(m.clock))
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("instmsg: marshal message: %w", err)
	}

	f, path, err := recio.FirstFreeName(m.limit, m.pattern)
	if err != nil {
		return fmt.Errorf("instmsg: no free scratch slot: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("instmsg: write %s: %w", path, err)
	}
	return nil
}

// Poll reads and removes every pending message addressed to node (or
// broadcast to all, toNode == 0), in ascending filename order. A
// message that fails to parse is skipped and removed rather than
// left to jam the mailbox for every future poll.
func (m *Mailbox) Poll(node uint16) ([]Message, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("instmsg: read scratch dir %s: %w", m.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "msg") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []Message
	for _, name := range names {
		path := filepath.Join(m.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = os.Remove(path)
			continue
		}
		if msg.ToNode != 0 && msg.ToNode != node {
			continue
		}
		_ = os.Remove(path)
		out = append(out, msg)
	}
	return out, nil
}
