// Package subscriber implements the per-subtype subscriber list (spec
// component C10): the n{subtype}.net file naming convention, the
// NO_NODE sentinel wwivnet uses to mark a withdrawn subscription
// without shrinking the file, and a writer that always emits a sorted,
// deduplicated list so two independent writers converge on the same
// bytes given the same membership. It is grounded on
// internal/netpacket's NoNode constant and does its file access
// through package os.
package subscriber

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/stlalpha/wwivcore/internal/netpacket"
)

// FileName returns the conventional subscriber-list filename for a
// given subtype tag, e.g. "general" -> "ngeneral.net".
func FileName(subtype string) string {
	return "n" + subtype + ".net"
}

// Path joins dir with FileName(subtype).
func Path(dir, subtype string) string {
	return filepath.Join(dir, FileName(subtype))
}

// Read returns the set of subscribed system numbers for subtype,
// skipping entries equal to netpacket.NoNode (a withdrawn slot left in
// place rather than physically removed) and blank lines. A missing
// file is treated as zero subscribers rather than an error, since a
// subtype with no remote subscribers yet is a normal state.
func Read(dir, subtype string) ([]uint16, error) {
	f, err := os.Open(Path(dir, subtype))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("subscriber: open %s: %w", subtype, err)
	}
	defer f.Close()

	var out []uint16
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("subscriber: bad entry %q in %s: %w", line, subtype, err)
		}
		if uint16(n) == netpacket.NoNode {
			continue
		}
		out = append(out, uint16(n))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("subscriber: scan %s: %w", subtype, err)
	}
	return out, nil
}

// Write replaces subtype's subscriber file with the sorted,
// deduplicated contents of sysNums, dropping any NoNode entries a
// caller passed in by mistake. The write is atomic: the new content is
// written to a temp file in dir and renamed over the target, so a
// reader never observes a partially written list.
func Write(dir, subtype string, sysNums []uint16) error {
	uniq := make(map[uint16]struct{}, len(sysNums))
	for _, n := range sysNums {
		if n == netpacket.NoNode {
			continue
		}
		uniq[n] = struct{}{}
	}
	sorted := make([]uint16, 0, len(uniq))
	for n := range uniq {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sb strings.Builder
	for _, n := range sorted {
		fmt.Fprintf(&sb, "%d\n", n)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("subscriber: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+FileName(subtype)+".tmp*")
	if err != nil {
		return fmt.Errorf("subscriber: create temp for %s: %w", subtype, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("subscriber: write temp for %s: %w", subtype, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("subscriber: close temp for %s: %w", subtype, err)
	}
	if err := os.Rename(tmpPath, Path(dir, subtype)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("subscriber: rename temp for %s: %w", subtype, err)
	}
	return nil
}

// Add appends sysNum to subtype's subscriber list if not already
// present, rewriting the file in sorted/deduplicated form.
func Add(dir, subtype string, sysNum uint16) error {
	cur, err := Read(dir, subtype)
	if err != nil {
		return err
	}
	return Write(dir, subtype, append(cur, sysNum))
}

// Remove drops sysNum from subtype's subscriber list, rewriting the
// file. Removing a system not currently present is a no-op.
func Remove(dir, subtype string, sysNum uint16) error {
	cur, err := Read(dir, subtype)
	if err != nil {
		return err
	}
	out := cur[:0]
	for _, n := range cur {
		if n != sysNum {
			out = append(out, n)
		}
	}
	return Write(dir, subtype, out)
}
