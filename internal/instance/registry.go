package instance

import (
	"errors"
	"fmt"

	"github.com/stlalpha/wwivcore/internal/recio"
)

// Registry is the transactional accessor for the shared instance file.
// Every node owns exactly one slot, indexed by position (0-based) from
// node number 1. Slots are read and written independently so that one
// node updating its own status never blocks another node reading a
// different slot for longer than the single record's I/O.
type Registry struct {
	path string
}

// New returns a Registry backed by path.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Size returns the number of slots currently present in the file.
func (r *Registry) Size() (int, error) {
	f, err := recio.Open(r.path, recio.ReadOnly)
	if err != nil {
		if errors.Is(err, recio.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	sz, err := f.Size()
	if err != nil {
		return 0, err
	}
	return int(sz / RecordSize), nil
}

// At reads the slot at the given 0-based index. A torn read — a short
// read that lands mid-write from a concurrent writer — is retried
// exactly once before being surfaced, per the registry's tolerance
// contract; a second failure is a genuine error.
func (r *Registry) At(index int) (Record, error) {
	var rec Record
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		rec, lastErr = r.readAt(index)
		if lastErr == nil {
			return rec, nil
		}
	}
	return Record{}, lastErr
}

func (r *Registry) readAt(index int) (Record, error) {
	f, err := recio.Open(r.path, recio.ReadOnly)
	if err != nil {
		if errors.Is(err, recio.ErrNotFound) {
			return NewOffline(uint16(index + 1)), nil
		}
		return Record{}, err
	}
	defer f.Close()

	sz, err := f.Size()
	if err != nil {
		return Record{}, err
	}
	off := int64(index) * RecordSize
	if off+RecordSize > sz {
		return NewOffline(uint16(index + 1)), nil
	}

	data, err := f.ReadAt(off, RecordSize)
	if err != nil {
		return Record{}, fmt.Errorf("instance: torn read at slot %d: %w", index, err)
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Upsert writes rec into the slot at index, extending the file with
// offline placeholder slots if index is beyond the current end. Index
// and rec.NodeNum-1 are expected to agree; callers own that invariant.
func (r *Registry) Upsert(index int, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	f, err := recio.Open(r.path, recio.ReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()

	sz, err := f.Size()
	if err != nil {
		return err
	}
	wantSize := int64(index+1) * RecordSize
	if sz < wantSize {
		if err := fillGap(f, sz, wantSize, uint16(sz/RecordSize+1)); err != nil {
			return err
		}
	}

	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return f.WriteAt(int64(index)*RecordSize, data, RecordSize)
}

// All returns every slot in the file in index order.
func (r *Registry) All() ([]Record, error) {
	n, err := r.Size()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := r.At(i)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// fillGap pads the file from the current size up to wantSize with
// offline placeholder records so later slots remain record-aligned.
func fillGap(f *recio.File, from, wantSize int64, startNodeNum uint16) error {
	node := startNodeNum
	for off := from - (from % RecordSize); off < wantSize-RecordSize; off += RecordSize {
		data, err := NewOffline(node).MarshalBinary()
		if err != nil {
			return err
		}
		if err := f.WriteAt(off, data, RecordSize); err != nil {
			return err
		}
		node++
	}
	return nil
}
