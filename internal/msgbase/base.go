package msgbase

import (
	"errors"
	"fmt"

	"github.com/stlalpha/wwivcore/internal/recio"
)

// bounceBufferSize bounds how much of the .sub file DeletePost shifts
// in one read/write pair when closing the gap left by a removed
// record, trading a few extra I/O round trips for a small, constant
// amount of memory regardless of base size.
const bounceBufferSize = 32 * 1024

// Base is one open message base: its .sub header+post file and
// companion .dt text file.
type Base struct {
	subPath string
	dtPath  string
}

// Open returns a Base over the given .sub path; the companion text
// file is derived by replacing the .sub extension with .dt.
func Open(subPath string) *Base {
	dtPath := subPath
	if len(dtPath) > 4 && dtPath[len(dtPath)-4:] == ".sub" {
		dtPath = dtPath[:len(dtPath)-4] + ".dt"
	} else {
		dtPath += ".dt"
	}
	return &Base{subPath: subPath, dtPath: dtPath}
}

// header reads record 0, initializing a fresh one if the file is new.
func (b *Base) header(f *recio.File) (Header, error) {
	sz, err := f.Size()
	if err != nil {
		return Header{}, err
	}
	if sz < RecordSize {
		return Header{Signature: Signature, Revision: CurrentRevision}, nil
	}
	data, err := f.ReadAt(0, RecordSize)
	if err != nil {
		return Header{}, fmt.Errorf("msgbase: read header: %w", err)
	}
	var h Header
	if err := h.UnmarshalBinary(data); err != nil {
		return Header{}, err
	}
	if h.Signature != Signature {
		return Header{}, fmt.Errorf("msgbase: %s: bad signature %q", b.subPath, h.Signature)
	}
	return h, nil
}

func (b *Base) writeHeader(f *recio.File, h Header) error {
	data, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	return f.WriteAt(0, data, RecordSize)
}

// Count returns the number of live (non-tombstoned by truncation)
// post slots currently in the base, per the header's NumMsgs field.
func (b *Base) Count() (int, error) {
	f, err := recio.Open(b.subPath, recio.ReadOnly)
	if err != nil {
		if errors.Is(err, recio.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	h, err := b.header(f)
	if err != nil {
		return 0, err
	}
	return int(h.NumMsgs), nil
}

// ReadPost returns the post at the given 1-based message slot (slot 0
// is the header and is never a valid argument).
func (b *Base) ReadPost(slot int) (PostRecord, error) {
	if slot < 1 {
		return PostRecord{}, fmt.Errorf("%w: slot %d is out of range", recio.ErrInvalidArgument, slot)
	}
	f, err := recio.Open(b.subPath, recio.ReadOnly)
	if err != nil {
		return PostRecord{}, err
	}
	defer f.Close()

	data, err := f.ReadAt(int64(slot)*RecordSize, RecordSize)
	if err != nil {
		return PostRecord{}, fmt.Errorf("msgbase: read post %d: %w", slot, err)
	}
	var p PostRecord
	if err := p.UnmarshalBinary(data); err != nil {
		return PostRecord{}, err
	}
	return p, nil
}

// ReadText returns the message body referenced by rec.
func (b *Base) ReadText(rec PostRecord) ([]byte, error) {
	f, err := recio.Open(b.dtPath, recio.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadAt(int64(rec.TextOffset), int(rec.NumBytes))
}

// AddPost appends text and rec as a new message at the end of the
// base, assigning rec.NumBytes and rec.TextOffset (and rec.MsgNum when
// it is zero) and returning the slot it was written to. The header's NumMsgs and
// ModCounter are updated in the same transaction.
func (b *Base) AddPost(rec PostRecord, text []byte) (slot int, err error) {
	sub, err := recio.Open(b.subPath, recio.ReadWrite)
	if err != nil {
		return 0, err
	}
	defer sub.Close()

	h, err := b.header(sub)
	if err != nil {
		return 0, err
	}

	dt, err := recio.Open(b.dtPath, recio.ReadWrite)
	if err != nil {
		return 0, err
	}
	defer dt.Close()

	textOff, err := dt.Size()
	if err != nil {
		return 0, err
	}
	if err := dt.WriteAt(textOff, text, len(text)); err != nil {
		return 0, fmt.Errorf("msgbase: append text: %w", err)
	}

	nextSlot := int(h.NumMsgs) + 1
	rec.TextOffset = uint32(textOff)
	rec.NumBytes = uint32(len(text))
	if rec.MsgNum == 0 {
		rec.MsgNum = h.ModCounter + 1
	}

	data, err := rec.MarshalBinary()
	if err != nil {
		return 0, err
	}
	if err := sub.WriteAt(int64(nextSlot)*RecordSize, data, RecordSize); err != nil {
		return 0, fmt.Errorf("msgbase: write post %d: %w", nextSlot, err)
	}

	h.NumMsgs++
	h.ModCounter++
	if err := b.writeHeader(sub, h); err != nil {
		return 0, err
	}
	return nextSlot, nil
}

// DeletePost removes the post at slot, sliding every later record down
// by one to close the gap. The shift is done in bounceBufferSize
// chunks so memory use does not scale with base size. The header's
// NumMsgs is decremented; ModCounter is left untouched since deletion
// is not itself a new post.
func (b *Base) DeletePost(slot int) error {
	if slot < 1 {
		return fmt.Errorf("%w: slot %d is out of range", recio.ErrInvalidArgument, slot)
	}

	f, err := recio.Open(b.subPath, recio.ReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := b.header(f)
	if err != nil {
		return err
	}
	if slot > int(h.NumMsgs) {
		return fmt.Errorf("%w: slot %d exceeds %d live posts", recio.ErrInvalidArgument, slot, h.NumMsgs)
	}

	src := int64(slot+1) * RecordSize
	dst := int64(slot) * RecordSize
	size, err := f.Size()
	if err != nil {
		return err
	}

	for src < size {
		chunk := int(size - src)
		if chunk > bounceBufferSize {
			chunk = bounceBufferSize
		}
		// Round down to a whole number of records so a chunk boundary
		// never splits a record across two buffer loads.
		chunk -= chunk % RecordSize

		buf, err := f.ReadAt(src, chunk)
		if err != nil {
			return fmt.Errorf("msgbase: shift read at %d: %w", src, err)
		}
		if err := f.WriteAt(dst, buf, chunk); err != nil {
			return fmt.Errorf("msgbase: shift write at %d: %w", dst, err)
		}
		src += int64(chunk)
		dst += int64(chunk)
	}

	if err := f.Truncate(size - RecordSize); err != nil {
		return err
	}

	h.NumMsgs--
	return b.writeHeader(f, h)
}

// resyncWindow bounds how far Resync walks outward from hint before
// giving up and reporting the post as no longer present.
const resyncWindow = 10000

// Resync relocates target starting its search at slot hint (typically
// the slot it was last known to occupy), walking alternately forward
// and backward until a slot's post matches target's identity fields,
// or the window is exhausted. It is used after an external compaction
// or another node's concurrent delete may have shifted every slot
// after some point in the base.
func (b *Base) Resync(target PostRecord, hint int) (int, error) {
	if hint < 1 {
		hint = 1
	}
	count, err := b.Count()
	if err != nil {
		return 0, err
	}

	if hint <= count {
		if p, err := b.ReadPost(hint); err == nil && p.matches(target) {
			return hint, nil
		}
	}

	for delta := 1; delta <= resyncWindow; delta++ {
		if fwd := hint + delta; fwd <= count {
			if p, err := b.ReadPost(fwd); err == nil && p.matches(target) {
				return fwd, nil
			}
		}
		if back := hint - delta; back >= 1 {
			if p, err := b.ReadPost(back); err == nil && p.matches(target) {
				return back, nil
			}
		}
		if hint+delta > count && hint-delta < 1 {
			break
		}
	}
	return 0, fmt.Errorf("msgbase: resync: no slot matches post %q", target.TitleString())
}
