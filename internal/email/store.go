package email

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/recio"
)

// crlf separates the sender and date lines prepended to every stored
// text blob, matching internal/netpacket's "sender CRLF date CRLF
// body" layout so a message read back out of the store can be handed
// straight to netpacket.Build for the email main type without
// re-encoding.
var crlf = []byte("\r\n")

// Store is the transactional accessor for the shared email.dat file
// and its companion text blob file.
type Store struct {
	datPath string
	txtPath string
	clock   clock.Clock
}

// New returns a Store backed by datPath; the text blob file is
// datPath with its extension replaced by ".txt".
func New(datPath string, clk clock.Clock) *Store {
	txtPath := datPath
	if len(txtPath) > 4 && txtPath[len(txtPath)-4:] == ".dat" {
		txtPath = txtPath[:len(txtPath)-4] + ".txt"
	} else {
		txtPath += ".txt"
	}
	return &Store{datPath: datPath, txtPath: txtPath, clock: clk}
}

// Count returns the number of slots in the file, live or tombstoned.
func (s *Store) Count() (int, error) {
	f, err := recio.Open(s.datPath, recio.ReadOnly)
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

// ReadAt returns the slot at the given 0-based index.
func (s *Store) ReadAt(index int) (Record, error) {
	f, err := recio.Open(s.datPath, recio.ReadOnly)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()

	data, err := f.ReadAt(int64(index)*RecordSize, RecordSize)
	if err != nil {
		return Record{}, fmt.Errorf("email: read slot %d: %w", index, err)
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ReadText returns the raw text blob referenced by rec: the sender and
// date lines Send prepended, followed by the message body. Most
// callers want ReadBody instead.
func (s *Store) ReadText(rec Record) ([]byte, error) {
	f, err := recio.Open(s.txtPath, recio.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadAt(int64(rec.TextOffset), int(rec.NumBytes))
}

// ReadBody returns rec's message body with the sender and date header
// lines Send encoded ahead of it split back out.
func (s *Store) ReadBody(rec Record) (sender, date string, body []byte, err error) {
	blob, err := s.ReadText(rec)
	if err != nil {
		return "", "", nil, err
	}
	return decodeText(blob)
}

// encodeText prepends the sender display-name and wwivnet date lines
// ahead of body, the same "sender CRLF date CRLF body" shape
// internal/netpacket uses for the email main type.
func encodeText(sender, date string, body []byte) []byte {
	out := make([]byte, 0, len(sender)+len(date)+len(body)+4)
	out = append(out, sender...)
	out = append(out, crlf...)
	out = append(out, date...)
	out = append(out, crlf...)
	out = append(out, body...)
	return out
}

func decodeText(blob []byte) (sender, date string, body []byte, err error) {
	i := bytes.Index(blob, crlf)
	if i < 0 {
		return "", "", nil, fmt.Errorf("email: text blob missing sender line")
	}
	sender = string(blob[:i])
	rest := blob[i+2:]

	j := bytes.Index(rest, crlf)
	if j < 0 {
		return "", "", nil, fmt.Errorf("email: text blob missing date line")
	}
	date = string(rest[:j])
	body = rest[j+2:]
	return sender, date, body, nil
}

// Send appends one recipient slot per entry in toUsers, all sharing
// one text blob and one GroupID. A single recipient gets
// StatusMultiMail cleared; two or more recipients all get it set, so
// each inbox view can tell a fan-out send apart from a 1:1 one. The
// text blob stores senderName and the send's wwivnet date line ahead
// of text, per encodeText.
func (s *Store) Send(fromSys, fromUser, toSys uint16, toUsers []uint16, senderName, title string, text []byte) ([]int, error) {
	if len(toUsers) == 0 {
		return nil, fmt.Errorf("%w: no recipients", recio.ErrInvalidArgument)
	}

	dat, err := recio.Open(s.datPath, recio.ReadWrite)
	if err != nil {
		return nil, err
	}
	defer dat.Close()

	txt, err := recio.Open(s.txtPath, recio.ReadWrite)
	if err != nil {
		return nil, err
	}
	defer txt.Close()

	daten := clock.Now(s.clock)
	dateLine := clock.FormatWWIVnetTime(daten.Time())
	blob := encodeText(senderName, dateLine, text)

	textOff, err := txt.Size()
	if err != nil {
		return nil, err
	}
	if err := txt.WriteAt(textOff, blob, len(blob)); err != nil {
		return nil, fmt.Errorf("email: append text: %w", err)
	}

	baseSlot, err := dat.Size()
	if err != nil {
		return nil, err
	}
	startIndex := int(baseSlot / RecordSize)

	groupID := uint32(daten)
	status := uint16(0)
	if len(toUsers) > 1 {
		status = StatusMultiMail
	}

	indexes := make([]int, 0, len(toUsers))
	for i, toUser := range toUsers {
		rec := Record{
			FromSys:     fromSys,
			FromUser:    fromUser,
			ToSys:       toSys,
			ToUser:      toUser,
			DateWritten: uint32(daten),
			Status:      status,
			TextOffset:  uint32(textOff),
			NumBytes:    uint32(len(blob)),
			GroupID:     groupID,
		}
		rec.SetTitle(title)

		data, err := rec.MarshalBinary()
		if err != nil {
			return nil, err
		}
		index := startIndex + i
		if err := dat.WriteAt(int64(index)*RecordSize, data, RecordSize); err != nil {
			return nil, fmt.Errorf("email: write slot %d: %w", index, err)
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

// Delete tombstones the slot at index by zeroing ToUser, per the
// store's delete-by-zeroing contract: the slot and every other
// recipient's index are left undisturbed.
func (s *Store) Delete(index int) error {
	f, err := recio.Open(s.datPath, recio.ReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := f.ReadAt(int64(index)*RecordSize, RecordSize)
	if err != nil {
		return fmt.Errorf("email: read slot %d: %w", index, err)
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return err
	}
	rec.Tombstone()

	out, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return f.WriteAt(int64(index)*RecordSize, out, RecordSize)
}

// ListForUser returns every live (non-tombstoned) slot addressed to
// toUser, in slot order, each paired with its slot index so callers
// can later Delete a specific entry.
func (s *Store) ListForUser(toUser uint16) ([]IndexedRecord, error) {
	n, err := s.Count()
	if err != nil {
		return nil, err
	}

	var out []IndexedRecord
	for i := 0; i < n; i++ {
		rec, err := s.ReadAt(i)
		if err != nil {
			return nil, err
		}
		if rec.Deleted() || rec.ToUser != toUser {
			continue
		}
		out = append(out, IndexedRecord{Index: i, Record: rec})
	}
	return out, nil
}

// IndexedRecord pairs a Record with the slot index it was read from.
type IndexedRecord struct {
	Index  int
	Record Record
}
