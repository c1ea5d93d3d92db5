package status

import (
	"errors"
	"fmt"

	"github.com/stlalpha/wwivcore/internal/clock"
	"github.com/stlalpha/wwivcore/internal/recio"
)

// CurrentVersion is written into fresh records and bumped whenever the
// on-disk layout changes in a way older binaries cannot read.
const CurrentVersion = 1

// Store is the transactional accessor for a single status record file
// (traditionally status.dat). Every mutation goes through Run, which
// opens the file exclusively, re-reads the current record, applies the
// caller's function, and writes the result back before releasing the
// lock — this is the same open/read/mutate/write-back shape as the
// teacher's multinode manager uses for its semaphore and node records.
type Store struct {
	path  string
	clock clock.Clock
}

// New returns a Store backed by path, using clk for CreatedDaten/new-day
// comparisons. Pass clock.SystemClock{} in production and a FakeClock
// in tests.
func New(path string, clk clock.Clock) *Store {
	return &Store{path: path, clock: clk}
}

// Get returns the current record without taking an exclusive lock,
// creating and persisting a fresh zero record if none exists yet.
func (s *Store) Get() (Record, error) {
	var rec Record
	err := s.withFile(recio.ReadOnly, func(f *recio.File) error {
		r, ferr := s.read(f)
		rec = r
		return ferr
	})
	if errors.Is(err, recio.ErrNotFound) {
		return s.initialize()
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Run performs a read-mutate-write transaction: it opens the file
// exclusively, reads the current record (initializing one if the file
// is new), calls fn with a pointer to it, and — unless fn returns an
// error — writes the mutated record back before unlocking. If fn
// returns an error the file is left untouched and the error is
// propagated to the caller.
func (s *Store) Run(fn func(rec *Record) error) error {
	return s.withFile(recio.ReadWrite, func(f *recio.File) error {
		rec, err := s.read(f)
		if err == recio.ErrNotFound {
			rec = Record{Version: CurrentVersion, CreatedDaten: uint32(clock.Now(s.clock))}
		} else if err != nil {
			return err
		}

		if err := fn(&rec); err != nil {
			return err
		}

		data, err := rec.MarshalBinary()
		if err != nil {
			return err
		}
		return f.WriteAt(0, data, RecordSize)
	})
}

// NewDay rolls the daily counters over for today's date (YYYYMMDD,
// local time per clk) if they have not already been rolled for it.
// The rollover is idempotent: a second call on the same day with the
// same date string is a no-op, which resolves the case of two
// instances both crossing midnight and calling NewDay concurrently —
// whichever wins the Run lock first performs the rotation, and the
// loser observes LogDates[2] already equal to today and does nothing
// further. logName is accepted but not stored: the record keeps only
// the date ring, not log filenames.
func (s *Store) NewDay(today string, logName string) error {
	return s.Run(func(rec *Record) error {
		if rec.ValidLogDate(logRingSize-1) && string(trimRight(rec.LogDates[logRingSize-1][:])) == today {
			return nil
		}
		for i := 0; i < logRingSize-1; i++ {
			rec.LogDates[i] = rec.LogDates[i+1]
		}
		rec.SetLogDate(logRingSize-1, today)
		_ = logName // not stored; the record has no log-filename slots

		rec.CallersToday = 0
		rec.MailToday = 0
		rec.PostsToday = 0
		rec.UploadsToday = 0
		rec.Days++
		rec.BumpFileChange(ChangeGeneral)
		return nil
	})
}

func (s *Store) initialize() (Record, error) {
	rec := Record{Version: CurrentVersion, CreatedDaten: uint32(clock.Now(s.clock))}
	err := s.withFile(recio.ReadWrite, func(f *recio.File) error {
		data, merr := rec.MarshalBinary()
		if merr != nil {
			return merr
		}
		return f.WriteAt(0, data, RecordSize)
	})
	return rec, err
}

func (s *Store) read(f *recio.File) (Record, error) {
	size, err := f.Size()
	if err != nil {
		return Record{}, err
	}
	if size < RecordSize {
		return Record{}, recio.ErrNotFound
	}
	data, err := f.ReadAt(0, RecordSize)
	if err != nil {
		return Record{}, fmt.Errorf("status: read record: %w", err)
	}
	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Store) withFile(mode recio.Mode, fn func(f *recio.File) error) error {
	f, err := recio.Open(s.path, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// trimRight strips trailing NUL bytes, used when comparing a stored
// date slot against a freshly formatted date string.
func trimRight(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}
