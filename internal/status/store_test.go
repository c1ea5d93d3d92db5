package status

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/clock"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "status.dat")
	return New(path, fc), fc
}

func TestGetInitializesFreshRecord(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, CurrentVersion, rec.Version)
	assert.NotZero(t, rec.CreatedDaten)
}

func TestRunRoundTripsMutation(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.Run(func(rec *Record) error {
		rec.CallersToday++
		rec.Callers++
		return nil
	})
	require.NoError(t, err)

	rec, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.CallersToday)
	assert.EqualValues(t, 1, rec.Callers)
}

func TestRunLeavesRecordUntouchedOnError(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Run(func(rec *Record) error {
		rec.Callers = 5
		return nil
	}))

	wantErr := assert.AnError
	err := s.Run(func(rec *Record) error {
		rec.Callers = 99
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	rec, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 5, rec.Callers)
}

func TestNewDayRotatesCountersAndRing(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Run(func(rec *Record) error {
		rec.CallersToday = 10
		rec.MailToday = 2
		return nil
	}))

	require.NoError(t, s.NewDay("20260731", "20260731.log"))

	rec, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 0, rec.CallersToday)
	assert.EqualValues(t, 0, rec.MailToday)
	assert.EqualValues(t, 1, rec.Days)
	assert.True(t, rec.ValidLogDate(2))
}

func TestNewDayIsIdempotentForSameDate(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.NewDay("20260731", "a.log"))
	require.NoError(t, s.Run(func(rec *Record) error {
		rec.CallersToday = 7
		return nil
	}))

	// A second instance racing the same day-rollover call must not
	// reset counters or advance Days again.
	require.NoError(t, s.NewDay("20260731", "a.log"))

	rec, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Days)
	assert.EqualValues(t, 7, rec.CallersToday)
}

func TestNewDayRepairsCorruptedLogSlot(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Run(func(rec *Record) error {
		rec.LogDates[2] = [8]byte{'?', '?', '?', '?'}
		return nil
	}))

	rec, err := s.Get()
	require.NoError(t, err)
	assert.False(t, rec.ValidLogDate(2))

	require.NoError(t, s.NewDay("20260801", "b.log"))

	rec, err = s.Get()
	require.NoError(t, err)
	assert.True(t, rec.ValidLogDate(2))
}
