package instance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/clock"
)

func TestRegistryEmptyFileReportsOfflineSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.dat")
	reg := New(path)

	n, err := reg.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rec, err := reg.At(0)
	require.NoError(t, err)
	assert.False(t, rec.Online())
	assert.EqualValues(t, 1, rec.NodeNum)
}

func TestRegistryUpsertFillsGapWithOfflineSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.dat")
	reg := New(path)
	fc := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))

	rec := NewOffline(3)
	rec.Touch(fc, 42, LocationMain, 0)
	require.NoError(t, reg.Upsert(2, rec))

	n, err := reg.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	slot0, err := reg.At(0)
	require.NoError(t, err)
	assert.False(t, slot0.Online())

	slot2, err := reg.At(2)
	require.NoError(t, err)
	assert.True(t, slot2.Online())
	assert.EqualValues(t, 42, slot2.UserNum)
}

func TestRegistryUpsertRejectsInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.dat")
	reg := New(path)

	bad := Record{NodeNum: 1, UserNum: 5} // offline but claims a user
	err := reg.Upsert(0, bad)
	assert.Error(t, err)
}

func TestRegistryAllReturnsEveryOccupiedSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.dat")
	reg := New(path)
	fc := clock.NewFakeClock(time.Now())

	r0 := NewOffline(1)
	r0.Touch(fc, 1, LocationMain, 0)
	require.NoError(t, reg.Upsert(0, r0))

	r1 := NewOffline(2)
	r1.Touch(fc, 2, LocationChat, 0)
	require.NoError(t, reg.Upsert(1, r1))

	all, err := reg.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Online())
	assert.True(t, all[1].Online())
}

func TestTouchStampsStartedAtOnlyOnFreshLogon(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	rec := NewOffline(1)
	rec.Touch(fc, 1, LocationMain, 0)
	started := rec.StartedAt

	fc.Advance(5 * time.Minute)
	rec.Touch(fc, 1, LocationMsgBase, 2)
	assert.Equal(t, started, rec.StartedAt)
	assert.Greater(t, rec.LastUpdated, started)
}

func TestClearDropsUserAndMarksOffline(t *testing.T) {
	fc := clock.NewFakeClock(time.Now())
	rec := NewOffline(1)
	rec.Touch(fc, 9, LocationMain, 0)
	rec.Clear(fc)
	require.NoError(t, rec.Validate())
	assert.False(t, rec.Online())
	assert.EqualValues(t, 0, rec.UserNum)
}
