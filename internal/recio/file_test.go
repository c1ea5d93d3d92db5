package recio

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dat")

	f, err := Open(path, ReadWrite)
	require.NoError(t, err)

	record := []byte("0123456789")
	require.NoError(t, f.WriteAt(0, record, 10))

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)

	got, err := f.ReadAt(0, 10)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	require.NoError(t, f.Close())
}

func TestReadAtShortReadIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.dat")
	f, err := Open(path, ReadWrite)
	require.NoError(t, err)
	require.NoError(t, f.WriteAt(0, []byte("abc"), 3))

	_, err = f.ReadAt(0, 10)
	assert.ErrorIs(t, err, ErrShortIO)
	require.NoError(t, f.Close())
}

func TestWriteAtShorterThanRecordSizePanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panic.dat")
	f, err := Open(path, ReadWrite)
	require.NoError(t, err)
	defer f.Close()

	assert.Panics(t, func() {
		_ = f.WriteAt(0, []byte("ab"), 10)
	})
}

func TestOpenMissingReadOnlyIsNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dat"), ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirstFreeName(t *testing.T) {
	dir := t.TempDir()
	pattern := func(i int) string { return filepath.Join(dir, "msg"+strconv.Itoa(i)+".json") }

	f1, p1, err := FirstFreeName(1000, pattern)
	require.NoError(t, err)
	f1.Close()
	assert.Equal(t, pattern(0), p1)

	f2, p2, err := FirstFreeName(1000, pattern)
	require.NoError(t, err)
	f2.Close()
	assert.Equal(t, pattern(1), p2)
	assert.NotEqual(t, p1, p2)
}

func TestFirstFreeNameExhausted(t *testing.T) {
	dir := t.TempDir()
	pattern := func(i int) string { return filepath.Join(dir, "only") }

	f, _, err := FirstFreeName(1, pattern)
	require.NoError(t, err)
	f.Close()

	_, _, err = FirstFreeName(1, pattern)
	assert.True(t, errors.Is(err, ErrSharingBusy))
}
