package msgbase

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBase(t *testing.T) *Base {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "general.sub"))
}

func makePost(title string, daten, qscan uint32, ownerSys, ownerUser uint16) PostRecord {
	var p PostRecord
	p.SetTitle(title)
	p.DateWritten = daten
	p.QScan = qscan
	p.OwnerSys = ownerSys
	p.OwnerUser = ownerUser
	return p
}

func TestAddPostAssignsSlotsAndUpdatesCount(t *testing.T) {
	b := newTestBase(t)

	slot1, err := b.AddPost(makePost("first", 1000, 1, 1, 1), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, slot1)

	slot2, err := b.AddPost(makePost("second", 1001, 2, 1, 1), []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, 2, slot2)

	count, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReadPostAndTextRoundTrip(t *testing.T) {
	b := newTestBase(t)
	_, err := b.AddPost(makePost("hi", 500, 1, 1, 1), []byte("the body"))
	require.NoError(t, err)

	rec, err := b.ReadPost(1)
	require.NoError(t, err)
	assert.Equal(t, "hi", rec.TitleString())

	text, err := b.ReadText(rec)
	require.NoError(t, err)
	assert.Equal(t, "the body", string(text))
}

func TestDeletePostShiftsLaterRecords(t *testing.T) {
	b := newTestBase(t)
	for i := 0; i < 5; i++ {
		_, err := b.AddPost(makePost(string(rune('a'+i)), uint32(1000+i), uint32(i), 1, 1), []byte{byte('a' + i)})
		require.NoError(t, err)
	}

	require.NoError(t, b.DeletePost(2)) // remove "b"

	count, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	rec2, err := b.ReadPost(2)
	require.NoError(t, err)
	assert.Equal(t, "c", rec2.TitleString())

	rec4, err := b.ReadPost(4)
	require.NoError(t, err)
	assert.Equal(t, "e", rec4.TitleString())
}

func TestDeletePostAcrossBounceBufferBoundary(t *testing.T) {
	b := newTestBase(t)
	// Enough posts that the shift spans more than one bounce-buffer chunk.
	n := (bounceBufferSize / RecordSize) * 2
	for i := 0; i < n; i++ {
		_, err := b.AddPost(makePost("t", uint32(i), uint32(i), 1, 1), []byte("x"))
		require.NoError(t, err)
	}

	require.NoError(t, b.DeletePost(1))

	count, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, n-1, count)

	last, err := b.ReadPost(count)
	require.NoError(t, err)
	assert.EqualValues(t, n-1, last.QScan)
}

func TestResyncFindsShiftedPost(t *testing.T) {
	b := newTestBase(t)
	for i := 0; i < 5; i++ {
		_, err := b.AddPost(makePost("t", uint32(1000+i), uint32(i), 1, 1), []byte("x"))
		require.NoError(t, err)
	}
	target, err := b.ReadPost(4) // QScan == 3
	require.NoError(t, err)

	require.NoError(t, b.DeletePost(2)) // posts after slot 2 shift down by one

	slot, err := b.Resync(target, 4) // stale hint, post actually now at slot 3
	require.NoError(t, err)
	assert.Equal(t, 3, slot)
}

func TestResyncReportsMissingPost(t *testing.T) {
	b := newTestBase(t)
	_, err := b.AddPost(makePost("only", 1, 1, 1, 1), []byte("x"))
	require.NoError(t, err)

	ghost := makePost("never existed", 999, 999, 9, 9)
	_, err = b.Resync(ghost, 1)
	assert.Error(t, err)
}
