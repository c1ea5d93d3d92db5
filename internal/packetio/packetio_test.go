package packetio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/netpacket"
)

func TestWriteAndReadAllPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s2.net")

	p1 := netpacket.New(netpacket.NetHeader{FromSys: 1, ToUser: 1, MainType: netpacket.MainTypeEmail}, nil, []byte("one"))
	p2 := netpacket.New(netpacket.NetHeader{FromSys: 1, ToUser: 2, MainType: netpacket.MainTypeEmail}, nil, []byte("two"))

	require.NoError(t, WritePacket(path, p1))
	require.NoError(t, WritePacket(path, p2))

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("one"), got[0].Text)
	assert.Equal(t, []byte("two"), got[1].Text)
}

func TestReadAllOnMissingFileReturnsEmpty(t *testing.T) {
	got, err := ReadAll(filepath.Join(t.TempDir(), "missing.net"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeletePacketTombstonesInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s2.net")
	p1 := netpacket.New(netpacket.NetHeader{FromSys: 1, MainType: netpacket.MainTypeEmail}, nil, []byte("one"))
	p2 := netpacket.New(netpacket.NetHeader{FromSys: 1, MainType: netpacket.MainTypeEmail}, nil, []byte("two"))
	require.NoError(t, WritePacket(path, p1))
	require.NoError(t, WritePacket(path, p2))

	require.NoError(t, DeletePacket(path, 0))

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Deleted())
	assert.False(t, got[1].Deleted())
	assert.Equal(t, []byte("two"), got[1].Text)
}

func TestDestinationPathPicksSendOrPendingPrefix(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "s5.net"), DestinationPath(dir, 5, true))
	assert.Equal(t, filepath.Join(dir, "p5.net"), DestinationPath(dir, 5, false))
}

func TestCreatePendNamesFileByOriginAppIDAndSequence(t *testing.T) {
	dir := t.TempDir()
	p := netpacket.New(netpacket.NetHeader{FromSys: 1, ToSys: 9, MainType: netpacket.MainTypeEmail}, nil, []byte("queued"))

	path, err := CreatePend(dir, OriginLocal, 'E', p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p0-E-000.net"), path)

	path2, err := CreatePend(dir, OriginLocal, 'E', p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "p0-E-001.net"), path2)
}

func TestScanPendingPromotesSingleDestinationPacket(t *testing.T) {
	dir := t.TempDir()
	p := netpacket.New(netpacket.NetHeader{FromSys: 1, ToSys: 9, MainType: netpacket.MainTypeEmail}, nil, []byte("queued"))
	pendPath, err := CreatePend(dir, OriginLocal, 'E', p)
	require.NoError(t, err)

	require.NoError(t, ScanPending(dir, 1))

	got, err := ReadAll(DestinationPath(dir, 9, true))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("queued"), got[0].Text)

	_, statErr := ReadAll(pendPath)
	require.NoError(t, statErr) // pending file removed; ReadAll on missing path returns empty, no error
}

func TestScanPendingIsNoopWithoutPendingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	assert.NoError(t, ScanPending(dir, 1))
}

func TestScanPendingFansListAddressedPacketToEveryNode(t *testing.T) {
	dir := t.TempDir()
	p := netpacket.New(netpacket.NetHeader{FromSys: 1, ToSys: netpacket.NoNode, MainType: netpacket.MainTypeNewPost},
		[]uint16{5, 6}, []byte("echo post"))
	_, err := CreatePend(dir, OriginLocal, 'P', p)
	require.NoError(t, err)

	require.NoError(t, ScanPending(dir, 1))

	for _, sys := range []uint16{5, 6} {
		got, err := ReadAll(DestinationPath(dir, sys, true))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []byte("echo post"), got[0].Text)
	}
}

func TestScanPendingAppendsWhenReadyFileAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	readyPath := DestinationPath(dir, 3, true)
	require.NoError(t, WritePacket(readyPath, netpacket.New(netpacket.NetHeader{MainType: netpacket.MainTypeEmail}, nil, []byte("first"))))

	p := netpacket.New(netpacket.NetHeader{ToSys: 3, MainType: netpacket.MainTypeEmail}, nil, []byte("second"))
	_, err := CreatePend(dir, OriginLocal, 'E', p)
	require.NoError(t, err)

	require.NoError(t, ScanPending(dir, 1))

	got, err := ReadAll(readyPath)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("first"), got[0].Text)
	assert.Equal(t, []byte("second"), got[1].Text)
}

func TestReadAllStripsDe1BundleHeaderFromCompressedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s2.net")

	bundleHdr := NewBundleHeader(1, 2, 0, 1)
	bundleBytes, err := bundleHdr.MarshalBinary()
	require.NoError(t, err)
	wrapped := append(bundleBytes, []byte("payload")...)

	p := netpacket.New(netpacket.NetHeader{FromSys: 1, MainType: netpacket.MainTypeEmail, Method: 1}, nil, wrapped)
	require.NoError(t, WritePacket(path, p))

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("payload"), got[0].Text)
	assert.EqualValues(t, 0, got[0].Header.Method)
}

func TestRoutePathSendsNoRouteToDeadLetter(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, DeadPath(dir), RoutePath(dir, 1, netpacket.NoRoute, true))
	assert.Equal(t, LocalPath(dir), RoutePath(dir, 1, 1, true))
	assert.Equal(t, LocalPath(dir), RoutePath(dir, 1, netpacket.NoNode, true))
	assert.Equal(t, DestinationPath(dir, 9, true), RoutePath(dir, 1, 9, true))
}

func TestBundleHeaderRoundTrip(t *testing.T) {
	h := NewBundleHeader(1, 2, 123456, 3)
	data, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, BundleHeaderSize)

	var got BundleHeader
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, h, got)
}
