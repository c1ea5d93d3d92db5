package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
	"github.com/stlalpha/wwivcore/internal/subscriber"
)

// promoted runs ScanPending on dir (as ownNode) and returns every
// packet now sitting in sysNum's outbound file, asserting the scan
// itself succeeded.
func promoted(t *testing.T, dir string, ownNode, sysNum uint16) []netpacket.Packet {
	t.Helper()
	require.NoError(t, packetio.ScanPending(dir, ownNode))
	got, err := packetio.ReadAll(packetio.DestinationPath(dir, sysNum, true))
	require.NoError(t, err)
	return got
}

func setup(t *testing.T) (*board.Registry, string, string, string) {
	t.Helper()
	configDir := t.TempDir()
	reg, err := board.Open(configDir)
	require.NoError(t, err)

	netADir := filepath.Join(t.TempDir(), "netA")
	netBDir := filepath.Join(t.TempDir(), "netB")
	fsxDir := filepath.Join(t.TempDir(), "fsxnet")
	require.NoError(t, os.MkdirAll(netADir, 0755))
	require.NoError(t, os.MkdirAll(netBDir, 0755))
	require.NoError(t, os.MkdirAll(fsxDir, 0755))

	require.NoError(t, reg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", Name: "General", AreaType: "echomail",
		Attachments: []board.NetAttachment{
			{NetworkIndex: 0, NetworkType: "wwivnet", Network: "netA", SubType: "general", HostNode: 0}, // we host netA
			{NetworkIndex: 1, NetworkType: "wwivnet", Network: "netB", SubType: "chat", HostNode: 5},     // leaf under node 5
			{NetworkIndex: 2, NetworkType: "ftn", Network: "fsxnet", SubType: "FSX_GEN"},
		},
	}))
	return reg, netADir, netBDir, fsxDir
}

func newDispatcher(t *testing.T, reg *board.Registry, netADir, netBDir, fsxDir string) *Dispatcher {
	t.Helper()
	return New(reg, map[string]NetworkConfig{
		"netA":   {OwnNode: 100, Directory: netADir},
		"netB":   {OwnNode: 200, Directory: netBDir},
		"fsxnet": {Directory: fsxDir},
	})
}

func TestDispatchLocalPostGatesOntoBothNetworks(t *testing.T) {
	reg, netADir, netBDir, fsxDir := setup(t)
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10, 20, 30}))
	d := newDispatcher(t, reg, netADir, netBDir, fsxDir)

	errs := d.Dispatch(Post{
		BoardID:             1,
		OriginatingNetIndex: -1,
		Title:               "Hello",
		Body:                []byte("world"),
	})
	assert.Empty(t, errs)

	// Hosting network A: list-addressed packet to all subscribers, gated from us.
	pktsA := promoted(t, netADir, 100, 10)
	require.Len(t, pktsA, 1)
	assert.EqualValues(t, 100, pktsA[0].Header.FromSys)
	assert.EqualValues(t, 0, pktsA[0].Header.FromUser)
	assert.Equal(t, []uint16{10, 20, 30}, pktsA[0].List)

	parsed, err := netpacket.Parse(netpacket.MainTypeNewPost, 0, pktsA[0].Text)
	require.NoError(t, err)
	assert.Equal(t, "general", parsed.Subtype)
	assert.Equal(t, "Hello", parsed.Title)
	assert.Equal(t, []byte("world"), parsed.Body)

	// Non-hosting network B: single packet to the host (node 5), gated from us.
	pktsB := promoted(t, netBDir, 200, 5)
	require.Len(t, pktsB, 1)
	assert.EqualValues(t, 200, pktsB[0].Header.FromSys)
	assert.EqualValues(t, 5, pktsB[0].Header.ToSys)
	assert.Empty(t, pktsB[0].List)

	parsedB, err := netpacket.Parse(netpacket.MainTypeNewPost, 0, pktsB[0].Text)
	require.NoError(t, err)
	assert.Equal(t, "chat", parsedB.Subtype)
}

func TestDispatchHostingRelayExcludesOriginalSender(t *testing.T) {
	reg, netADir, netBDir, fsxDir := setup(t)
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10, 20, 30}))
	d := newDispatcher(t, reg, netADir, netBDir, fsxDir)

	errs := d.Dispatch(Post{
		BoardID:             1,
		OriginatingNetIndex: 0, // arrived on netA from node 10
		FromSys:             10,
		FromUser:            7,
		Title:               "Relayed",
		Body:                []byte("text"),
	})
	assert.Empty(t, errs)

	pktsA := promoted(t, netADir, 100, 20)
	require.Len(t, pktsA, 1)
	assert.Equal(t, []uint16{20, 30}, pktsA[0].List)    // sender (10) excluded
	assert.EqualValues(t, 10, pktsA[0].Header.FromSys)  // not gated: same net index, header preserved
	assert.EqualValues(t, 7, pktsA[0].Header.FromUser)
}

func TestDispatchLeafDoesNotForwardBackToHost(t *testing.T) {
	reg, netADir, netBDir, fsxDir := setup(t)
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10, 20}))
	d := newDispatcher(t, reg, netADir, netBDir, fsxDir)

	errs := d.Dispatch(Post{
		BoardID:             1,
		OriginatingNetIndex: 1, // arrived from netB's host (node 5)
		FromSys:             5,
		Title:               "From host",
		Body:                []byte("text"),
	})
	assert.Empty(t, errs)

	entries := promoted(t, netBDir, 200, 5)
	assert.Empty(t, entries) // netB leaf attachment produced nothing

	// But it still gates across to netA, which it hosts.
	pktsA := promoted(t, netADir, 100, 10)
	require.Len(t, pktsA, 1)
	assert.EqualValues(t, 100, pktsA[0].Header.FromSys)
}

func TestDispatchDropsHostingPostWhenNoSubscribersRemain(t *testing.T) {
	reg, netADir, netBDir, fsxDir := setup(t)
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10}))
	d := newDispatcher(t, reg, netADir, netBDir, fsxDir)

	errs := d.Dispatch(Post{
		BoardID:             1,
		OriginatingNetIndex: 0,
		FromSys:             10, // the only subscriber is also the sender
		Title:               "Solo",
		Body:                []byte("text"),
	})
	assert.Empty(t, errs)

	entries := promoted(t, netADir, 100, 10)
	assert.Empty(t, entries)
}

func TestDispatchUnconfiguredNetworkReportsErrorWithoutBlockingOthers(t *testing.T) {
	configDir := t.TempDir()
	reg, err := board.Open(configDir)
	require.NoError(t, err)
	netADir := filepath.Join(t.TempDir(), "netA")
	require.NoError(t, os.MkdirAll(netADir, 0755))

	require.NoError(t, reg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", Name: "General", AreaType: "echomail",
		Attachments: []board.NetAttachment{
			{NetworkIndex: 0, NetworkType: "wwivnet", Network: "netA", SubType: "general", HostNode: 0},
			{NetworkIndex: 1, NetworkType: "wwivnet", Network: "unconfigured", SubType: "x", HostNode: 9},
		},
	}))
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10}))

	d := New(reg, map[string]NetworkConfig{"netA": {OwnNode: 100, Directory: netADir}})

	errs := d.Dispatch(Post{BoardID: 1, OriginatingNetIndex: -1, Title: "T", Body: []byte("b")})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unconfigured")

	pktsA := promoted(t, netADir, 100, 10)
	require.Len(t, pktsA, 1) // netA still dispatched despite netB's config error
}

func TestDispatchFTNAttachmentEmitsGatewayPacket(t *testing.T) {
	reg, netADir, netBDir, fsxDir := setup(t)
	require.NoError(t, subscriber.Write(netADir, "general", []uint16{10}))
	d := newDispatcher(t, reg, netADir, netBDir, fsxDir)

	errs := d.Dispatch(Post{
		BoardID:             1,
		OriginatingNetIndex: -1,
		FromSys:             100,
		FromUser:            1,
		Title:               "T",
		Sender:              "Sysop",
		Body:                []byte("b"),
	})
	assert.Empty(t, errs)

	pkts := promoted(t, fsxDir, 0, netpacket.FTNFakeOutboundNode)
	require.Len(t, pkts, 1)
	assert.EqualValues(t, netpacket.FTNFakeOutboundNode, pkts[0].Header.ToSys)
	assert.Empty(t, pkts[0].List)

	parsed, err := netpacket.Parse(netpacket.MainTypeNewPost, 0, pkts[0].Text)
	require.NoError(t, err)
	assert.Equal(t, "FSX_GEN", parsed.Subtype)
	assert.Equal(t, "T", parsed.Title)
	assert.Equal(t, "Sysop", parsed.Sender)
	assert.Equal(t, []byte("b"), parsed.Body)
}
