package inbound

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/dispatch"
	"github.com/stlalpha/wwivcore/internal/msgbase"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
	"github.com/stlalpha/wwivcore/internal/subscriber"
)

func setup(t *testing.T) (*board.Registry, string, string) {
	t.Helper()
	configDir := t.TempDir()
	reg, err := board.Open(configDir)
	require.NoError(t, err)

	netDir := filepath.Join(t.TempDir(), "netA")
	require.NoError(t, os.MkdirAll(netDir, 0755))
	basePath := filepath.Join(t.TempDir(), "general.sub")

	require.NoError(t, reg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", Name: "General", AreaType: "echomail", BasePath: basePath,
		Attachments: []board.NetAttachment{
			{NetworkIndex: 0, NetworkType: "wwivnet", Network: "netA", SubType: "general", HostNode: 5}, // leaf under node 5
		},
	}))
	return reg, netDir, basePath
}

func writeLocal(t *testing.T, dir string, fromSys uint16, title string, body []byte) {
	t.Helper()
	text := netpacket.Build(netpacket.MainTypeNewPost, 0, netpacket.ParsedText{
		Subtype: "general", Title: title, Sender: "Sysop", Date: "Mon Jan  2 15:04:05 2006", Body: body,
	})
	pkt := netpacket.New(netpacket.NetHeader{
		FromSys: fromSys, MainType: netpacket.MainTypeNewPost,
	}, nil, text)
	require.NoError(t, packetio.WritePacket(packetio.LocalPath(dir), pkt))
}

func TestProcessLocalFilesPostAndRemovesLocalNet(t *testing.T) {
	reg, netDir, basePath := setup(t)
	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{"netA": {OwnNode: 200, Directory: netDir}})
	p := New(reg, d, "netA", netDir)

	writeLocal(t, netDir, 5, "Hello", []byte("world"))

	res, err := p.ProcessLocal()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filed)
	assert.Equal(t, 0, res.Skipped)

	_, err = os.Stat(packetio.LocalPath(netDir))
	assert.True(t, os.IsNotExist(err))

	base := msgbase.Open(basePath)
	count, err := base.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)
	rec, err := base.ReadPost(1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", rec.TitleString())
	text, err := base.ReadText(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), text)
}

func TestProcessLocalSkipsUnmatchedSubtype(t *testing.T) {
	reg, netDir, _ := setup(t)
	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{"netA": {OwnNode: 200, Directory: netDir}})
	p := New(reg, d, "netA", netDir)

	text := netpacket.Build(netpacket.MainTypeNewPost, 0, netpacket.ParsedText{
		Subtype: "nosuchsub", Title: "T", Sender: "Sysop", Date: "Mon Jan  2 15:04:05 2006", Body: []byte("b"),
	})
	pkt := netpacket.New(netpacket.NetHeader{FromSys: 5, MainType: netpacket.MainTypeNewPost}, nil, text)
	require.NoError(t, packetio.WritePacket(packetio.LocalPath(netDir), pkt))

	res, err := p.ProcessLocal()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Filed)
	assert.Equal(t, 1, res.Skipped)
}

func TestProcessLocalSkipsNonPostTraffic(t *testing.T) {
	reg, netDir, _ := setup(t)
	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{"netA": {OwnNode: 200, Directory: netDir}})
	p := New(reg, d, "netA", netDir)

	pkt := netpacket.New(netpacket.NetHeader{FromSys: 5, MainType: netpacket.MainTypeEmail}, nil, []byte("irrelevant"))
	require.NoError(t, packetio.WritePacket(packetio.LocalPath(netDir), pkt))

	res, err := p.ProcessLocal()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Filed)
	assert.Equal(t, 1, res.Skipped)
}

func TestProcessLocalEmptyFileIsNoop(t *testing.T) {
	reg, netDir, _ := setup(t)
	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{"netA": {OwnNode: 200, Directory: netDir}})
	p := New(reg, d, "netA", netDir)

	res, err := p.ProcessLocal()
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestProcessLocalRedistributesOntoOtherAttachedNetwork(t *testing.T) {
	configDir := t.TempDir()
	reg, err := board.Open(configDir)
	require.NoError(t, err)

	netADir := filepath.Join(t.TempDir(), "netA")
	netBDir := filepath.Join(t.TempDir(), "netB")
	require.NoError(t, os.MkdirAll(netADir, 0755))
	require.NoError(t, os.MkdirAll(netBDir, 0755))
	basePath := filepath.Join(t.TempDir(), "general.sub")

	require.NoError(t, reg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", Name: "General", AreaType: "echomail", BasePath: basePath,
		Attachments: []board.NetAttachment{
			{NetworkIndex: 0, NetworkType: "wwivnet", Network: "netA", SubType: "general", HostNode: 5}, // arrives here, leaf
			{NetworkIndex: 1, NetworkType: "wwivnet", Network: "netB", SubType: "chat", HostNode: 0},     // we host netB
		},
	}))
	require.NoError(t, subscriber.Write(netBDir, "chat", []uint16{10, 20}))

	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{
		"netA": {OwnNode: 100, Directory: netADir},
		"netB": {OwnNode: 200, Directory: netBDir},
	})
	p := New(reg, d, "netA", netADir)

	writeLocal(t, netADir, 5, "Gated", []byte("text"))

	res, err := p.ProcessLocal()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filed)

	require.NoError(t, packetio.ScanPending(netBDir, 200))
	pkts, err := packetio.ReadAll(packetio.DestinationPath(netBDir, 10, true))
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	parsed, err := netpacket.Parse(netpacket.MainTypeNewPost, 0, pkts[0].Text)
	require.NoError(t, err)
	assert.Equal(t, "chat", parsed.Subtype)
}
