package ftngate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/dispatch"
	"github.com/stlalpha/wwivcore/internal/jam"
	"github.com/stlalpha/wwivcore/internal/netpacket"
	"github.com/stlalpha/wwivcore/internal/packetio"
)

func setup(t *testing.T) (*board.Registry, string, string) {
	t.Helper()
	configDir := t.TempDir()
	reg, err := board.Open(configDir)
	require.NoError(t, err)

	gatewayDir := filepath.Join(t.TempDir(), "fsxnet")
	require.NoError(t, os.MkdirAll(gatewayDir, 0755))
	basePath := filepath.Join(t.TempDir(), "general")

	require.NoError(t, reg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", Name: "General", AreaType: "echomail", BasePath: basePath,
		Attachments: []board.NetAttachment{
			{NetworkIndex: 0, NetworkType: "ftn", Network: "fsxnet", SubType: "FSX_GEN"},
		},
	}))
	return reg, gatewayDir, basePath
}

func TestDrainLocalFilesPostIntoJAM(t *testing.T) {
	reg, gatewayDir, basePath := setup(t)
	d := dispatch.New(reg, map[string]dispatch.NetworkConfig{
		"fsxnet": {Directory: gatewayDir},
	})

	errs := d.Dispatch(dispatch.Post{
		BoardID:             1,
		OriginatingNetIndex: -1,
		FromSys:             100,
		FromUser:            1,
		Title:               "Hello",
		Sender:              "Sysop",
		Body:                []byte("world"),
	})
	require.Empty(t, errs)

	a := New(reg, "fsxnet", gatewayDir)
	res, err := a.DrainLocal()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Filed)
	assert.Equal(t, 0, res.Skipped)

	base, err := jam.Open(basePath)
	require.NoError(t, err)
	defer base.Close()
	count, err := base.GetMessageCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDrainLocalSkipsUnmatchedEchoTag(t *testing.T) {
	reg, gatewayDir, _ := setup(t)

	text := netpacket.Build(netpacket.MainTypeNewPost, 0, netpacket.ParsedText{
		Subtype: "NOSUCHECHO", Title: "T", Sender: "Sysop", Date: "Mon Jan  2 15:04:05 2006", Body: []byte("b"),
	})
	hdr := netpacket.NetHeader{MainType: netpacket.MainTypeNewPost, ToSys: netpacket.FTNFakeOutboundNode}
	pkt := netpacket.New(hdr, nil, text)
	_, err := packetio.CreatePend(gatewayDir, packetio.OriginLocal, 'P', pkt)
	require.NoError(t, err)

	a := New(reg, "fsxnet", gatewayDir)
	res, err := a.DrainLocal()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Filed)
	assert.Equal(t, 1, res.Skipped)
}
