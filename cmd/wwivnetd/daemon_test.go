package main

import (
	"path/filepath"
	"testing"

	"github.com/stlalpha/wwivcore/internal/board"
	"github.com/stlalpha/wwivcore/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestPollIntervalSecondsPicksFastestEnabledNetwork(t *testing.T) {
	cfg := config.FTNConfig{
		Networks: map[string]config.FTNNetworkConfig{
			"slow":     {InternalTosserEnabled: true, PollSeconds: 300},
			"fast":     {InternalTosserEnabled: true, PollSeconds: 30},
			"disabled": {InternalTosserEnabled: false, PollSeconds: 5},
			"manual":   {InternalTosserEnabled: true, PollSeconds: 0},
		},
	}
	assert.Equal(t, 30, pollIntervalSeconds(cfg, 60))
}

func TestPollIntervalSecondsFallsBackWhenNoneEnabled(t *testing.T) {
	cfg := config.FTNConfig{
		Networks: map[string]config.FTNNetworkConfig{
			"disabled": {InternalTosserEnabled: false, PollSeconds: 5},
			"manual":   {InternalTosserEnabled: true, PollSeconds: 0},
		},
	}
	assert.Equal(t, 60, pollIntervalSeconds(cfg, 60))
}

func TestToTosserConfigOnlyIncludesEchoAreasForItsOwnNetwork(t *testing.T) {
	boardReg, err := board.Open(t.TempDir())
	assert.NoError(t, err)
	assert.NoError(t, boardReg.Add(board.Descriptor{
		ID: 1, Tag: "GENERAL", BasePath: "x",
		Attachments: []board.NetAttachment{{NetworkType: "ftn", Network: "fsxnet", SubType: "FSX_GEN"}},
	}))
	assert.NoError(t, boardReg.Add(board.Descriptor{
		ID: 2, Tag: "FIDONEWS", BasePath: "y",
		Attachments: []board.NetAttachment{{NetworkType: "ftn", Network: "fidonet", SubType: "FIDONEWS"}},
	}))

	ftnCfg := config.FTNConfig{BadAreaTag: "BAD", DupeAreaTag: "DUPE"}
	netCfg := config.FTNNetworkConfig{
		InternalTosserEnabled: true,
		OwnAddress:            "21:4/158.1",
		Links: []config.FTNLinkConfig{
			{Address: "21:1/100", PacketPassword: "secret", Name: "uplink"},
		},
	}

	tc := toTosserConfig(ftnCfg, "fsxnet", netCfg, boardReg)

	assert.Equal(t, "BAD", tc.BadAreaTag)
	assert.Equal(t, "DUPE", tc.DupeAreaTag)
	assert.Len(t, tc.Links, 1)
	assert.Equal(t, []string{"FSX_GEN"}, tc.Links[0].EchoAreas)
	assert.Equal(t, "secret", tc.Links[0].Password)
}

func TestResolveRelativeLeavesAbsolutePathsAlone(t *testing.T) {
	assert.Equal(t, "/abs/path", resolveRelative("/root", "/abs/path"))
	assert.Equal(t, "", resolveRelative("/root", ""))
	assert.Equal(t, filepath.Join("/root", "rel", "path"), resolveRelative("/root", "rel/path"))
}
