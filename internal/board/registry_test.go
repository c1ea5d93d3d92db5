package board

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetAndTagLookup(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, r.Add(Descriptor{ID: 1, Tag: "GENERAL", Name: "General Chat", BasePath: filepath.Join(dir, "general"), AreaType: "local"}))

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "GENERAL", got.Tag)

	byTag, ok := r.GetByTag("GENERAL")
	require.True(t, ok)
	assert.Equal(t, 1, byTag.ID)
}

func TestAddRejectsDuplicateIDAndTag(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{ID: 1, Tag: "GENERAL", BasePath: "a"}))

	assert.Error(t, r.Add(Descriptor{ID: 1, Tag: "OTHER", BasePath: "b"}))
	assert.Error(t, r.Add(Descriptor{ID: 2, Tag: "GENERAL", BasePath: "c"}))
}

func TestSaveAndReopenPersists(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{
		ID: 1, Tag: "FSX_GEN", Name: "fsxNet General", BasePath: filepath.Join(dir, "fsx_gen"), AreaType: "echomail",
		Attachments: []NetAttachment{{NetworkIndex: 0, NetworkType: "ftn", SubType: "FSX_GEN", HostNode: 21}},
	}))
	require.NoError(t, r.Save())

	reopened, err := Open(dir)
	require.NoError(t, err)
	list := reopened.List()
	require.Len(t, list, 1)
	assert.Equal(t, "FSX_GEN", list[0].Tag)
	require.Len(t, list[0].Attachments, 1)
	assert.Equal(t, "ftn", list[0].Attachments[0].NetworkType)
}

func TestAttachmentForReturnsMatchingNetwork(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{
		ID: 1, Tag: "GENERAL", BasePath: "x",
		Attachments: []NetAttachment{{NetworkType: "wwivnet", SubType: "GEN", HostNode: 2}},
	}))

	att, ok := r.AttachmentFor(1, "wwivnet")
	require.True(t, ok)
	assert.EqualValues(t, 2, att.HostNode)

	_, ok = r.AttachmentFor(1, "ftn")
	assert.False(t, ok)
}

func TestGetBaseReturnsErrorForUnknownID(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = r.GetBase(99)
	assert.Error(t, err)
}

func TestFindBySubtypeMatchesNetworkAndSubtypeCaseInsensitively(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{
		ID: 1, Tag: "GENERAL", BasePath: "x",
		Attachments: []NetAttachment{
			{NetworkType: "ftn", Network: "fsxnet", SubType: "FSX_GEN"},
			{NetworkType: "wwivnet", Network: "WWIVnet", SubType: "GEN", HostNode: 2},
		},
	}))

	desc, att, ok := r.FindBySubtype("wwivnet", "gen")
	require.True(t, ok)
	assert.Equal(t, "GENERAL", desc.Tag)
	assert.EqualValues(t, 2, att.HostNode)

	_, _, ok = r.FindBySubtype("wwivnet", "nosuch")
	assert.False(t, ok)
}

func TestFindBySubtypeIgnoresNonWwivnetAttachments(t *testing.T) {
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{
		ID: 1, Tag: "GENERAL", BasePath: "x",
		Attachments: []NetAttachment{
			{NetworkType: "ftn", Network: "fsxnet", SubType: "GEN"},
		},
	}))

	_, _, ok := r.FindBySubtype("fsxnet", "GEN")
	assert.False(t, ok)
}

func TestReloadPicksUpChangesWrittenByAnotherInstance(t *testing.T) {
	dir := t.TempDir()
	r1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r1.Add(Descriptor{ID: 1, Tag: "GENERAL", BasePath: "x"}))
	require.NoError(t, r1.Save())

	r2, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r2.Add(Descriptor{ID: 2, Tag: "CHAT", BasePath: "y"}))
	require.NoError(t, r2.Save())

	_, ok := r1.Get(2)
	require.False(t, ok, "r1 should not see r2's addition before Reload")

	require.NoError(t, r1.Reload())
	d, ok := r1.Get(2)
	require.True(t, ok)
	assert.Equal(t, "CHAT", d.Tag)

	_, ok = r1.Get(1)
	assert.True(t, ok, "Reload should not lose entries still present on disk")
}

func TestReloadOnMissingFileLeavesEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.Add(Descriptor{ID: 1, Tag: "GENERAL", BasePath: "x"}))

	require.NoError(t, r.Reload())
	assert.Empty(t, r.List())
}
