package instmsg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlalpha/wwivcore/internal/clock"
)

func newTestMailbox(t *testing.T) *Mailbox {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	mb, err := New(t.TempDir(), fc)
	require.NoError(t, err)
	return mb
}

func TestSendAssignsIDAndTimestamp(t *testing.T) {
	mb := newTestMailbox(t)
	require.NoError(t, mb.Send(Message{Kind: KindChat, FromNode: 1, ToNode: 2, Body: "hi"}))

	msgs, err := mb.Poll(2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotZero(t, msgs[0].CreatedAt)
	assert.Equal(t, "hi", msgs[0].Body)
}

func TestPollFiltersByDestinationNode(t *testing.T) {
	mb := newTestMailbox(t)
	require.NoError(t, mb.Send(Message{Kind: KindPage, FromNode: 1, ToNode: 2, Body: "for node 2"}))
	require.NoError(t, mb.Send(Message{Kind: KindPage, FromNode: 1, ToNode: 3, Body: "for node 3"}))

	msgs, err := mb.Poll(2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for node 2", msgs[0].Body)

	remaining, err := mb.Poll(2)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBroadcastDeliveredToEveryPoller(t *testing.T) {
	mb := newTestMailbox(t)
	require.NoError(t, mb.Send(Message{Kind: KindBroadcast, FromNode: 1, ToNode: 0, Body: "all hands"}))

	msgs, err := mb.Poll(5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "all hands", msgs[0].Body)
}

func TestPollRemovesDeliveredMessages(t *testing.T) {
	mb := newTestMailbox(t)
	require.NoError(t, mb.Send(Message{Kind: KindAlert, FromNode: 1, ToNode: 2, Body: "x"}))

	first, err := mb.Poll(2)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := mb.Poll(2)
	require.NoError(t, err)
	assert.Empty(t, second)
}
