package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesOnlineRecord(t *testing.T) {
	r := New()
	rec := r.Register("agent-1", "demo", "127.0.0.1:1234")
	assert.Equal(t, StatusOnline, rec.Status())

	got, ok := r.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "demo", got.Name)
}

func TestStatusAt_DerivesFromHeartbeatAge(t *testing.T) {
	r := New()
	rec := r.Register("agent-1", "demo", "")

	now := rec.LastHeartbeat
	assert.Equal(t, StatusOnline, rec.StatusAt(now.Add(5*time.Second)))
	assert.Equal(t, StatusStale, rec.StatusAt(now.Add(20*time.Second)))
	assert.Equal(t, StatusOffline, rec.StatusAt(now.Add(60*time.Second)))
}

func TestHeartbeat_RefreshesLastSeen(t *testing.T) {
	r := New()
	rec := r.Register("agent-1", "demo", "")
	original := rec.LastHeartbeat

	time.Sleep(time.Millisecond)
	r.Heartbeat("agent-1")

	assert.True(t, rec.LastHeartbeat.After(original))
}

func TestHeartbeat_UnknownAgentIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Heartbeat("ghost") })
}

func TestUnregister_RemovesRecord(t *testing.T) {
	r := New()
	r.Register("agent-1", "demo", "")
	r.Unregister("agent-1")

	_, ok := r.Get("agent-1")
	assert.False(t, ok)
}

func TestSendCommand_DeliversToChannel(t *testing.T) {
	r := New()
	r.Register("agent-1", "demo", "")

	err := r.SendCommand("agent-1", Command{Kind: "pause"})
	require.NoError(t, err)

	ch, ok := r.Commands("agent-1")
	require.True(t, ok)

	select {
	case cmd := <-ch:
		assert.Equal(t, "pause", cmd.Kind)
	default:
		t.Fatal("expected a queued command")
	}
}

func TestSendCommand_UnknownAgentIsUnavailable(t *testing.T) {
	r := New()
	err := r.SendCommand("ghost", Command{Kind: "pause"})
	assert.Error(t, err)
}

func TestSendCommand_TimesOutWhenQueueIsFull(t *testing.T) {
	r := New()
	r.Register("agent-1", "demo", "")

	for i := 0; i < commandQueueCapacity; i++ {
		require.NoError(t, r.SendCommand("agent-1", Command{Kind: "fill"}))
	}

	start := time.Now()
	err := r.SendCommand("agent-1", Command{Kind: "overflow"})
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.GreaterOrEqual(t, elapsed, commandSendTimeout)
}

func TestOnlineAgentIDs_ExcludesStaleAndOffline(t *testing.T) {
	r := New()
	rec := r.Register("agent-1", "demo", "")
	rec.LastHeartbeat = time.Now().Add(-time.Minute)

	r.Register("agent-2", "demo2", "")

	ids := r.OnlineAgentIDs()
	assert.Contains(t, ids, "agent-2")
	assert.NotContains(t, ids, "agent-1")
}

func TestIsAvailable(t *testing.T) {
	r := New()
	r.Register("agent-1", "demo", "")
	assert.True(t, r.IsAvailable("agent-1"))
	assert.False(t, r.IsAvailable("ghost"))
}
