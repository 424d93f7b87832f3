package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regaipserdar/proxxy-sub001/internal/ca"
	"github.com/regaipserdar/proxxy-sub001/internal/intercept"
	"github.com/regaipserdar/proxxy-sub001/internal/registry"
)

type recordingSink struct {
	events []TrafficEvent
}

func (r *recordingSink) HandleTrafficEvent(event TrafficEvent) {
	r.events = append(r.events, event)
}

func TestClientServer_RegisterAndReportTraffic(t *testing.T) {
	dir := t.TempDir()
	rootCA, err := ca.New(dir)
	require.NoError(t, err)

	reg := registry.New()
	controller := intercept.New()
	sink := &recordingSink{}
	server := NewServer(reg, controller, rootCA, sink, nil, nil, nil)

	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	client := NewClient(ClientConfig{
		URL:       wsURL,
		AgentID:   "agent-1",
		Name:      "test-agent",
		AuthToken: "",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Run(ctx)

	require.Eventually(t, func() bool {
		return client.CACertPEM() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, client.CACertPEM())

	require.Eventually(t, func() bool {
		_, ok := reg.Get("agent-1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.SendTrafficEvent(TrafficEvent{RequestID: "req-1", AgentID: "agent-1", Method: "GET", URL: "https://example.com"}))

	require.Eventually(t, func() bool {
		return len(sink.events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "req-1", sink.events[0].RequestID)
}

func TestServer_RejectsMissingRegisterFrame(t *testing.T) {
	reg := registry.New()
	controller := intercept.New()
	server := NewServer(reg, controller, nil, nil, nil, nil, nil)

	httpServer := httptest.NewServer(server)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Frame{Kind: FrameHeartbeat}))
	var ack Frame
	require.NoError(t, conn.ReadJSON(&ack))
	require.NotNil(t, ack.RegisterAck)
	assert.False(t, ack.RegisterAck.Accepted)

	assert.Empty(t, reg.List())
}
