package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/adapter"
	"github.com/agentware/maestro/internal/orchestrator/claims"
	"github.com/agentware/maestro/internal/orchestrator/ratelimit"
	"github.com/agentware/maestro/internal/orchestrator/session"
	"github.com/agentware/maestro/internal/orchestrator/workspace"
	"github.com/agentware/maestro/pkg/contract"
)

type okAdapter struct{}

func (okAdapter) CanHandle(cmd *contract.Command) bool { return true }

func (okAdapter) HandleCommand(cmd *contract.Command, state adapter.SessionState) {
	event := contract.NewEvent(contract.EventCommandCompleted, cmd.Correlation)
	event.Completed = &contract.CompletedPayload{Outcome: contract.OutcomeSuccess}
	state.Emit(event)
}

func setup(t *testing.T) (*Hub, *session.Manager, *httptest.Server) {
	t.Helper()
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "error", Format: "console"})
	require.NoError(t, err)

	registry := adapter.NewRegistry()
	registry.Register("ok", okAdapter{})
	manager := session.NewManager(
		registry,
		ratelimit.NewLimiter(nil, log),
		claims.NewManager(claims.DefaultConfig(), log),
		workspace.NewProvider(workspace.Config{Root: t.TempDir(), CleanupOnTeardown: true}, log),
		session.DefaultConfig(),
		log,
	)
	t.Cleanup(manager.Shutdown)

	hub := NewHub(manager, log)
	t.Cleanup(hub.Close)
	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(server.Close)
	return hub, manager, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(message, &frame))
	return frame
}

func TestClientStreamsSessionFromBirth(t *testing.T) {
	_, manager, server := setup(t)

	s, err := manager.CreateSession(contract.SessionConfig{})
	require.NoError(t, err)
	id := s.Config().SessionID

	// Command processed before the client ever connects.
	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	manager.PublishCommand(cmd)

	conn := dial(t, server)
	require.NoError(t, conn.WriteJSON(SubscriptionMessage{
		Action:     "subscribe",
		SessionIDs: []contract.SessionID{id},
	}))

	first := readFrame(t, conn)
	assert.Equal(t, id, first.SessionID)
	assert.Equal(t, contract.EventSessionStatusChanged, first.Event.Kind)

	kinds := []contract.EventKind{first.Event.Kind}
	for len(kinds) < 3 {
		kinds = append(kinds, readFrame(t, conn).Event.Kind)
	}
	assert.Equal(t, []contract.EventKind{
		contract.EventSessionStatusChanged,
		contract.EventCommandAccepted,
		contract.EventCommandCompleted,
	}, kinds)
}

func TestUnsubscribeStopsFrames(t *testing.T) {
	_, manager, server := setup(t)

	s, err := manager.CreateSession(contract.SessionConfig{})
	require.NoError(t, err)
	id := s.Config().SessionID

	conn := dial(t, server)
	require.NoError(t, conn.WriteJSON(SubscriptionMessage{Action: "subscribe", SessionIDs: []contract.SessionID{id}}))
	readFrame(t, conn) // status-changed(running)

	require.NoError(t, conn.WriteJSON(SubscriptionMessage{Action: "unsubscribe", SessionIDs: []contract.SessionID{id}}))
	time.Sleep(50 * time.Millisecond)

	cmd := contract.NewCommand(contract.CommandGetDiff, contract.Correlation{SessionID: id})
	manager.PublishCommand(cmd)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "no frames should arrive after unsubscribe")
}

func TestSubscribeUnknownSessionIgnored(t *testing.T) {
	hub, _, server := setup(t)

	conn := dial(t, server)
	require.NoError(t, conn.WriteJSON(SubscriptionMessage{
		Action:     "subscribe",
		SessionIDs: []contract.SessionID{"no-such-session"},
	}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && hub.ClientCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, hub.ClientCount(), "a bad subscribe must not kill the connection")
}
