package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentware/maestro/internal/common/logger"
	"github.com/agentware/maestro/internal/orchestrator/session"
	"github.com/agentware/maestro/pkg/contract"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// SubscriptionMessage is what clients send to pick sessions.
type SubscriptionMessage struct {
	Action     string               `json:"action"` // subscribe, unsubscribe
	SessionIDs []contract.SessionID `json:"sessionIds"`
}

// Frame is one session event on the wire.
type Frame struct {
	SessionID contract.SessionID `json:"sessionId"`
	Event     contract.Event     `json:"event"`
}

// Client is one websocket connection with its session streams.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	streams map[contract.SessionID]*session.Subscriber

	logger *logger.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, log *logger.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		streams: make(map[contract.SessionID]*session.Subscriber),
		logger:  log,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg SubscriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("invalid subscription message", zap.Error(err))
			continue
		}

		switch msg.Action {
		case "subscribe":
			for _, id := range msg.SessionIDs {
				c.subscribe(id)
			}
		case "unsubscribe":
			for _, id := range msg.SessionIDs {
				c.unsubscribe(id)
			}
		default:
			c.logger.Warn("unknown action", zap.String("action", msg.Action))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribe opens a from-birth stream of the session into the client.
func (c *Client) subscribe(id contract.SessionID) {
	c.mu.Lock()
	if _, ok := c.streams[id]; ok {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	sub, err := c.hub.manager.Subscribe(id)
	if err != nil {
		c.logger.Warn("subscribe to unknown session refused", zap.String("session_id", string(id)))
		return
	}

	c.mu.Lock()
	c.streams[id] = sub
	c.mu.Unlock()

	go func() {
		for event := range sub.Events() {
			frame, err := json.Marshal(Frame{SessionID: id, Event: event})
			if err != nil {
				c.logger.Error("failed to marshal frame", zap.Error(err))
				continue
			}
			if !c.trySend(frame) {
				c.logger.Warn("client send buffer full, dropping frame",
					zap.String("session_id", string(id)))
			}
		}
	}()
}

func (c *Client) unsubscribe(id contract.SessionID) {
	c.mu.Lock()
	sub, ok := c.streams[id]
	delete(c.streams, id)
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (c *Client) closeStreams() {
	c.mu.Lock()
	streams := c.streams
	c.streams = make(map[contract.SessionID]*session.Subscriber)
	c.mu.Unlock()
	for _, sub := range streams {
		sub.Close()
	}
}

// trySend queues a frame without blocking the session stream.
func (c *Client) trySend(message []byte) bool {
	defer func() { recover() }() // send channel may be closed by Unregister
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}
