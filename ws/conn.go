// Package ws is the websocket transport: connection lifecycle, the outbound
// write pump, and inbound frame dispatch into the channel handlers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/contract"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
)

// envelope is the wire frame: one named event plus its payload.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Client owns one websocket connection. Writes go through a bounded send
// channel drained by a single write pump, so handler goroutines never block
// on a slow socket.
type Client struct {
	log          *slog.Logger
	conn         *websocket.Conn
	connectionID string
	send         chan []byte
	closeOnce    sync.Once
	done         chan struct{}
}

func NewClient(log *slog.Logger, conn *websocket.Conn, bufferSize int) *Client {
	id := uuid.NewString()
	return &Client{
		log:          log.With("connection", id),
		conn:         conn,
		connectionID: id,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
	}
}

func (c *Client) ConnectionID() string {
	return c.connectionID
}

// Consume implements contract.EventSink. Delivery is non-blocking: when the
// send buffer is full the frame is dropped and the error reported, because one
// stalled client must never slow the fanout path.
func (c *Client) Consume(_ context.Context, out contract.Outbound) error {
	raw, err := json.Marshal(outboundEnvelope{Event: out.Event, Payload: out.Payload})
	if err != nil {
		return fmt.Errorf("marshaling %s frame: %w", out.Event, err)
	}
	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.connectionID)
	case c.send <- raw:
		return nil
	default:
		return fmt.Errorf("send buffer full on %s, dropping %s", c.connectionID, out.Event)
	}
}

// close releases the socket and wakes the write pump. Safe to call from both
// pumps.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the send channel onto the socket and keeps the connection
// alive with protocol-level pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case raw := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pulls frames off the socket and hands them to the dispatcher.
// Returning triggers the disconnect path exactly once.
func (c *Client) readPump(ctx context.Context, dispatcher *Dispatcher) {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Unexpected close", "error", err)
			}
			return
		}
		dispatcher.Handle(ctx, c, raw)
	}
}
