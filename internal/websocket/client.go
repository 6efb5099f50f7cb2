package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	// An admin dashboard receives every claim event, so the buffer absorbs
	// bursts like a review sweep over a queue of pending claims before the
	// hub starts dropping.
	sendBufferSize = 32

	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second

	// The feed is one-way; clients have no reason to send anything large.
	maxReadBytes = 512
)

// Client is one connected admin dashboard.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Run registers the client, starts the write pump, and blocks draining reads
// until the connection closes. The client is unregistered on return.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxReadBytes)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump discards incoming frames until the read fails, which is how a
// closed connection surfaces.
func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump forwards buffered claim events to the connection and pings it
// periodically so stale dashboards get reaped.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub dropped this client.
				return
			}
			if err := c.write(ctx, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// write sends one frame, bounded so a stalled dashboard cannot wedge the
// pump past the ping that would reap it.
func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}
