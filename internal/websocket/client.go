package websocket

import (
	"context"
	"strings"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one WebSocket connection. Clients only listen; anything they
// send is read and discarded. A client with a nil subscription set receives
// every entity.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
	subs map[Entity]bool
}

func NewClient(hub *Hub, conn *ws.Conn, subs map[Entity]bool) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: subs,
	}
}

// ParseSubscriptions turns "chore,health" into a subscription set. Unknown
// names are ignored; an empty or all-unknown list means everything.
func ParseSubscriptions(raw string) map[Entity]bool {
	var subs map[Entity]bool
	for _, name := range strings.Split(raw, ",") {
		e := Entity(strings.ToLower(strings.TrimSpace(name)))
		switch e {
		case EntityRoommate, EntityChore, EntityDemo, EntityHealth, EntityBackup:
			if subs == nil {
				subs = make(map[Entity]bool)
			}
			subs[e] = true
		}
	}
	return subs
}

func (c *Client) wants(e Entity) bool {
	return c.subs == nil || c.subs[e]
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pump(ctx)
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// pump forwards queued broadcasts and keeps the connection alive with pings.
func (c *Client) pump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				c.hub.logger.Debug("ping failed", "error", err)
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, ws.MessageText, msg)
			cancel()
			if err != nil {
				c.hub.logger.Debug("write failed", "error", err)
				return
			}
		}
	}
}
