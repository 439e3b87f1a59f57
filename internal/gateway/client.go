package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

const idempotencyTTL = 5 * time.Minute

type idempotentEntry struct {
	resp    protocol.ResponseFrame
	expires time.Time
}

// Client is one connected WebSocket peer: a browser tab, CLI session, or
// paired node. It owns the frame read/write loop, the handshake, and a
// short-lived idempotency cache for retried requests.
type Client struct {
	id     string
	conn   *websocket.Conn
	server *Server

	authenticated bool
	role          permissions.Role
	scopes        map[permissions.Scope]bool

	writeMu sync.Mutex

	idemMu sync.Mutex
	idem   map[string]idempotentEntry
}

func NewClient(conn *websocket.Conn, s *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: s,
		role:   permissions.RoleOperator,
		scopes: map[permissions.Scope]bool{permissions.ScopeAdmin: true},
		idem:   make(map[string]idempotentEntry),
	}
}

// Run handles the connection's handshake and then its request loop until
// the socket closes or ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	if !c.handshake() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var kind struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &kind); err != nil {
			continue
		}

		switch kind.Kind {
		case protocol.KindRequest:
			var req protocol.RequestFrame
			if err := json.Unmarshal(raw, &req); err != nil {
				continue
			}
			c.handleRequest(ctx, req)
		default:
			slog.Debug("gateway: unexpected frame kind from client", "kind", kind.Kind, "client", c.id)
		}
	}
}

func (c *Client) handshake() bool {
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return false
	}
	var connect protocol.ConnectFrame
	if err := json.Unmarshal(raw, &connect); err != nil {
		c.writeJSON(protocol.ResponseFrame{Kind: protocol.KindResponse, Error: &protocol.ErrorBody{Code: "invalid_request", Message: "malformed connect frame"}})
		return false
	}

	hello := protocol.HelloFrame{Kind: protocol.KindHello, ProtocolVersion: protocol.ProtocolVersion, ConnectionID: c.id}
	c.authenticated = true
	return c.writeJSON(hello) == nil
}

func (c *Client) handleRequest(ctx context.Context, req protocol.RequestFrame) {
	if req.IdempotencyKey != "" {
		if cached, ok := c.cachedResponse(req.IdempotencyKey); ok {
			c.writeJSON(cached)
			return
		}
	}

	resp := c.server.router.Dispatch(ctx, c, req)

	if req.IdempotencyKey != "" {
		c.cacheResponse(req.IdempotencyKey, resp)
	}
	c.writeJSON(resp)
}

func (c *Client) cachedResponse(key string) (protocol.ResponseFrame, bool) {
	c.idemMu.Lock()
	defer c.idemMu.Unlock()
	e, ok := c.idem[key]
	if !ok || time.Now().After(e.expires) {
		return protocol.ResponseFrame{}, false
	}
	return e.resp, true
}

func (c *Client) cacheResponse(key string, resp protocol.ResponseFrame) {
	c.idemMu.Lock()
	defer c.idemMu.Unlock()
	c.idem[key] = idempotentEntry{resp: resp, expires: time.Now().Add(idempotencyTTL)}
	for k, e := range c.idem {
		if time.Now().After(e.expires) {
			delete(c.idem, k)
		}
	}
}

// SendEvent delivers a broadcast or targeted event frame to this client,
// stamping it with the server's monotonic sequence counter.
func (c *Client) SendEvent(event protocol.EventFrame) {
	event.Kind = protocol.KindEvent
	event.Seq = c.server.nextSeq()
	c.writeJSON(event)
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// nextSeq is defined on Server so every client observes the same
// monotonically increasing broadcast sequence.
func (s *Server) nextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}
