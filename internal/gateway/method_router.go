package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

// Handler answers one RPC method call for a connected client.
type Handler func(ctx context.Context, c *Client, params interface{}) (result interface{}, err error)

// MethodRouter dispatches request frames by method name, applying the
// server's policy engine (when set) before invoking the handler.
type MethodRouter struct {
	server *Server

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMethodRouter(s *Server) *MethodRouter {
	return &MethodRouter{server: s, handlers: make(map[string]Handler)}
}

// Register adds a handler for method, optionally declaring its
// authorization table with the server's policy engine in the same call.
func (r *MethodRouter) Register(method string, table permissions.Table, h Handler) {
	r.mu.Lock()
	r.handlers[method] = h
	r.mu.Unlock()
	if r.server.policyEngine != nil {
		r.server.policyEngine.RegisterMethod(method, table)
	}
}

// Dispatch resolves and invokes the handler for req.Method, translating
// merr errors to wire error codes and unknown methods to not_found.
func (r *MethodRouter) Dispatch(ctx context.Context, c *Client, req protocol.RequestFrame) protocol.ResponseFrame {
	r.mu.RLock()
	h, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		return errorResponse(req.ID, "not_found", "unknown method: "+req.Method)
	}

	if r.server.policyEngine != nil && req.Method != protocol.MethodConnect && req.Method != protocol.MethodHealth {
		if !r.server.policyEngine.Authorize(req.Method, c.role, c.scopes) {
			return errorResponse(req.ID, "unauthenticated", "not authorized to call "+req.Method)
		}
	}

	result, err := h(ctx, c, req.Params)
	if err != nil {
		slog.Warn("gateway: method handler error", "method", req.Method, "error", err)
		return errorResponse(req.ID, merr.Code(err), err.Error())
	}
	return protocol.ResponseFrame{Kind: protocol.KindResponse, ID: req.ID, Result: result}
}

func errorResponse(id, code, message string) protocol.ResponseFrame {
	return protocol.ResponseFrame{
		Kind:  protocol.KindResponse,
		ID:    id,
		Error: &protocol.ErrorBody{Code: code, Message: message},
	}
}
