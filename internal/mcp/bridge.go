// Package mcp bridges external Model Context Protocol servers into the tool
// registry: each configured server's tools are listed once at startup and
// wrapped as ordinary tools.Tool implementations that proxy Execute calls
// over the MCP client connection.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/moltis/moltis/internal/config"
)

const defaultCallTimeout = 60 * time.Second

// server is one live connection to an external MCP server.
type server struct {
	name    string
	client  *mcpclient.Client
	timeout time.Duration
}

// Bridge owns every configured MCP server connection and the adapter tools
// derived from each one's advertised tool list.
type Bridge struct {
	servers map[string]*server
}

// Connect dials every enabled server in cfg, initializes the MCP session,
// and lists its tools. A server that fails to connect is logged and
// skipped rather than failing the whole bridge — one misconfigured MCP
// server shouldn't take down the others.
func Connect(ctx context.Context, cfg map[string]*config.MCPServerConfig) (*Bridge, error) {
	b := &Bridge{servers: make(map[string]*server)}

	for name, sc := range cfg {
		if sc == nil || !sc.IsEnabled() {
			continue
		}
		srv, err := connectOne(ctx, name, sc)
		if err != nil {
			slog.Warn("mcp: server connection failed, skipping", "server", name, "error", err)
			continue
		}
		b.servers[name] = srv
	}

	return b, nil
}

func connectOne(ctx context.Context, name string, sc *config.MCPServerConfig) (*server, error) {
	tr, err := newTransport(sc)
	if err != nil {
		return nil, err
	}

	c := mcpclient.NewClient(tr)
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "moltis", Version: "1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	timeout := defaultCallTimeout
	if sc.TimeoutSec > 0 {
		timeout = time.Duration(sc.TimeoutSec) * time.Second
	}

	slog.Info("mcp server connected", "server", name, "transport", sc.Transport)

	return &server{name: name, client: c, timeout: timeout}, nil
}

func newTransport(sc *config.MCPServerConfig) (transport.Interface, error) {
	switch sc.Transport {
	case "stdio":
		if sc.Command == "" {
			return nil, fmt.Errorf("stdio transport requires command")
		}
		env := make([]string, 0, len(sc.Env))
		for k, v := range sc.Env {
			env = append(env, k+"="+v)
		}
		return transport.NewStdio(sc.Command, env, sc.Args...), nil
	case "sse":
		if sc.URL == "" {
			return nil, fmt.Errorf("sse transport requires url")
		}
		return transport.NewSSE(sc.URL, transport.WithHeaders(sc.Headers))
	case "streamable-http":
		if sc.URL == "" {
			return nil, fmt.Errorf("streamable-http transport requires url")
		}
		return transport.NewStreamableHTTP(sc.URL, transport.WithHTTPHeaders(sc.Headers))
	default:
		return nil, fmt.Errorf("unknown mcp transport %q", sc.Transport)
	}
}

// Tools returns adapter tools.Tool implementations for every tool every
// connected server advertises, named "<prefix><tool>" (prefix defaults to
// "<server>_" when ToolPrefix isn't set, to avoid collisions across servers).
func (b *Bridge) Tools(ctx context.Context, prefixFor func(server string) string) ([]*Tool, error) {
	var out []*Tool

	for name, srv := range b.servers {
		listReq := mcp.ListToolsRequest{}
		result, err := srv.client.ListTools(ctx, listReq)
		if err != nil {
			slog.Warn("mcp: list tools failed, skipping server", "server", name, "error", err)
			continue
		}

		prefix := prefixFor(name)
		for _, def := range result.Tools {
			out = append(out, newTool(srv, prefix, def))
		}
	}

	return out, nil
}

// Servers returns the names of every server that connected successfully.
func (b *Bridge) Servers() []string {
	names := make([]string, 0, len(b.servers))
	for name := range b.servers {
		names = append(names, name)
	}
	return names
}

// Close disconnects every MCP server.
func (b *Bridge) Close() {
	for _, srv := range b.servers {
		srv.client.Close()
	}
}
