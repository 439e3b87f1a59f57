package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/moltis/moltis/internal/tools"
)

// Tool adapts one MCP server's advertised tool into the tools.Tool
// interface, proxying Execute to a CallTool RPC over the server's
// connection.
type Tool struct {
	srv        *server
	name       string
	descr      string
	schema     map[string]interface{}
	remoteName string
}

func newTool(srv *server, prefix string, def mcp.Tool) *Tool {
	schema := schemaToMap(def.InputSchema)
	return &Tool{
		srv:        srv,
		name:       prefix + def.Name,
		descr:      def.Description,
		schema:     schema,
		remoteName: def.Name,
	}
}

func (t *Tool) Name() string                        { return t.name }
func (t *Tool) Description() string                 { return t.descr }
func (t *Tool) Parameters() map[string]interface{}  { return t.schema }

func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	ctx, cancel := context.WithTimeout(ctx, t.srv.timeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = t.remoteName
	req.Params.Arguments = args

	result, err := t.srv.client.CallTool(ctx, req)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("mcp call %s: %v", t.name, err))
	}

	text := formatContent(result.Content)
	if result.IsError {
		return tools.ErrorResult(text)
	}
	return tools.SilentResult(text)
}

// schemaToMap normalizes def.InputSchema — whichever concrete shape the
// mcp-go version in use returns it as — into the plain JSON-Schema map the
// rest of the tool registry expects, via a marshal/unmarshal round trip
// rather than a type assertion (robust to InputSchema being either a map
// or a typed struct across mcp-go releases).
func schemaToMap(schema interface{}) map[string]interface{} {
	fallback := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	if schema == nil {
		return fallback
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return fallback
	}
	return out
}

func formatContent(content []mcp.Content) string {
	var b strings.Builder
	for i, c := range content {
		if i > 0 {
			b.WriteString("\n")
		}
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
			continue
		}
		fmt.Fprintf(&b, "%v", c)
	}
	return b.String()
}
