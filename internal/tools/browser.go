package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/moltis/moltis/pkg/browser"
)

// BrowserTool exposes a single-tab Chrome controller to the agent as one
// action-dispatched tool, addressable by action kind (navigate, snapshot,
// click, type, scroll, evaluate, wait, screenshot). Each call's sandbox key
// (falling back to the agent key, then "default") picks which live Session
// the action runs against, so a multi-step browsing task keeps its tab
// across tool calls within the same session.
type BrowserTool struct {
	manager *browser.Manager
}

// NewBrowserTool creates a browser tool backed by a go-rod Chrome controller.
func NewBrowserTool(headless bool) *BrowserTool {
	return &BrowserTool{manager: browser.NewManager(headless)}
}

func (t *BrowserTool) Name() string { return "browser" }

func (t *BrowserTool) Description() string {
	return "Control a Chrome browser tab: navigate, snapshot interactive elements, click, type, scroll, evaluate JS, wait for a selector, or screenshot"
}

func (t *BrowserTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "Action to perform",
				"enum":        []string{"navigate", "snapshot", "click", "type", "scroll", "evaluate", "wait", "screenshot"},
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to load (navigate)",
			},
			"ref": map[string]interface{}{
				"type":        "string",
				"description": "Element ref from the last snapshot (click, type)",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text to type (type)",
			},
			"dx": map[string]interface{}{
				"type":        "number",
				"description": "Horizontal scroll delta in pixels (scroll)",
			},
			"dy": map[string]interface{}{
				"type":        "number",
				"description": "Vertical scroll delta in pixels (scroll)",
			},
			"script": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript expression to evaluate (evaluate)",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector to wait for (wait)",
			},
			"timeout_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Wait timeout in milliseconds (wait, default 30000)",
			},
			"full_page": map[string]interface{}{
				"type":        "boolean",
				"description": "Capture the full scrollable page instead of just the viewport (screenshot)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *BrowserTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	if action == "" {
		return ErrorResult("action is required")
	}

	key := sessionKeyFor(ctx)
	sess, err := t.manager.Get(key)
	if err != nil {
		return ErrorResult(fmt.Sprintf("browser: %v", err))
	}

	switch action {
	case "navigate":
		url, _ := args["url"].(string)
		if url == "" {
			return ErrorResult("url is required for navigate")
		}
		if err := sess.Navigate(ctx, url); err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(fmt.Sprintf("navigated to %s", url))

	case "snapshot":
		out, err := sess.Snapshot(ctx)
		if err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(out)

	case "click":
		ref, _ := args["ref"].(string)
		if ref == "" {
			return ErrorResult("ref is required for click")
		}
		if err := sess.Click(ctx, ref); err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(fmt.Sprintf("clicked %s", ref))

	case "type":
		ref, _ := args["ref"].(string)
		text, _ := args["text"].(string)
		if ref == "" {
			return ErrorResult("ref is required for type")
		}
		if err := sess.Type(ctx, ref, text); err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(fmt.Sprintf("typed into %s", ref))

	case "scroll":
		dx, _ := args["dx"].(float64)
		dy, _ := args["dy"].(float64)
		if err := sess.Scroll(ctx, dx, dy); err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult("scrolled")

	case "evaluate":
		script, _ := args["script"].(string)
		if script == "" {
			return ErrorResult("script is required for evaluate")
		}
		out, err := sess.Evaluate(ctx, script)
		if err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(out)

	case "wait":
		selector, _ := args["selector"].(string)
		if selector == "" {
			return ErrorResult("selector is required for wait")
		}
		timeout := defaultWaitTimeout
		if ms, ok := args["timeout_ms"].(float64); ok && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
		if err := sess.Wait(ctx, selector, timeout); err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(fmt.Sprintf("%s appeared", selector))

	case "screenshot":
		fullPage, _ := args["full_page"].(bool)
		shot, err := sess.Screenshot(ctx, fullPage)
		if err != nil {
			return ErrorResult(err.Error())
		}
		return SilentResult(fmt.Sprintf("data:image/png;base64,%s (scale=%g)", shot.Base64, shot.ScaleFactor))

	default:
		return ErrorResult(fmt.Sprintf("unknown browser action %q", action))
	}
}

// Close tears down every live browser session. Call on process shutdown.
func (t *BrowserTool) Close() {
	t.manager.CloseAll()
}

const defaultWaitTimeout = 30 * time.Second

// sessionKeyFor picks which browser Session a call routes to: the sandbox
// key when set (one tab per sandboxed session), falling back to the agent
// key, then a fixed default for single-agent setups with no sandboxing.
func sessionKeyFor(ctx context.Context) string {
	if key := ToolSandboxKeyFromCtx(ctx); key != "" {
		return key
	}
	if key := ToolAgentKeyFromCtx(ctx); key != "" {
		return key
	}
	return "default"
}
