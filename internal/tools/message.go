package tools

import (
	"context"
	"fmt"

	"github.com/moltis/moltis/internal/bus"
)

// MessageTool pushes an ad-hoc message to a channel outside the normal
// turn reply path, for cases like a long-running task that wants to post
// a progress update mid-turn. Defaults to the channel/chat the current
// turn is running in; channel/to let it target somewhere else entirely.
type MessageTool struct {
	msgBus *bus.MessageBus
}

func NewMessageTool() *MessageTool { return &MessageTool{} }

func (t *MessageTool) SetMessageBus(b *bus.MessageBus) { t.msgBus = b }

func (t *MessageTool) Name() string        { return "message" }
func (t *MessageTool) Description() string { return "Send a message to a channel outside the normal reply" }

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Message text to send",
			},
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Channel to send to (default: the current turn's channel)",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Chat/recipient identifier (default: the current turn's chat)",
			},
		},
		"required": []string{"text"},
	}
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.msgBus == nil {
		return ErrorResult("message bus not available")
	}
	text, _ := args["text"].(string)
	if text == "" {
		return ErrorResult("text is required")
	}

	channel, _ := args["channel"].(string)
	if channel == "" {
		channel = ToolChannelFromCtx(ctx)
	}
	to, _ := args["to"].(string)
	if to == "" {
		to = ToolChatIDFromCtx(ctx)
	}
	if channel == "" || to == "" {
		return ErrorResult("no target channel/chat: pass channel and to, or call from within a channel turn")
	}

	t.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  to,
		Content: text,
	})
	return SilentResult(fmt.Sprintf("sent to %s:%s", channel, to))
}
