package tools

import (
	"context"
	"testing"
	"time"

	"github.com/moltis/moltis/internal/bus"
)

func TestMessageToolSendsToExplicitTarget(t *testing.T) {
	b := bus.New(4)
	tool := NewMessageTool()
	tool.SetMessageBus(b)

	result := tool.Execute(context.Background(), map[string]interface{}{
		"text":    "hello",
		"channel": "telegram",
		"to":      "chat1",
	})
	if result.IsError {
		t.Fatalf("expected send to succeed, got error: %s", result.ForLLM)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("expected an outbound message")
	}
	if msg.Channel != "telegram" || msg.ChatID != "chat1" || msg.Content != "hello" {
		t.Fatalf("unexpected outbound message: %+v", msg)
	}
}

func TestMessageToolDefaultsToContextTarget(t *testing.T) {
	b := bus.New(4)
	tool := NewMessageTool()
	tool.SetMessageBus(b)

	ctx := WithToolChannel(context.Background(), "discord")
	ctx = WithToolChatID(ctx, "chat9")
	result := tool.Execute(ctx, map[string]interface{}{"text": "hi"})
	if result.IsError {
		t.Fatalf("expected send to succeed, got error: %s", result.ForLLM)
	}

	subCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(subCtx)
	if !ok {
		t.Fatal("expected an outbound message")
	}
	if msg.Channel != "discord" || msg.ChatID != "chat9" {
		t.Fatalf("unexpected outbound message: %+v", msg)
	}
}

func TestMessageToolRequiresTarget(t *testing.T) {
	tool := NewMessageTool()
	tool.SetMessageBus(bus.New(4))
	result := tool.Execute(context.Background(), map[string]interface{}{"text": "hi"})
	if !result.IsError {
		t.Fatal("expected missing channel/chat to error")
	}
}

func TestMessageToolNoBus(t *testing.T) {
	tool := NewMessageTool()
	result := tool.Execute(context.Background(), map[string]interface{}{"text": "hi", "channel": "x", "to": "y"})
	if !result.IsError {
		t.Fatal("expected nil bus to error")
	}
}
