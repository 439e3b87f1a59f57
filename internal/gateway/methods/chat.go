package methods

import (
	"context"
	"fmt"

	"github.com/moltis/moltis/internal/chatsessions"
	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

// sessionKey builds the composite key RunRequest.SessionKey documents:
// "agent:{agentId}:{channel}:{peerKind}:{chatId}".
func sessionKey(agentID, channel, peerKind, chatID string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s", agentID, channel, peerKind, chatID)
}

type chatSendParams struct {
	AgentID  string `json:"agentId"`
	Channel  string `json:"channel"`
	PeerKind string `json:"peerKind"`
	ChatID   string `json:"chatId"`
	Message  string `json:"message"`
	Stream   bool   `json:"stream"`
}

type chatSendResult struct {
	RunID   string `json:"runId"`
	Content string `json:"content,omitempty"`
}

func defaultAgentID(deps Deps) string {
	ids := deps.Agents.List()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func registerChat(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodChatSend, permissions.TableWrite, func(ctx context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p chatSendParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed chat.send params", err)
		}
		if p.Message == "" {
			return nil, merr.New(merr.KindInvalidInput, "message is required")
		}
		if p.AgentID == "" {
			p.AgentID = defaultAgentID(deps)
		}
		if p.AgentID == "" {
			return nil, merr.New(merr.KindInvalidInput, "no agent configured")
		}
		if p.Channel == "" {
			p.Channel = "gateway"
		}
		if p.PeerKind == "" {
			p.PeerKind = "direct"
		}
		if p.ChatID == "" {
			p.ChatID = p.AgentID
		}

		key := sessionKey(p.AgentID, p.Channel, p.PeerKind, p.ChatID)

		if !p.Stream {
			deltaCh := make(chan chatsessions.Delta, 1)
			unsub := deps.Arbiter.Subscribe(key, "chat.send-"+p.AgentID, deltaCh)
			defer unsub()

			runID := deps.Arbiter.Send(ctx, key, chatsessions.Turn{Message: p.Message, Origin: "gateway"})

			for {
				select {
				case <-ctx.Done():
					return nil, merr.Wrap(merr.KindTimeout, "chat.send cancelled", ctx.Err())
				case delta := <-deltaCh:
					if delta.RunID != runID {
						continue
					}
					if delta.Err != nil {
						return nil, merr.Wrap(merr.KindInternal, "agent run failed", delta.Err)
					}
					if delta.Done {
						return chatSendResult{RunID: runID, Content: delta.Content}, nil
					}
				}
			}
		}

		runID := deps.Arbiter.Send(ctx, key, chatsessions.Turn{Message: p.Message, Origin: "gateway"})
		return chatSendResult{RunID: runID}, nil
	})

	router.Register(protocol.MethodChatHistory, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p chatSendParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed chat.history params", err)
		}
		if p.AgentID == "" {
			p.AgentID = defaultAgentID(deps)
		}
		if p.Channel == "" {
			p.Channel = "gateway"
		}
		if p.PeerKind == "" {
			p.PeerKind = "direct"
		}
		if p.ChatID == "" {
			p.ChatID = p.AgentID
		}
		if deps.Sessions == nil {
			return nil, merr.New(merr.KindUnavailable, "session store not configured")
		}
		key := sessionKey(p.AgentID, p.Channel, p.PeerKind, p.ChatID)
		return deps.Sessions.GetHistory(key), nil
	})

	router.Register(protocol.MethodChatAbort, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p struct {
			AgentID  string `json:"agentId"`
			Channel  string `json:"channel"`
			PeerKind string `json:"peerKind"`
			ChatID   string `json:"chatId"`
			RunID    string `json:"runId"`
		}
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed chat.abort params", err)
		}
		if p.AgentID == "" {
			p.AgentID = defaultAgentID(deps)
		}
		if p.Channel == "" {
			p.Channel = "gateway"
		}
		if p.PeerKind == "" {
			p.PeerKind = "direct"
		}
		if p.ChatID == "" {
			p.ChatID = p.AgentID
		}
		key := sessionKey(p.AgentID, p.Channel, p.PeerKind, p.ChatID)
		ok := deps.Arbiter.Abort(key, p.RunID)
		return map[string]bool{"aborted": ok}, nil
	})
}
