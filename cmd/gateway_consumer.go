package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moltis/moltis/internal/agent"
	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/chatsessions"
	"github.com/moltis/moltis/internal/config"
	"github.com/moltis/moltis/internal/sessions"
)

// makeArbiterRunFunc builds the chatsessions.RunFunc that backs the whole
// gateway: the arbiter only guarantees at-most-one-run-per-session and
// fans out streaming deltas, so the RunFunc itself is the thing that
// resolves the target agent, executes the turn, and delivers the result —
// mirroring how a subagent run announces its own outcome once done
// instead of leaving that to a caller.
func makeArbiterRunFunc(agents *agent.Router, msgBus *bus.MessageBus, channelMgr *channels.Manager) chatsessions.RunFunc {
	return func(ctx context.Context, sessionKey string, turn chatsessions.Turn) (string, error) {
		meta := turn.Metadata
		agentID := agentIDFromSessionKey(sessionKey)

		loop, err := agents.Get(agentID)
		if err != nil {
			return "", fmt.Errorf("agent %s not found: %w", agentID, err)
		}

		var media []string
		if m := meta["media"]; m != "" {
			media = strings.Split(m, "\x1f")
		}
		historyLimit, _ := strconv.Atoi(meta["history_limit"])
		stream, _ := strconv.ParseBool(meta["stream"])
		var parentTraceID, parentRootSpanID uuid.UUID
		if tid := meta["origin_trace_id"]; tid != "" {
			parentTraceID, _ = uuid.Parse(tid)
		}
		if sid := meta["origin_root_span_id"]; sid != "" {
			parentRootSpanID, _ = uuid.Parse(sid)
		}

		req := agent.RunRequest{
			SessionKey:        sessionKey,
			Message:           turn.Message,
			Media:             media,
			Channel:           meta["channel"],
			ChatID:            meta["chat_id"],
			PeerKind:          meta["peer_kind"],
			UserID:            meta["user_id"],
			SenderID:          meta["sender_id"],
			RunID:             turn.RunID,
			Stream:            stream,
			HistoryLimit:      historyLimit,
			ExtraSystemPrompt: meta["extra_system_prompt"],
			ParentTraceID:     parentTraceID,
			ParentRootSpanID:  parentRootSpanID,
		}

		result, runErr := loop.Run(ctx, req)

		replyChannel := meta["channel"]
		if turn.ReplyTarget != nil {
			replyChannel = turn.ReplyTarget.Channel
		}
		replyChatID := meta["chat_id"]
		if turn.ReplyTarget != nil {
			replyChatID = turn.ReplyTarget.ChatID
		}

		if channelMgr != nil {
			channelMgr.UnregisterRun(turn.RunID)
		}

		outMeta := outboundMetadata(meta)

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				slog.Info("arbiter run: cancelled", "channel", replyChannel, "session", sessionKey)
				msgBus.PublishOutbound(bus.OutboundMessage{Channel: replyChannel, ChatID: replyChatID, Metadata: outMeta})
				return "", runErr
			}
			slog.Error("arbiter run: agent run failed", "error", runErr, "channel", replyChannel)
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel:  replyChannel,
				ChatID:   replyChatID,
				Content:  formatAgentError(runErr),
				Metadata: outMeta,
			})
			return "", runErr
		}

		if result.Content == "" || agent.IsSilentReply(result.Content) {
			slog.Info("arbiter run: suppressed silent/empty reply", "channel", replyChannel, "session", sessionKey)
			msgBus.PublishOutbound(bus.OutboundMessage{Channel: replyChannel, ChatID: replyChatID, Metadata: outMeta})
			return "", nil
		}

		outMsg := bus.OutboundMessage{
			Channel:  replyChannel,
			ChatID:   replyChatID,
			Content:  result.Content,
			Metadata: outMeta,
		}
		for _, mr := range result.Media {
			outMsg.Media = append(outMsg.Media, bus.MediaAttachment{URL: mr.Path, ContentType: mr.ContentType})
			if mr.AsVoice {
				if outMsg.Metadata == nil {
					outMsg.Metadata = make(map[string]string)
				}
				outMsg.Metadata["audio_as_voice"] = "true"
			}
		}
		msgBus.PublishOutbound(outMsg)

		return result.Content, nil
	}
}

// agentIDFromSessionKey extracts the agent id from a canonical
// "agent:{agentId}:{rest}" session key.
func agentIDFromSessionKey(sessionKey string) string {
	parts := strings.SplitN(sessionKey, ":", 3)
	if len(parts) >= 2 && parts[0] == "agent" {
		return parts[1]
	}
	return parts[0]
}

// outboundMetadata carries reply-routing hints (reply-to message, thread,
// placeholder cleanup keys) from an inbound turn's metadata into the
// outbound message's metadata.
func outboundMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string)
	if mid := meta["message_id"]; mid != "" {
		out["reply_to_message_id"] = mid
	}
	for _, k := range []string{"message_thread_id", "local_key", "placeholder_key"} {
		if v := meta[k]; v != "" {
			out[k] = v
		}
	}
	return out
}

// formatAgentError renders an agent run failure for delivery back to the
// user — terse, no stack trace or internal error wrapping.
func formatAgentError(err error) string {
	return fmt.Sprintf("Sorry, something went wrong: %v", err)
}

// consumeInboundMessages reads inbound messages from channels (Telegram,
// Discord, etc.) and routes them through the arbiter, which guarantees at
// most one agent-loop run per session and delivers the result itself.
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, arbiter *chatsessions.Arbiter, cfg *config.Config, channelMgr *channels.Manager) {
	slog.Info("inbound message consumer started")

	// Inbound message deduplication.
	// TTL=20min, max=5000 entries — prevents webhook retries / double-taps from duplicating agent runs.
	dedupe := bus.NewDedupeCache(20*time.Minute, 5000)

	// processNormalMessage handles routing and turn submission for a single
	// (possibly merged) inbound message. Called directly by the debouncer's
	// flush callback.
	processNormalMessage := func(msg bus.InboundMessage) {
		agentID := msg.AgentID
		if agentID == "" {
			agentID = resolveAgentRoute(cfg, msg.Channel, msg.ChatID, msg.PeerKind)
		}

		peerKind := msg.PeerKind
		if peerKind == "" {
			peerKind = string(sessions.PeerDirect)
		}
		sessionKey := sessions.BuildScopedSessionKey(agentID, msg.Channel, sessions.PeerKind(peerKind), msg.ChatID, cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)

		// Forum topic: override session key to isolate per-topic history.
		if msg.Metadata["is_forum"] == "true" && peerKind == string(sessions.PeerGroup) {
			if topicID, err := strconv.Atoi(msg.Metadata["message_thread_id"]); err == nil && topicID > 0 {
				sessionKey = sessions.BuildGroupTopicSessionKey(agentID, msg.Channel, msg.ChatID, topicID)
			}
		}

		// Group-scoped UserID: treat the group as a single "virtual user" for
		// context files, memory, traces, and seeding. Individual senderID is
		// preserved via sender_id metadata.
		userID := msg.UserID
		if peerKind == string(sessions.PeerGroup) && msg.ChatID != "" {
			groupID := msg.ChatID
			if guildID := msg.Metadata["guild_id"]; guildID != "" {
				groupID = guildID
			}
			userID = fmt.Sprintf("group:%s:%s", msg.Channel, groupID)
		}

		slog.Info("inbound: routing message",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"peer_kind", peerKind,
			"agent", agentID,
			"session", sessionKey,
			"user_id", userID,
		)

		// Enable streaming when the channel supports it. Group chats keep
		// streaming off since concurrent runs would interleave chunks.
		enableStream := channelMgr != nil && channelMgr.IsStreamingChannel(msg.Channel) && peerKind != string(sessions.PeerGroup)

		runID := fmt.Sprintf("inbound-%s-%s-%s", msg.Channel, msg.ChatID, uuid.NewString()[:8])

		messageID := 0
		if mid := msg.Metadata["message_id"]; mid != "" {
			messageID, _ = strconv.Atoi(mid)
		}
		chatIDForRun := msg.ChatID
		if lk := msg.Metadata["local_key"]; lk != "" {
			chatIDForRun = lk
		}
		if channelMgr != nil {
			channelMgr.RegisterRun(runID, msg.Channel, chatIDForRun, messageID)
		}

		// Group-aware system prompt: help the LLM adapt tone and behavior for group chats.
		var extraPrompt string
		if peerKind == string(sessions.PeerGroup) {
			extraPrompt = "You are in a GROUP chat (multiple participants), not a private 1-on-1 DM.\n" +
				"- Messages may include a [Chat messages since your last reply] section with recent group history. Each history line shows \"sender [time]: message\".\n" +
				"- The current message includes a [From: sender_name] tag identifying who @mentioned you.\n" +
				"- Keep responses concise and focused; long replies are disruptive in groups.\n" +
				"- Address the group naturally. If the history shows a multi-person conversation, consider the full context before answering."
		}

		meta := map[string]string{
			"channel":             msg.Channel,
			"chat_id":             msg.ChatID,
			"peer_kind":           peerKind,
			"user_id":             userID,
			"sender_id":           msg.SenderID,
			"history_limit":       strconv.Itoa(msg.HistoryLimit),
			"extra_system_prompt": extraPrompt,
			"stream":              strconv.FormatBool(enableStream),
			"media":               strings.Join(msg.Media, "\x1f"),
		}
		if mid := msg.Metadata["message_id"]; mid != "" {
			meta["message_id"] = mid
		}
		for _, k := range []string{"message_thread_id", "local_key", "placeholder_key"} {
			if v := msg.Metadata[k]; v != "" {
				meta[k] = v
			}
		}

		arbiter.Send(ctx, sessionKey, chatsessions.Turn{
			RunID:   runID,
			Message: msg.Content,
			Origin:  msg.Channel,
			ReplyTarget: &chatsessions.ReplyTarget{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
			},
			Metadata: meta,
		})
	}

	// Inbound debounce: merge rapid messages from the same sender before processing.
	debounceMs := cfg.Gateway.InboundDebounceMs
	if debounceMs == 0 {
		debounceMs = 1000 // default: 1000ms
	}
	debouncer := bus.NewInboundDebouncer(
		time.Duration(debounceMs)*time.Millisecond,
		processNormalMessage,
	)
	defer debouncer.Stop()

	slog.Info("inbound debounce configured", "debounce_ms", debounceMs)

	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound message consumer stopped")
			return
		}

		// --- Dedup: skip duplicate inbound messages ---
		if msgID := msg.Metadata["message_id"]; msgID != "" {
			dedupeKey := fmt.Sprintf("%s|%s|%s|%s", msg.Channel, msg.SenderID, msg.ChatID, msgID)
			if dedupe.IsDuplicate(dedupeKey) {
				slog.Debug("dedup: skipping duplicate message", "key", dedupeKey)
				continue
			}
		}

		// --- Subagent announce: bypass debounce, inject into parent agent session ---
		if msg.Channel == "system" && strings.HasPrefix(msg.SenderID, "subagent:") {
			origChannel := msg.Metadata["origin_channel"]
			origPeerKind := msg.Metadata["origin_peer_kind"]
			parentAgent := msg.Metadata["parent_agent"]
			if parentAgent == "" {
				parentAgent = cfg.ResolveDefaultAgentID()
			}
			if origPeerKind == "" {
				origPeerKind = string(sessions.PeerDirect)
			}

			if origChannel == "" || msg.ChatID == "" {
				slog.Warn("subagent announce: missing origin", "sender", msg.SenderID)
				continue
			}

			// Use SAME session as the user's original chat so the agent has context.
			sessionKey := sessions.BuildScopedSessionKey(parentAgent, origChannel, sessions.PeerKind(origPeerKind), msg.ChatID, cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)

			slog.Info("subagent announce → arbiter",
				"subagent", msg.SenderID,
				"label", msg.Metadata["subagent_label"],
				"session", sessionKey,
			)

			announceUserID := msg.UserID
			if origPeerKind == string(sessions.PeerGroup) && msg.ChatID != "" {
				announceUserID = fmt.Sprintf("group:%s:%s", origChannel, msg.ChatID)
			}

			arbiter.Send(ctx, sessionKey, chatsessions.Turn{
				RunID:   fmt.Sprintf("announce-%s", msg.SenderID),
				Message: msg.Content,
				Origin:  "subagent",
				ReplyTarget: &chatsessions.ReplyTarget{
					Channel: origChannel,
					ChatID:  msg.ChatID,
				},
				Metadata: map[string]string{
					"channel":             origChannel,
					"chat_id":             msg.ChatID,
					"peer_kind":           origPeerKind,
					"user_id":             announceUserID,
					"sender_id":           msg.SenderID,
					"origin_trace_id":     msg.Metadata["origin_trace_id"],
					"origin_root_span_id": msg.Metadata["origin_root_span_id"],
				},
			})
			continue
		}

		// --- Command: /stop — cancel the active run for this session ---
		// --- Command: /stopall — cancel all queued + the active run ---
		if cmd := msg.Metadata["command"]; cmd == "stop" || cmd == "stopall" {
			agentID := msg.AgentID
			if agentID == "" {
				agentID = resolveAgentRoute(cfg, msg.Channel, msg.ChatID, msg.PeerKind)
			}
			peerKind := msg.PeerKind
			if peerKind == "" {
				peerKind = string(sessions.PeerDirect)
			}
			sessionKey := sessions.BuildScopedSessionKey(agentID, msg.Channel, sessions.PeerKind(peerKind), msg.ChatID, cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)
			if msg.Metadata["is_forum"] == "true" && peerKind == string(sessions.PeerGroup) {
				if topicID, err := strconv.Atoi(msg.Metadata["message_thread_id"]); err == nil && topicID > 0 {
					sessionKey = sessions.BuildGroupTopicSessionKey(agentID, msg.Channel, msg.ChatID, topicID)
				}
			}

			var cancelled bool
			if cmd == "stopall" {
				cancelled = arbiter.CancelAll(sessionKey)
				slog.Info("inbound: /stopall command", "session", sessionKey, "cancelled", cancelled)
			} else if runID, ok := arbiter.ActiveRun(sessionKey); ok {
				cancelled = arbiter.Abort(sessionKey, runID)
				slog.Info("inbound: /stop command", "session", sessionKey, "cancelled", cancelled)
			}

			var feedback string
			switch {
			case cancelled && cmd == "stopall":
				feedback = "All tasks stopped."
			case cancelled:
				feedback = "Task stopped."
			case cmd == "stopall":
				feedback = "No active tasks to stop."
			default:
				feedback = "No active task to stop."
			}
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel:  msg.Channel,
				ChatID:   msg.ChatID,
				Content:  feedback,
				Metadata: msg.Metadata,
			})
			continue
		}

		// --- Normal messages: route through debouncer ---
		debouncer.Push(msg)
	}
}

// resolveAgentRoute determines which agent should handle a message based
// on config bindings. Priority: peer → channel → default.
func resolveAgentRoute(cfg *config.Config, channel, chatID, peerKind string) string {
	for _, binding := range cfg.Bindings {
		match := binding.Match
		if match.Channel != channel {
			continue
		}

		// Peer-level match (most specific)
		if match.Peer != nil {
			if match.Peer.Kind == peerKind && match.Peer.ID == chatID {
				return binding.AgentID
			}
			continue // has peer constraint but doesn't match — skip
		}

		// Channel-level match (least specific, no peer constraint)
		return binding.AgentID
	}

	return cfg.ResolveDefaultAgentID()
}
