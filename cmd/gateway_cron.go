package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/moltis/moltis/internal/agent"
	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/config"
	"github.com/moltis/moltis/internal/scheduler"
	"github.com/moltis/moltis/internal/scheduler/heartbeat"
	"github.com/moltis/moltis/internal/sessions"
)

// heartbeatJobPrefix tags the ID of a scheduler Job created by
// setupHeartbeats, so makeSchedulerRunFunc can apply active-hours gating
// and HEARTBEAT_OK suppression that a regular cron job doesn't get.
const heartbeatJobPrefix = "heartbeat:"

func heartbeatAgentID(job *scheduler.Job) (string, bool) {
	if !job.System || !strings.HasPrefix(job.ID, heartbeatJobPrefix) {
		return "", false
	}
	return strings.TrimPrefix(job.ID, heartbeatJobPrefix), true
}

// makeSchedulerRunFunc builds the scheduler.RunFunc that fires a Job's
// payload against the default agent. A system_event payload is injected as
// an unattributed system message with no reply; an agent_turn payload runs
// a full turn and, when Deliver is set, publishes the result to a channel.
func makeSchedulerRunFunc(agents *agent.Router, msgBus *bus.MessageBus, cfg *config.Config) scheduler.RunFunc {
	return func(ctx context.Context, job *scheduler.Job) (string, int64, int64, error) {
		agentID := cfg.ResolveDefaultAgentID()
		var hb *config.HeartbeatConfig
		if hbAgentID, ok := heartbeatAgentID(job); ok {
			agentID = hbAgentID
			hb = cfg.ResolveAgent(agentID).Heartbeat
		}
		loop, err := agents.Get(agentID)
		if err != nil {
			return "", 0, 0, fmt.Errorf("resolve agent %q: %w", agentID, err)
		}

		if hb != nil && hb.ActiveHours != nil {
			if !heartbeat.IsWithinActiveHours(hb.ActiveHours.Start, hb.ActiveHours.End, hb.ActiveHours.Timezone, time.Now()) {
				return "skipped: outside active hours", 0, 0, nil
			}
		}

		sessionKey := cronSessionKey(cfg, agentID, job)

		timeout := 5 * time.Minute
		if job.Payload.TimeoutSec > 0 {
			timeout = time.Duration(job.Payload.TimeoutSec) * time.Second
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		runID := fmt.Sprintf("cron-%s", uuid.NewString()[:8])

		var req agent.RunRequest
		switch job.Payload.Kind {
		case scheduler.PayloadSystemEvent:
			req = agent.RunRequest{
				SessionKey:        sessionKey,
				Message:           job.Payload.Text,
				ExtraSystemPrompt: "This message was injected by a scheduled system event, not a user.",
				Channel:           "system",
				ChatID:            job.ID,
				PeerKind:          "direct",
				RunID:             runID,
				SenderID:          "cron:" + job.ID,
				TraceName:         fmt.Sprintf("cron [%s] %s", job.Name, agentID),
				TraceTags:         []string{"cron", "system_event"},
			}
		case scheduler.PayloadAgentTurn:
			req = agent.RunRequest{
				SessionKey: sessionKey,
				Message:    job.Payload.Message,
				Channel:    "cron",
				ChatID:     job.ID,
				PeerKind:   "direct",
				RunID:      runID,
				SenderID:   "cron:" + job.ID,
				TraceName:  fmt.Sprintf("cron [%s] %s", job.Name, agentID),
				TraceTags:  []string{"cron", "agent_turn"},
			}
		default:
			return "", 0, 0, fmt.Errorf("unknown job payload kind %q", job.Payload.Kind)
		}

		result, err := loop.Run(runCtx, req)
		if err != nil {
			return "", 0, 0, err
		}

		var inputTokens, outputTokens int64
		if result.Usage != nil {
			inputTokens = int64(result.Usage.PromptTokens)
			outputTokens = int64(result.Usage.CompletionTokens)
		}

		suppressDelivery := false
		if hb != nil {
			ackMax := hb.AckMaxChars
			if ackMax <= 0 {
				ackMax = heartbeat.DefaultAckMaxChars
			}
			stripped := heartbeat.StripToken(result.Content, heartbeat.StripTrim, ackMax)
			if stripped.ShouldSkip {
				suppressDelivery = true
				result.Content = "HEARTBEAT_OK"
			} else {
				result.Content = stripped.Text
			}
		}

		if !suppressDelivery && job.Payload.Kind == scheduler.PayloadAgentTurn && job.Payload.Deliver && job.Payload.Channel != "" && job.Payload.To != "" {
			out := bus.OutboundMessage{
				Channel: job.Payload.Channel,
				ChatID:  job.Payload.To,
				Content: result.Content,
			}
			for _, m := range result.Media {
				out.Media = append(out.Media, bus.MediaAttachment{URL: m.Path, ContentType: m.ContentType})
			}
			msgBus.PublishOutbound(out)
		}

		return result.Content, inputTokens, outputTokens, nil
	}
}

// cronSessionKey picks the session a fired job's run attaches to, following
// job.SessionTarget.
func cronSessionKey(cfg *config.Config, agentID string, job *scheduler.Job) string {
	switch job.SessionTarget.Kind {
	case scheduler.SessionTargetMain:
		return sessions.BuildAgentMainSessionKey(agentID, cfg.Sessions.MainKey)
	case scheduler.SessionTargetNamed:
		if job.SessionTarget.Name != "" {
			return sessions.BuildCronSessionKey(agentID, job.SessionTarget.Name, "shared")
		}
		fallthrough
	default: // SessionTargetIsolated
		return sessions.BuildCronSessionKey(agentID, job.ID, job.ID)
	}
}
