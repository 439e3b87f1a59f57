package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moltis/moltis/internal/agent"
	"github.com/moltis/moltis/internal/bootstrap"
	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/channels/discord"
	"github.com/moltis/moltis/internal/channels/msteams"
	"github.com/moltis/moltis/internal/channels/otp"
	"github.com/moltis/moltis/internal/channels/telegram"
	"github.com/moltis/moltis/internal/channels/whatsapp"
	"github.com/moltis/moltis/internal/channels/xmpp"
	"github.com/moltis/moltis/internal/auth"
	"github.com/moltis/moltis/internal/chatsessions"
	"github.com/moltis/moltis/internal/config"
	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/gateway/methods"
	"github.com/moltis/moltis/internal/mcp"
	"github.com/moltis/moltis/internal/memory"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/internal/providers"
	"github.com/moltis/moltis/internal/sandbox"
	"github.com/moltis/moltis/internal/scheduler"
	"github.com/moltis/moltis/internal/scheduler/heartbeat"
	"github.com/moltis/moltis/internal/sessions"
	"github.com/moltis/moltis/internal/skills"
	"github.com/moltis/moltis/internal/store"
	"github.com/moltis/moltis/internal/store/file"
	"github.com/moltis/moltis/internal/tools"
	"github.com/moltis/moltis/pkg/browser"
	"github.com/moltis/moltis/pkg/protocol"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	_, cfgStatErr := os.Stat(cfgPath)
	configMissing := os.IsNotExist(cfgStatErr)
	if !cfg.HasAnyProvider() || configMissing {
		if canAutoOnboard() {
			if runAutoOnboard(cfgPath) {
				cfg, _ = config.Load(cfgPath)
			} else {
				os.Exit(1)
			}
		} else if _, statErr := os.Stat(cfgPath); statErr == nil {
			envPath := filepath.Join(filepath.Dir(cfgPath), ".env.local")
			fmt.Println("No AI provider API key found. Did you forget to load your secrets?")
			fmt.Println()
			fmt.Printf("  source %s && ./moltis\n", envPath)
			os.Exit(1)
		} else {
			fmt.Println("No configuration found and no provider API key in the environment.")
			fmt.Println()
			fmt.Println("Set a provider API key (e.g. ANTHROPIC_API_KEY) in the environment and re-run.")
			os.Exit(1)
		}
	}

	msgBus := bus.New(256)

	providerRegistry := providers.NewRegistry()
	registerProviders(providerRegistry, cfg)

	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	os.MkdirAll(workspace, 0755)

	if seededFiles, seedErr := bootstrap.EnsureWorkspaceFiles(workspace); seedErr != nil {
		slog.Warn("bootstrap template seeding failed", "error", seedErr)
	} else if len(seededFiles) > 0 {
		slog.Info("seeded workspace templates", "files", seededFiles)
	}

	dataDir := os.Getenv("MOLTIS_DATA_DIR")
	if dataDir == "" {
		dataDir = config.ExpandHome("~/.moltis/data")
	}
	os.MkdirAll(dataDir, 0755)

	// Sandbox manager — routes file/exec tools through Docker when configured.
	var dockerMgr *sandbox.DockerManager
	var sandboxMgr sandbox.Manager
	if sbCfg := cfg.Agents.Defaults.Sandbox; sbCfg != nil && sbCfg.Mode != "" && sbCfg.Mode != "off" {
		if err := sandbox.CheckDockerAvailable(context.Background()); err != nil {
			slog.Warn("sandbox disabled: Docker not available", "configured_mode", sbCfg.Mode, "error", err)
		} else {
			resolved := sbCfg.ToSandboxConfig()
			dockerMgr = sandbox.NewDockerManager(resolved)
			sandboxMgr = dockerMgr
			slog.Info("sandbox enabled", "mode", string(resolved.Mode), "image", resolved.Image, "scope", string(resolved.Scope))
		}
	}

	toolsReg, memStore, browserMgr := buildSharedTools(cfg, workspace, dataDir, providerRegistry, sandboxMgr)
	if memStore != nil {
		defer memStore.Close()
	}
	if browserMgr != nil {
		defer browserMgr.CloseAll()
	}

	// MCP servers — shared across every agent.
	var mcpBridge *mcp.Bridge
	if len(cfg.Tools.McpServers) > 0 {
		bridge, err := mcp.Connect(context.Background(), cfg.Tools.McpServers)
		if err != nil {
			slog.Warn("mcp: bridge connect failed", "error", err)
		} else {
			mcpBridge = bridge
			mcpTools, err := mcpBridge.Tools(context.Background(), func(server string) string { return server + "_" })
			if err != nil {
				slog.Warn("mcp: tool listing failed", "error", err)
			}
			for _, t := range mcpTools {
				toolsReg.Register(t)
			}
			slog.Info("mcp servers connected", "servers", mcpBridge.Servers(), "tools", len(mcpTools))
		}
	}
	if mcpBridge != nil {
		defer mcpBridge.Close()
	}

	// Exec approval — always active (deny patterns + safe bins + configurable ask mode).
	approvalCfg := tools.DefaultExecApprovalConfig()
	if eaCfg := cfg.Tools.ExecApproval; eaCfg.Security != "" {
		approvalCfg.Security = tools.ExecSecurity(eaCfg.Security)
	}
	if eaCfg := cfg.Tools.ExecApproval; eaCfg.Ask != "" {
		approvalCfg.Ask = tools.ExecAskMode(eaCfg.Ask)
	}
	if len(cfg.Tools.ExecApproval.Allowlist) > 0 {
		approvalCfg.Allowlist = cfg.Tools.ExecApproval.Allowlist
	}
	execApprovalMgr := tools.NewExecApprovalManager(approvalCfg)
	execApprovalMgr.SetPublisher(msgBus)
	if execTool, ok := toolsReg.Get("exec"); ok {
		if aa, ok := execTool.(tools.ApprovalAware); ok {
			aa.SetApprovalManager(execApprovalMgr, config.DefaultAgentID)
		}
	}
	slog.Info("exec approval enabled", "security", string(approvalCfg.Security), "ask", string(approvalCfg.Ask))

	toolPE := tools.NewPolicyEngine(&cfg.Tools)

	sessStore := file.NewFileSessionStore(sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage)))

	globalSkillsDir := os.Getenv("MOLTIS_SKILLS_DIR")
	if globalSkillsDir == "" {
		globalSkillsDir = filepath.Join(config.ExpandHome("~/.moltis"), "skills")
	}
	skillsLoader := skills.NewLoader(workspace, globalSkillsDir, "")
	slog.Info("skills loaded", "count", len(skillsLoader.ListSkills()))

	if readTool, ok := toolsReg.Get("read_file"); ok {
		if rft, ok := readTool.(*tools.ReadFileTool); ok {
			rft.AllowPaths(globalSkillsDir)
			if homeDir, _ := os.UserHomeDir(); homeDir != "" {
				rft.AllowPaths(filepath.Join(homeDir, ".agents", "skills"))
			}
		}
	}

	hasMemory := memStore != nil

	rawFiles := bootstrap.LoadWorkspaceFiles(workspace)
	defaultAgentCfg := cfg.Agents.Defaults
	truncCfg := bootstrap.TruncateConfig{
		MaxCharsPerFile: defaultAgentCfg.BootstrapMaxChars,
		TotalMaxChars:   defaultAgentCfg.BootstrapTotalMaxChars,
	}
	contextFiles := bootstrap.BuildContextFiles(rawFiles, truncCfg)
	slog.Info("bootstrap context files", "count", len(contextFiles))

	// Subagent system — shared manager, per-agent tool instances below.
	subagentMgr := tools.NewSubagentManager(firstProvider(providerRegistry, cfg.Agents.Defaults.Provider), cfg.Agents.Defaults.Model, msgBus,
		func() *tools.Registry { return toolsReg }, resolveSubagentConfig(cfg.Agents.Defaults.Subagents))
	announceQueue := tools.NewAnnounceQueue(1000, 3000,
		func(sessionKey string, items []tools.AnnounceQueueItem, meta tools.AnnounceMetadata) {
			remainingActive := subagentMgr.CountRunningForParent(meta.ParentAgent)
			content := tools.FormatBatchedAnnounce(items, remainingActive)
			label := items[0].Label
			if len(items) > 1 {
				label = fmt.Sprintf("%d tasks", len(items))
			}
			msgBus.PublishInbound(bus.InboundMessage{
				Channel:  "system",
				SenderID: fmt.Sprintf("subagent:%s", label),
				ChatID:   meta.OriginChatID,
				Content:  content,
				UserID:   meta.OriginUserID,
				Metadata: map[string]string{
					"origin_channel":      meta.OriginChannel,
					"origin_peer_kind":    meta.OriginPeerKind,
					"parent_agent":        meta.ParentAgent,
					"subagent_label":      label,
					"origin_trace_id":     meta.OriginTraceID,
					"origin_root_span_id": meta.OriginRootSpanID,
				},
			})
		},
		subagentMgr.CountRunningForParent,
	)
	subagentMgr.SetAnnounceQueue(announceQueue)
	toolsReg.Register(tools.NewSpawnTool(subagentMgr, config.DefaultAgentID, 0))
	toolsReg.Register(tools.NewSubagentTool(subagentMgr, config.DefaultAgentID, 0))
	slog.Info("subagent system enabled", "tools", []string{"spawn", "subagent"})

	sessionsListTool := tools.NewSessionsListTool()
	sessionsListTool.SetSessionStore(sessStore)
	toolsReg.Register(sessionsListTool)

	sessionStatusTool := tools.NewSessionStatusTool()
	sessionStatusTool.SetSessionStore(sessStore)
	toolsReg.Register(sessionStatusTool)

	sessionsHistoryTool := tools.NewSessionsHistoryTool()
	sessionsHistoryTool.SetSessionStore(sessStore)
	toolsReg.Register(sessionsHistoryTool)

	sessionsSendTool := tools.NewSessionsSendTool()
	sessionsSendTool.SetSessionStore(sessStore)
	sessionsSendTool.SetMessageBus(msgBus)
	toolsReg.Register(sessionsSendTool)

	messageTool := tools.NewMessageTool()
	messageTool.SetMessageBus(msgBus)
	toolsReg.Register(messageTool)

	agentRouter := agent.NewRouter()

	if err := createAgentLoop(config.DefaultAgentID, cfg, agentRouter, providerRegistry, msgBus, sessStore, toolsReg, toolPE, contextFiles, skillsLoader, hasMemory); err != nil {
		slog.Error("failed to create default agent", "error", err)
		os.Exit(1)
	}
	for agentID := range cfg.Agents.List {
		if agentID == config.DefaultAgentID {
			continue
		}
		if err := createAgentLoop(agentID, cfg, agentRouter, providerRegistry, msgBus, sessStore, toolsReg, toolPE, contextFiles, skillsLoader, hasMemory); err != nil {
			slog.Error("failed to create agent", "agent", agentID, "error", err)
		}
	}

	// Cron tool is backed by the same scheduler instance started below.
	sched := scheduler.New(makeSchedulerRunFunc(agentRouter, msgBus, cfg))
	toolsReg.Register(tools.NewCronTool(sched))

	server := gateway.NewServer(cfg, msgBus, agentRouter, sessStore, toolsReg)
	server.SetPolicyEngine(permissions.NewPolicyEngine())
	server.SetCredentialStore(auth.NewStore(cfg.Gateway.Token))

	otpMgr := otp.NewManager(10*time.Minute, 5, time.Hour)
	pairingSvc := otp.NewPairing(otpMgr)

	arbiter := chatsessions.New(makeArbiterRunFunc(agentRouter, msgBus, nil))

	deps := methods.Deps{
		Agents:    agentRouter,
		Arbiter:   arbiter,
		Sessions:  sessStore,
		Scheduler: sched,
		Approvals: execApprovalMgr,
		Skills:    skillsLoader,
		Pairing:   pairingSvc,
		MCPBridge: mcpBridge,
	}
	if memStore != nil {
		deps.Memory = memStore
	}

	channelMgr := channels.NewManager(msgBus)
	deps.Channels = channelMgr

	methods.RegisterAll(server.Router(), deps)

	registerChannels(cfg, msgBus, pairingSvc, channelMgr)

	// Reconstruct the arbiter's RunFunc now that channelMgr exists, so
	// outbound replies can unregister their placeholder message.
	arbiter = chatsessions.New(makeArbiterRunFunc(agentRouter, msgBus, channelMgr))
	deps.Arbiter = arbiter

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if skillsWatcher, err := skills.NewWatcher(skillsLoader); err != nil {
		slog.Warn("skills watcher unavailable", "error", err)
	} else if err := skillsWatcher.Start(ctx); err != nil {
		slog.Warn("skills watcher start failed", "error", err)
	} else {
		defer skillsWatcher.Stop()
	}

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}

	sched.Start(ctx)
	defer sched.Stop()

	setupHeartbeats(sched, cfg, agentRouter, rawFiles)

	msgBus.Subscribe("channel-streaming", func(event bus.Event) {
		if event.Name != protocol.EventAgent {
			return
		}
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			return
		}
		evtType, _ := payload["type"].(string)
		inner, _ := payload["payload"].(map[string]interface{})
		runID, _ := inner["run_id"].(string)
		channelMgr.HandleAgentEvent(evtType, runID, inner)
	})

	go consumeInboundMessages(ctx, msgBus, arbiter, cfg, channelMgr)

	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)

		server.BroadcastEvent(*protocol.NewEvent(protocol.EventShutdown, nil))

		channelMgr.StopAll(context.Background())

		if dockerMgr != nil {
			slog.Info("releasing sandbox containers...")
			dockerMgr.ReleaseAll(context.Background())
		}

		cancel()
	}()

	slog.Info("moltis gateway starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"agents", agentRouter.List(),
		"tools", toolsReg.Count(),
		"channels", channelMgr.GetEnabledChannels(),
	)

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
}

// buildSharedTools registers every tool not specific to a single agent loop
// (file/exec, memory, browser, web, vision) into one registry shared across
// all agents.
func buildSharedTools(cfg *config.Config, workspace, dataDir string, providerRegistry *providers.Registry, sandboxMgr sandbox.Manager) (*tools.Registry, *memory.Store, *browser.Manager) {
	toolsReg := tools.NewRegistry()
	agentCfg := cfg.Agents.Defaults

	if sandboxMgr != nil {
		toolsReg.Register(tools.NewSandboxedReadFileTool(workspace, agentCfg.RestrictToWorkspace, sandboxMgr))
		toolsReg.Register(tools.NewSandboxedWriteFileTool(workspace, agentCfg.RestrictToWorkspace, sandboxMgr))
		toolsReg.Register(tools.NewSandboxedListFilesTool(workspace, agentCfg.RestrictToWorkspace, sandboxMgr))
		toolsReg.Register(tools.NewSandboxedEditTool(workspace, agentCfg.RestrictToWorkspace, sandboxMgr))
		toolsReg.Register(tools.NewSandboxedExecTool(workspace, agentCfg.RestrictToWorkspace, sandboxMgr))
	} else {
		toolsReg.Register(tools.NewReadFileTool(workspace, agentCfg.RestrictToWorkspace))
		toolsReg.Register(tools.NewWriteFileTool(workspace, agentCfg.RestrictToWorkspace))
		toolsReg.Register(tools.NewListFilesTool(workspace, agentCfg.RestrictToWorkspace))
		toolsReg.Register(tools.NewEditTool(workspace, agentCfg.RestrictToWorkspace))
		toolsReg.Register(tools.NewExecTool(workspace, agentCfg.RestrictToWorkspace))
	}

	var memStore *memory.Store
	if agentCfg.Memory == nil || agentCfg.Memory.Enabled == nil || *agentCfg.Memory.Enabled {
		st, err := memory.NewStore(filepath.Join(dataDir, "memory"), memory.Weights{})
		if err != nil {
			slog.Warn("memory store unavailable", "error", err)
		} else {
			memStore = st
			toolsReg.Register(tools.NewMemorySearchTool(memStore))
			toolsReg.Register(tools.NewMemoryGetTool(memStore))
			slog.Info("memory system enabled", "tools", []string{"memory_search", "memory_get"})

			// Index the workspace's memory/ subdirectory keyword-only (no
			// embedding provider wired at this layer; RPC search already
			// degrades to keyword search the same way).
			if syncer, err := memory.NewSyncer(st, filepath.Join(workspace, "memory"), nil, nil, "", ""); err != nil {
				slog.Warn("memory sync unavailable", "error", err)
			} else {
				go func() {
					if err := syncer.SyncAll(context.Background()); err != nil {
						slog.Warn("memory initial sync failed", "error", err)
					}
				}()
				syncer.Start(context.Background())
			}
		}
	}

	var browserMgr *browser.Manager
	if cfg.Tools.Browser.Enabled {
		browserMgr = browser.NewManager(cfg.Tools.Browser.Headless)
		toolsReg.Register(tools.NewBrowserTool(cfg.Tools.Browser.Headless))
		slog.Info("browser tool enabled", "headless", cfg.Tools.Browser.Headless)
	}

	webSearchTool := tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveEnabled: cfg.Tools.Web.Brave.Enabled,
		BraveAPIKey:  cfg.Tools.Web.Brave.APIKey,
		DDGEnabled:   cfg.Tools.Web.DuckDuckGo.Enabled,
	})
	if webSearchTool != nil {
		toolsReg.Register(webSearchTool)
		slog.Info("web_search tool enabled")
	}
	toolsReg.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))
	slog.Info("web_fetch tool enabled")

	toolsReg.Register(tools.NewReadImageTool(providerRegistry))
	toolsReg.Register(tools.NewCreateImageTool(providerRegistry))

	if cfg.Tools.RateLimitPerHour > 0 {
		toolsReg.SetRateLimiter(tools.NewToolRateLimiter(cfg.Tools.RateLimitPerHour))
		slog.Info("tool rate limiting enabled", "per_hour", cfg.Tools.RateLimitPerHour)
	}
	if cfg.Tools.ScrubCredentials != nil && !*cfg.Tools.ScrubCredentials {
		toolsReg.SetScrubbing(false)
		slog.Info("credential scrubbing disabled")
	}

	return toolsReg, memStore, browserMgr
}

// createAgentLoop resolves agentID's config and registers a new agent.Loop
// for it in router.
func createAgentLoop(
	agentID string,
	cfg *config.Config,
	router *agent.Router,
	providerRegistry *providers.Registry,
	msgBus *bus.MessageBus,
	sessStore store.SessionStore,
	toolsReg *tools.Registry,
	toolPE *tools.PolicyEngine,
	contextFiles []bootstrap.ContextFile,
	skillsLoader *skills.Loader,
	hasMemory bool,
) error {
	agentCfg := cfg.ResolveAgent(agentID)

	provider, err := providerRegistry.Get(agentCfg.Provider)
	if err != nil {
		names := providerRegistry.Names()
		if len(names) == 0 {
			return fmt.Errorf("no providers configured")
		}
		provider, _ = providerRegistry.Get(names[0])
		slog.Warn("configured provider not found, using fallback", "agent", agentID, "wanted", agentCfg.Provider, "using", names[0])
	}

	var skillAllowList []string
	var agentToolPolicy *config.ToolPolicySpec
	if spec, ok := cfg.Agents.List[agentID]; ok {
		skillAllowList = spec.Skills
		agentToolPolicy = spec.Tools
	}

	onEvent := func(evt agent.AgentEvent) {
		msgBus.Broadcast(bus.Event{
			Name:    protocol.EventAgent,
			Payload: map[string]interface{}{"type": evt.Type, "payload": map[string]interface{}{"run_id": evt.RunID, "agent_id": evt.AgentID, "data": evt.Payload}},
		})
	}

	loop := agent.NewLoop(agent.LoopConfig{
		ID:                agentID,
		Provider:          provider,
		Model:             agentCfg.Model,
		ContextWindow:     agentCfg.ContextWindow,
		MaxIterations:     agentCfg.MaxToolIterations,
		Workspace:         config.ExpandHome(agentCfg.Workspace),
		Bus:               msgBus,
		Sessions:          sessStore,
		Tools:             toolsReg,
		ToolPolicy:        toolPE,
		AgentToolPolicy:   agentToolPolicy,
		OnEvent:           onEvent,
		OwnerIDs:          cfg.Gateway.OwnerIDs,
		SkillsLoader:      skillsLoader,
		SkillAllowList:    skillAllowList,
		HasMemory:         hasMemory,
		ContextFiles:      contextFiles,
		CompactionCfg:     agentCfg.Compaction,
		ContextPruningCfg: agentCfg.ContextPruning,
		InjectionAction:   cfg.Gateway.InjectionAction,
	})

	router.Register(agentID, loop)
	slog.Info("agent loop created", "agent", agentID, "provider", agentCfg.Provider, "model", agentCfg.Model)
	return nil
}

// registerChannels wires every config-enabled channel into channelMgr.
func registerChannels(cfg *config.Config, msgBus *bus.MessageBus, pairingSvc channels.PairingGate, channelMgr *channels.Manager) {
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg, err := telegram.New(cfg.Channels.Telegram, msgBus, pairingSvc)
		if err != nil {
			slog.Error("failed to initialize telegram channel", "error", err)
		} else {
			channelMgr.RegisterChannel("telegram", tg)
			slog.Info("telegram channel enabled")
		}
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token != "" {
		dc, err := discord.New(cfg.Channels.Discord, msgBus, pairingSvc)
		if err != nil {
			slog.Error("failed to initialize discord channel", "error", err)
		} else {
			channelMgr.RegisterChannel("discord", dc)
			slog.Info("discord channel enabled")
		}
	}
	if cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "" {
		wa, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus, pairingSvc)
		if err != nil {
			slog.Error("failed to initialize whatsapp channel", "error", err)
		} else {
			channelMgr.RegisterChannel("whatsapp", wa)
			slog.Info("whatsapp channel enabled")
		}
	}
	if cfg.Channels.XMPP.Enabled {
		xc, err := xmpp.New(cfg.Channels.XMPP, msgBus, pairingSvc)
		if err != nil {
			slog.Error("failed to initialize xmpp channel", "error", err)
		} else {
			channelMgr.RegisterChannel("xmpp", xc)
			slog.Info("xmpp channel enabled")
		}
	}
	if cfg.Channels.MSTeams.Enabled {
		mt, err := msteams.New(cfg.Channels.MSTeams, msgBus, pairingSvc)
		if err != nil {
			slog.Error("failed to initialize msteams channel", "error", err)
		} else {
			channelMgr.RegisterChannel("msteams", mt)
			slog.Info("msteams channel enabled")
		}
	}
	// Zalo and Feishu remain config-only surface: no channel implementation
	// exists in this tree yet, so they are never registered at runtime.
}

// firstProvider resolves preferred from the registry, falling back to
// whatever is first available.
func firstProvider(reg *providers.Registry, preferred string) providers.Provider {
	if p, err := reg.Get(preferred); err == nil {
		return p
	}
	names := reg.Names()
	if len(names) == 0 {
		return nil
	}
	p, _ := reg.Get(names[0])
	return p
}

func resolveSubagentConfig(spec *config.SubagentsConfig) tools.SubagentConfig {
	cfg := tools.DefaultSubagentConfig()
	if spec == nil {
		return cfg
	}
	if spec.MaxConcurrent > 0 {
		cfg.MaxConcurrent = spec.MaxConcurrent
	}
	if spec.MaxSpawnDepth > 0 {
		cfg.MaxSpawnDepth = spec.MaxSpawnDepth
	}
	if spec.MaxChildrenPerAgent > 0 {
		cfg.MaxChildrenPerAgent = spec.MaxChildrenPerAgent
	}
	if spec.ArchiveAfterMinutes > 0 {
		cfg.ArchiveAfterMinutes = spec.ArchiveAfterMinutes
	}
	if spec.Model != "" {
		cfg.Model = spec.Model
	}
	return cfg
}

// setupHeartbeats creates one recurring scheduler job per agent whose
// config carries a Heartbeat section, delivering a periodic self-check
// prompt on the configured cadence and suppressing delivery when the agent
// replies with the HEARTBEAT_OK sentinel (see internal/scheduler/heartbeat).
//
// hb.Target selects where a non-OK reply goes: "none" drops it (the run
// still happens and is recorded, just never delivered anywhere), an
// explicit channel name paired with hb.To delivers there. "last" — deliver
// to whichever channel the agent was last talked to on — is accepted by
// config but not implemented: nothing in this tree tracks a per-agent
// last-contacted channel, so it degrades to "none" with a warning.
func setupHeartbeats(sched *scheduler.Scheduler, cfg *config.Config, agentRouter *agent.Router, rawFiles []bootstrap.ContextFile) {
	heartbeatMd := ""
	for _, f := range rawFiles {
		if f.Path == bootstrap.HeartbeatFile {
			heartbeatMd = f.Content
			break
		}
	}

	for _, agentID := range agentRouter.List() {
		agentCfg := cfg.ResolveAgent(agentID)
		hb := agentCfg.Heartbeat
		if hb == nil || hb.Every == "" {
			continue
		}
		everyMs, ok := heartbeat.ParseIntervalMs(hb.Every)
		if !ok || everyMs <= 0 {
			if hb.Every != "0m" {
				slog.Warn("heartbeat: invalid interval, skipping", "agent", agentID, "every", hb.Every)
			}
			continue
		}

		prompt, source := heartbeat.ResolvePrompt(hb.Prompt, heartbeatMd)

		deliver, channel := false, ""
		switch hb.Target {
		case "", "none":
		case "last":
			slog.Warn("heartbeat: target \"last\" is not supported, dropping non-OK replies", "agent", agentID)
		default:
			if hb.To == "" {
				slog.Warn("heartbeat: target set without a recipient, dropping non-OK replies", "agent", agentID, "target", hb.Target)
			} else {
				deliver, channel = true, hb.Target
			}
		}

		sessionTarget := scheduler.SessionTarget{Kind: scheduler.SessionTargetMain}
		if hb.Session != "" && hb.Session != "main" {
			sessionTarget = scheduler.SessionTarget{Kind: scheduler.SessionTargetNamed, Name: hb.Session}
		}

		job := scheduler.Job{
			ID:      heartbeatJobPrefix + agentID,
			Name:    fmt.Sprintf("heartbeat (%s)", agentID),
			Enabled: true,
			System:  true,
			Schedule: scheduler.Schedule{
				Kind:    scheduler.ScheduleEvery,
				EveryMs: everyMs,
			},
			Payload: scheduler.Payload{
				Kind:    scheduler.PayloadAgentTurn,
				Message: prompt,
				Model:   hb.Model,
				Deliver: deliver,
				Channel: channel,
				To:      hb.To,
			},
			SessionTarget: sessionTarget,
		}

		if _, err := sched.Create(job); err != nil {
			slog.Error("heartbeat: failed to schedule", "agent", agentID, "error", err)
			continue
		}
		slog.Info("heartbeat scheduled", "agent", agentID, "every", hb.Every, "prompt_source", string(source), "deliver", deliver)
	}
}
