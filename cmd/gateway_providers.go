package cmd

import (
	"log/slog"

	"github.com/moltis/moltis/internal/config"
	"github.com/moltis/moltis/internal/providers"
)

// registerProviders wires every provider with a configured API key into the
// registry. Tools that need a specific backend (vision, image generation)
// look providers up by name afterward.
func registerProviders(registry *providers.Registry, cfg *config.Config) {
	if cfg.Providers.Anthropic.APIKey != "" {
		registry.Register(providers.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey))
		slog.Info("registered provider", "name", "anthropic")
	}

	if cfg.Providers.OpenAI.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("openai", cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, "gpt-4o"))
		slog.Info("registered provider", "name", "openai")
	}

	if cfg.Providers.OpenRouter.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("openrouter", cfg.Providers.OpenRouter.APIKey, "https://openrouter.ai/api/v1", "anthropic/claude-sonnet-4-5-20250929"))
		slog.Info("registered provider", "name", "openrouter")
	}

	if cfg.Providers.Groq.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("groq", cfg.Providers.Groq.APIKey, "https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"))
		slog.Info("registered provider", "name", "groq")
	}

	if cfg.Providers.DeepSeek.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("deepseek", cfg.Providers.DeepSeek.APIKey, "https://api.deepseek.com/v1", "deepseek-chat"))
		slog.Info("registered provider", "name", "deepseek")
	}

	if cfg.Providers.Gemini.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("gemini", cfg.Providers.Gemini.APIKey, "https://generativelanguage.googleapis.com/v1beta/openai", "gemini-2.0-flash"))
		slog.Info("registered provider", "name", "gemini")
	}

	if cfg.Providers.Mistral.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("mistral", cfg.Providers.Mistral.APIKey, "https://api.mistral.ai/v1", "mistral-large-latest"))
		slog.Info("registered provider", "name", "mistral")
	}

	if cfg.Providers.XAI.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("xai", cfg.Providers.XAI.APIKey, "https://api.x.ai/v1", "grok-3-mini"))
		slog.Info("registered provider", "name", "xai")
	}

	if cfg.Providers.MiniMax.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("minimax", cfg.Providers.MiniMax.APIKey, "https://api.minimax.io/v1", "MiniMax-M2.5").
			WithChatPath("/text/chatcompletion_v2"))
		slog.Info("registered provider", "name", "minimax")
	}

	if cfg.Providers.Cohere.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("cohere", cfg.Providers.Cohere.APIKey, "https://api.cohere.ai/compatibility/v1", "command-a"))
		slog.Info("registered provider", "name", "cohere")
	}

	if cfg.Providers.Perplexity.APIKey != "" {
		registry.Register(providers.NewOpenAIProvider("perplexity", cfg.Providers.Perplexity.APIKey, "https://api.perplexity.ai", "sonar-pro"))
		slog.Info("registered provider", "name", "perplexity")
	}

	if cfg.Providers.DashScope.APIKey != "" {
		registry.Register(providers.NewDashScopeProvider(cfg.Providers.DashScope.APIKey, cfg.Providers.DashScope.APIBase, ""))
		slog.Info("registered provider", "name", "dashscope")
	}

	if cfg.Providers.Bailian.APIKey != "" {
		apiBase := cfg.Providers.Bailian.APIBase
		if apiBase == "" {
			apiBase = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		}
		registry.Register(providers.NewOpenAIProvider("bailian", cfg.Providers.Bailian.APIKey, apiBase, "qwen-max"))
		slog.Info("registered provider", "name", "bailian")
	}
}

// providerInfo describes how to auto-detect and verify a provider by name.
type providerInfo struct {
	envKey    string // env var carrying the API key
	modelHint string // default model to use when auto-onboarding
}

// providerMap is the single source of truth for provider auto-detection,
// connectivity verification, and default model selection.
var providerMap = map[string]providerInfo{
	"anthropic":  {envKey: "MOLTIS_ANTHROPIC_API_KEY", modelHint: "claude-sonnet-4-5-20250929"},
	"openai":     {envKey: "MOLTIS_OPENAI_API_KEY", modelHint: "gpt-4o"},
	"openrouter": {envKey: "MOLTIS_OPENROUTER_API_KEY", modelHint: "anthropic/claude-sonnet-4-5-20250929"},
	"groq":       {envKey: "MOLTIS_GROQ_API_KEY", modelHint: "llama-3.3-70b-versatile"},
	"deepseek":   {envKey: "MOLTIS_DEEPSEEK_API_KEY", modelHint: "deepseek-chat"},
	"gemini":     {envKey: "MOLTIS_GEMINI_API_KEY", modelHint: "gemini-2.0-flash"},
	"mistral":    {envKey: "MOLTIS_MISTRAL_API_KEY", modelHint: "mistral-large-latest"},
	"xai":        {envKey: "MOLTIS_XAI_API_KEY", modelHint: "grok-3-mini"},
	"minimax":    {envKey: "MOLTIS_MINIMAX_API_KEY", modelHint: "MiniMax-M2.5"},
	"cohere":     {envKey: "MOLTIS_COHERE_API_KEY", modelHint: "command-a"},
	"perplexity": {envKey: "MOLTIS_PERPLEXITY_API_KEY", modelHint: "sonar-pro"},
	"dashscope":  {envKey: "MOLTIS_DASHSCOPE_API_KEY", modelHint: "qwen3-max"},
	"bailian":    {envKey: "MOLTIS_BAILIAN_API_KEY", modelHint: "qwen-max"},
}

// resolveProviderAPIKey returns the configured API key for a provider name,
// whichever config section it lives in.
func resolveProviderAPIKey(cfg *config.Config, name string) string {
	switch name {
	case "anthropic":
		return cfg.Providers.Anthropic.APIKey
	case "openai":
		return cfg.Providers.OpenAI.APIKey
	case "openrouter":
		return cfg.Providers.OpenRouter.APIKey
	case "groq":
		return cfg.Providers.Groq.APIKey
	case "deepseek":
		return cfg.Providers.DeepSeek.APIKey
	case "gemini":
		return cfg.Providers.Gemini.APIKey
	case "mistral":
		return cfg.Providers.Mistral.APIKey
	case "xai":
		return cfg.Providers.XAI.APIKey
	case "minimax":
		return cfg.Providers.MiniMax.APIKey
	case "cohere":
		return cfg.Providers.Cohere.APIKey
	case "perplexity":
		return cfg.Providers.Perplexity.APIKey
	case "dashscope":
		return cfg.Providers.DashScope.APIKey
	case "bailian":
		return cfg.Providers.Bailian.APIKey
	default:
		return ""
	}
}

// resolveProviderAPIBase returns the default API base URL for a known
// provider name, used when verifying connectivity before a config override
// is applied. Returns "" for unknown/custom providers.
func resolveProviderAPIBase(name string) string {
	switch name {
	case "openai":
		return "https://api.openai.com/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "gemini":
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "xai":
		return "https://api.x.ai/v1"
	case "minimax":
		return "https://api.minimax.io/v1"
	case "cohere":
		return "https://api.cohere.ai/compatibility/v1"
	case "perplexity":
		return "https://api.perplexity.ai"
	case "dashscope":
		return "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	case "bailian":
		return "https://dashscope.aliyuncs.com/compatible-mode/v1"
	case "anthropic":
		return "https://api.anthropic.com"
	default:
		return ""
	}
}
