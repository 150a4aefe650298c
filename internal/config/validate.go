package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Server
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeoutSeconds < 0 {
		add("server.writeTimeoutSeconds", "must not be negative")
	}

	// LINE channel
	if cfg.LINE.ChannelSecret == "" {
		add("line.channelSecret", "required (or set LINE_CHANNEL_SECRET)")
	}
	if cfg.LINE.ChannelAccessToken == "" {
		add("line.channelAccessToken", "required (or set LINE_CHANNEL_ACCESS_TOKEN)")
	}

	// Engine
	oneOf("llm.provider", cfg.LLM.Provider, []string{"openai", "azure"})
	if cfg.LLM.APIKey == "" {
		add("llm.apiKey", "required (or set OPENAI_API_KEY)")
	}
	if cfg.LLM.Provider == "azure" && cfg.LLM.BaseURL == "" {
		add("llm.baseUrl", "required when provider is azure")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		add("llm.temperature", "must be 0-2, got %v", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxSteps < 0 {
		add("llm.maxSteps", "must not be negative")
	}

	// Tools
	oneOf("tools.search.provider", cfg.Tools.Search.Provider, []string{"serper", "brave"})
	switch cfg.Tools.Search.Provider {
	case "serper":
		if cfg.Tools.Search.SerperAPIKey == "" {
			add("tools.search.serperApiKey", "required when search provider is serper (or set SERPER_API_KEY)")
		}
	case "brave":
		if cfg.Tools.Search.BraveAPIKey == "" {
			add("tools.search.braveApiKey", "required when search provider is brave (or set BRAVE_API_KEY)")
		}
	}

	// Memory
	oneOf("memory.store", cfg.Memory.Store, []string{"sqlite", "redis", "firestore", "memory"})
	if cfg.Memory.WindowSize <= 0 {
		add("memory.windowSize", "must be greater than 0, got %d", cfg.Memory.WindowSize)
	}
	if cfg.Memory.Store == "redis" && cfg.Memory.RedisURL == "" {
		add("memory.redisUrl", "required when store is redis (or set REDIS_URL)")
	}
	if cfg.Memory.RetentionDays < 0 {
		add("memory.retentionDays", "must not be negative")
	}

	// Audit
	oneOf("audit.sink", cfg.Audit.Sink, []string{"log", "cloud", "sqlite", "none"})

	// Firestore detects its project from the environment; Cloud Logging does not.
	if cfg.Audit.Sink == "cloud" && cfg.GCP.ProjectID == "" {
		add("gcp.projectId", "required when audit sink is cloud (or set GOOGLE_CLOUD_PROJECT)")
	}

	// Logging
	oneOf("logging.level", cfg.Logging.Level, []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	oneOf("logging.style", cfg.Logging.Style, []string{"pretty", "json"})

	return issues
}
