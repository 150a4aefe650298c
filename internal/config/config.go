package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 300,
		},
		LINE: LINEConfig{
			APIBase: "https://api.line.me",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-3.5-turbo-0613",
			TimeoutSeconds: 120,
			MaxSteps:       8,
			MaxToolTokens:  2000,
		},
		Tools: ToolsConfig{
			Search:         SearchConfig{Provider: "serper"},
			MaxResults:     3,
			TimeoutSeconds: 15,
		},
		Memory: MemoryConfig{
			Store:      "sqlite",
			Collection: "gpt_line_bot",
			WindowSize: 10,
		},
		Audit: AuditConfig{
			Sink: "log",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

// Addr returns the listen address for the webhook server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
