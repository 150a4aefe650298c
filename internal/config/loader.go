package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in credential
// fields so secrets can stay out of the config file.
func expandSensitiveFields(cfg *Config) {
	for _, field := range []*string{
		&cfg.LINE.ChannelSecret,
		&cfg.LINE.ChannelAccessToken,
		&cfg.LLM.APIKey,
		&cfg.Tools.Search.SerperAPIKey,
		&cfg.Tools.Search.BraveAPIKey,
		&cfg.Tools.NCBIAPIKey,
		&cfg.Memory.RedisURL,
		&cfg.GCP.CredentialsFile,
	} {
		*field = expandEnvVars(*field)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by the config file.
func applyDefaults(cfg *Config) {
	def := Defaults()
	setString := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}

	setString(&cfg.Server.Host, def.Server.Host)
	setInt(&cfg.Server.Port, def.Server.Port)
	setInt(&cfg.Server.ReadTimeoutSeconds, def.Server.ReadTimeoutSeconds)
	setInt(&cfg.Server.WriteTimeoutSeconds, def.Server.WriteTimeoutSeconds)
	setString(&cfg.LINE.APIBase, def.LINE.APIBase)
	setString(&cfg.LLM.Provider, def.LLM.Provider)
	setString(&cfg.LLM.Model, def.LLM.Model)
	setInt(&cfg.LLM.TimeoutSeconds, def.LLM.TimeoutSeconds)
	setInt(&cfg.LLM.MaxSteps, def.LLM.MaxSteps)
	setInt(&cfg.LLM.MaxToolTokens, def.LLM.MaxToolTokens)
	setString(&cfg.Tools.Search.Provider, def.Tools.Search.Provider)
	setInt(&cfg.Tools.MaxResults, def.Tools.MaxResults)
	setInt(&cfg.Tools.TimeoutSeconds, def.Tools.TimeoutSeconds)
	setString(&cfg.Memory.Store, def.Memory.Store)
	setString(&cfg.Memory.Collection, def.Memory.Collection)
	setInt(&cfg.Memory.WindowSize, def.Memory.WindowSize)
	setString(&cfg.Audit.Sink, def.Audit.Sink)
	setString(&cfg.Logging.Level, def.Logging.Level)
	setString(&cfg.Logging.Style, def.Logging.Style)
}

// applyEnvOverrides reads well-known environment variables and overrides
// config values. Channel, model and provider variables keep the names the
// hosted deployment already exports.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"LINE_CHANNEL_ACCESS_TOKEN", &cfg.LINE.ChannelAccessToken},
		{"LINE_CHANNEL_SECRET", &cfg.LINE.ChannelSecret},
		{"CHAT_MODEL_NAME", &cfg.LLM.Model},
		{"OPENAI_API_KEY", &cfg.LLM.APIKey},
		{"OPENAI_BASE_URL", &cfg.LLM.BaseURL},
		{"SERPER_API_KEY", &cfg.Tools.Search.SerperAPIKey},
		{"BRAVE_API_KEY", &cfg.Tools.Search.BraveAPIKey},
		{"NCBI_API_KEY", &cfg.Tools.NCBIAPIKey},
		{"REDIS_URL", &cfg.Memory.RedisURL},
		{"GOOGLE_CLOUD_PROJECT", &cfg.GCP.ProjectID},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("LINEGPT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LINEGPT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
