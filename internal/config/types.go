package config

// Config is the root configuration for linegpt.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	LINE     LINEConfig     `yaml:"line,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Agent    AgentConfig    `yaml:"agent,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty"`
	Memory   MemoryConfig   `yaml:"memory,omitempty"`
	Audit    AuditConfig    `yaml:"audit,omitempty"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	GCP      GCPConfig      `yaml:"gcp,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty"`
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Host                string `yaml:"host,omitempty"`
	Port                int    `yaml:"port,omitempty"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds,omitempty"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds,omitempty"` // covers the synchronous agent call
}

// LINEConfig holds the Messaging API channel credentials.
type LINEConfig struct {
	ChannelSecret      string `yaml:"channelSecret,omitempty"`
	ChannelAccessToken string `yaml:"channelAccessToken,omitempty"`
	APIBase            string `yaml:"apiBase,omitempty"`
}

// LLMConfig selects and tunes the hosted chat-completions engine.
type LLMConfig struct {
	Provider       string  `yaml:"provider,omitempty"` // "openai" | "azure"
	APIKey         string  `yaml:"apiKey,omitempty"`
	BaseURL        string  `yaml:"baseUrl,omitempty"`
	APIVersion     string  `yaml:"apiVersion,omitempty"` // azure only
	Model          string  `yaml:"model,omitempty"`
	Temperature    float32 `yaml:"temperature,omitempty"`
	TimeoutSeconds int     `yaml:"timeoutSeconds,omitempty"`
	MaxSteps       int     `yaml:"maxSteps,omitempty"`
	MaxToolTokens  int     `yaml:"maxToolTokens,omitempty"`
}

// AgentConfig configures the tool-augmented agent.
type AgentConfig struct {
	SystemPrompt string `yaml:"systemPrompt,omitempty"` // replaces the built-in prompt when set
	ExtraPrompt  string `yaml:"extraPrompt,omitempty"`
	Verbose      bool   `yaml:"verbose,omitempty"`
}

// ToolsConfig configures the tools offered to the agent.
type ToolsConfig struct {
	Search         SearchConfig `yaml:"search,omitempty"`
	NCBIAPIKey     string       `yaml:"ncbiApiKey,omitempty"`
	MaxResults     int          `yaml:"maxResults,omitempty"`
	TimeoutSeconds int          `yaml:"timeoutSeconds,omitempty"`
}

// SearchConfig selects the web search backend.
type SearchConfig struct {
	Provider     string `yaml:"provider,omitempty"` // "serper" | "brave"
	SerperAPIKey string `yaml:"serperApiKey,omitempty"`
	BraveAPIKey  string `yaml:"braveApiKey,omitempty"`
}

// MemoryConfig controls the conversation window and its backing store.
type MemoryConfig struct {
	Store         string `yaml:"store,omitempty"` // "sqlite" | "redis" | "firestore" | "memory"
	Collection    string `yaml:"collection,omitempty"`
	WindowSize    int    `yaml:"windowSize,omitempty"` // in turns
	RedisURL      string `yaml:"redisUrl,omitempty"`
	RetentionDays int    `yaml:"retentionDays,omitempty"` // sqlite only; 0 keeps everything
}

// AuditConfig selects where answered exchanges are recorded.
type AuditConfig struct {
	Sink string `yaml:"sink,omitempty"` // "log" | "cloud" | "sqlite" | "none"
	File string `yaml:"file,omitempty"` // log sink only; empty means stdout
}

// PipelineConfig tunes the user-visible failure reply.
type PipelineConfig struct {
	Apology            string `yaml:"apology,omitempty"` // empty selects the built-in Japanese apology
	IncludeErrorDetail bool   `yaml:"includeErrorDetail,omitempty"`
}

// GCPConfig is shared by the firestore store and the cloud audit sink.
type GCPConfig struct {
	ProjectID       string `yaml:"projectId,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
	File  string `yaml:"file,omitempty"`
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // empty means <data dir>/linegpt.db
}
