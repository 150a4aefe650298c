package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soyeahso/linegpt/internal/agent"
	"github.com/soyeahso/linegpt/internal/audit"
	"github.com/soyeahso/linegpt/internal/config"
	"github.com/soyeahso/linegpt/internal/llm"
	"github.com/soyeahso/linegpt/internal/logging"
	"github.com/soyeahso/linegpt/internal/memory"
	"github.com/soyeahso/linegpt/internal/metrics"
	"github.com/soyeahso/linegpt/internal/routing"
	"github.com/soyeahso/linegpt/internal/store"
	"github.com/soyeahso/linegpt/internal/tools"
)

// app holds everything the pipeline needs, built once per command.
type app struct {
	cfg     config.Config
	log     *logging.Logger
	metrics *metrics.Metrics
	db      *store.DB // nil unless a sqlite-backed component is configured
	agent   *agent.Agent
	window  *memory.Window
	audit   audit.Sink
	closers []io.Closer
}

// loadConfig reads and validates the config, then rebuilds the root logger
// from its logging section. --log-level wins over the file. Issues whose
// path starts with one of the ignore prefixes are not reported.
func loadConfig(ignore ...string) (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	l, closer, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		Style: cfg.Logging.Style,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return cfg, err
	}
	log = l
	logCloser = closer

	var issues []config.ValidationIssue
	for _, issue := range config.Validate(&cfg) {
		if !hasAnyPrefix(issue.Path, ignore) {
			issues = append(issues, issue)
		}
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// newApp wires memory, audit, tools and the engine from cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	var err error
	if cfg.Memory.Store == "sqlite" || cfg.Audit.Sink == "sqlite" {
		if err := paths.EnsureDirs(); err != nil {
			return nil, err
		}
		dbPath := paths.DatabasePath(&cfg)
		a.db, err = store.Open(dbPath, log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.closers = append(a.closers, a.db)
		log.Info().Str("path", dbPath).Msg("using SQLite database")
	}

	memStore, err := a.openMemoryStore(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, memStore)

	a.window, err = memory.NewWindow(memStore, cfg.Memory.Collection, cfg.Memory.WindowSize)
	if err != nil {
		return nil, err
	}

	a.audit, err = a.openAuditSink(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.audit)

	toolReg, err := tools.Build(toolsConfig(cfg))
	if err != nil {
		return nil, err
	}

	engine := llm.NewOpenAIEngine(llm.OpenAIConfig{
		Provider:      cfg.LLM.Provider,
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		APIVersion:    cfg.LLM.APIVersion,
		Model:         cfg.LLM.Model,
		Timeout:       seconds(cfg.LLM.TimeoutSeconds),
		MaxSteps:      cfg.LLM.MaxSteps,
		MaxToolTokens: cfg.LLM.MaxToolTokens,
	}, log)

	a.agent = agent.New(engine, toolReg, agent.Config{
		SystemPrompt: cfg.Agent.SystemPrompt,
		ExtraPrompt:  cfg.Agent.ExtraPrompt,
		Temperature:  cfg.LLM.Temperature,
		Verbose:      cfg.Agent.Verbose,
	}, log)

	log.Info().
		Str("provider", engine.Name()).
		Str("model", engine.Model()).
		Strs("tools", toolReg.Names()).
		Str("memory", cfg.Memory.Store).
		Int("window", cfg.Memory.WindowSize).
		Str("audit", cfg.Audit.Sink).
		Msg("agent ready")
	ready = true
	return a, nil
}

func (a *app) openMemoryStore(ctx context.Context) (memory.Store, error) {
	switch a.cfg.Memory.Store {
	case "sqlite":
		turns := store.NewTurnStore(a.db)
		if days := a.cfg.Memory.RetentionDays; days > 0 {
			cutoff := memory.PartitionFor(time.Now().AddDate(0, 0, -days))
			if _, err := turns.Prune(ctx, cutoff); err != nil {
				log.Warn().Err(err).Msg("pruning conversation history failed")
			}
		}
		return turns, nil
	case "redis":
		s, err := memory.NewRedisStore(ctx, a.cfg.Memory.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		log.Info().Msg("using Redis conversation store")
		return s, nil
	case "firestore":
		s, err := memory.NewFirestoreStore(ctx, a.cfg.GCP.ProjectID, a.cfg.GCP.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("connecting to firestore: %w", err)
		}
		log.Info().Str("collection", a.cfg.Memory.Collection).Msg("using Firestore conversation store")
		return s, nil
	case "memory":
		log.Warn().Msg("using in-process conversation store; history is lost on restart")
		return memory.NewInProcessStore(), nil
	default:
		return nil, fmt.Errorf("unknown memory store %q", a.cfg.Memory.Store)
	}
}

func (a *app) openAuditSink(ctx context.Context) (audit.Sink, error) {
	switch a.cfg.Audit.Sink {
	case "log":
		if a.cfg.Audit.File == "" {
			return audit.NewLogSink(stdout), nil
		}
		return audit.OpenLogSink(a.cfg.Audit.File)
	case "cloud":
		return audit.NewCloudSink(ctx, a.cfg.GCP.ProjectID, a.cfg.GCP.CredentialsFile)
	case "sqlite":
		return audit.NewStoreSink(store.NewAuditStore(a.db)), nil
	case "none":
		return audit.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", a.cfg.Audit.Sink)
	}
}

// router builds the response pipeline around replier.
func (a *app) router(replier routing.Replier) *routing.Router {
	return routing.NewRouter(routing.Deps{
		Agent:   a.agent,
		Memory:  a.window,
		Replier: replier,
		Audit:   a.audit,
		Options: routing.Options{
			Apology:            a.cfg.Pipeline.Apology,
			IncludeErrorDetail: a.cfg.Pipeline.IncludeErrorDetail,
		},
		Log:     a.log,
		Metrics: a.metrics,
	})
}

// Close releases collaborators in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func toolsConfig(cfg config.Config) tools.Config {
	return tools.Config{
		SearchProvider: cfg.Tools.Search.Provider,
		SerperAPIKey:   cfg.Tools.Search.SerperAPIKey,
		BraveAPIKey:    cfg.Tools.Search.BraveAPIKey,
		NCBIAPIKey:     cfg.Tools.NCBIAPIKey,
		MaxResults:     cfg.Tools.MaxResults,
		Timeout:        seconds(cfg.Tools.TimeoutSeconds),
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
