package app

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/doeshing/shai-ops/internal/application/doctor"
	"github.com/doeshing/shai-ops/internal/application/history"
	"github.com/doeshing/shai-ops/internal/application/logstream"
	"github.com/doeshing/shai-ops/internal/application/pipeline"
	"github.com/doeshing/shai-ops/internal/domain"
	"github.com/doeshing/shai-ops/internal/infrastructure/config"
	"github.com/doeshing/shai-ops/internal/infrastructure/envprobe"
	"github.com/doeshing/shai-ops/internal/infrastructure/executor"
	historystore "github.com/doeshing/shai-ops/internal/infrastructure/history"
	"github.com/doeshing/shai-ops/internal/infrastructure/httpapi"
	"github.com/doeshing/shai-ops/internal/infrastructure/logsource"
	"github.com/doeshing/shai-ops/internal/infrastructure/security"
	"github.com/doeshing/shai-ops/internal/infrastructure/translator"
	"github.com/doeshing/shai-ops/internal/pkg/backoff"
	"github.com/doeshing/shai-ops/internal/pkg/logger"
	"github.com/doeshing/shai-ops/internal/ports"
)

// Options tunes container construction.
type Options struct {
	Verbose bool
	// ConfigPath overrides ~/.shai/config.yaml.
	ConfigPath string
	// LogWriter receives formatted log output. Without it logs are only
	// published to the hub unless Verbose is set, which writes to stderr.
	LogWriter io.Writer
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config       domain.Config
	ConfigLoader *config.FileLoader
	Logger       *logger.Logger
	LogHub       *logsource.Hub

	HistoryStore      ports.HistoryStore
	HistoryMaintainer ports.HistoryMaintainer
	SecurityService   ports.SecurityService
	Translator        ports.Translator
	Executor          *executor.LocalExecutor

	Pipeline      *pipeline.Orchestrator
	History       *history.Engine
	DoctorService *doctor.Service

	closers []func() error
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	hub := logsource.NewHub(domain.LogBufferCapacity)
	level := cfg.Preferences.LogLevel
	writer := opts.LogWriter
	if opts.Verbose {
		level = "debug"
		if writer == nil {
			writer = os.Stderr
		}
	}
	if writer == nil {
		writer = io.Discard
	}
	log := logger.New(logger.Options{
		Writer: writer,
		Format: cfg.Preferences.LogFormat,
		Level:  level,
		Source: "shai",
		Sink:   hub,
	})

	c := &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		LogHub:       hub,
	}
	c.closers = append(c.closers, func() error { hub.Close(); return nil })

	if err := c.buildHistoryStore(cfg, log); err != nil {
		return nil, err
	}
	c.SecurityService = buildGuardrail(cfg, log)
	c.Translator = buildTranslator(cfg, c.SecurityService, log)
	c.Executor = executor.NewLocalExecutor(executionShell(cfg))

	orchestrator, err := pipeline.New(pipeline.Config{
		Translator:   c.Translator,
		Executor:     c.Executor,
		Recorder:     pipeline.NewRecorder(c.HistoryStore, log.With("recorder")),
		Logger:       log.With("pipeline"),
		Timeout:      cfg.GetExecutionTimeout(),
		ContextTurns: cfg.GetContextTurns(),
		MaxTurns:     cfg.GetMaxTurns(),
	})
	if err != nil {
		return nil, err
	}
	c.Pipeline = orchestrator

	engine, err := history.NewEngine(history.Config{
		Store:         c.HistoryStore,
		Pipeline:      orchestrator,
		Logger:        log.With("history"),
		PageSize:      cfg.GetPageSize(),
		ReconfirmRisk: cfg.Execution.ReconfirmHistory,
	})
	if err != nil {
		return nil, err
	}
	c.History = engine

	c.DoctorService = &doctor.Service{
		ConfigProvider:  cfgLoader,
		SecurityService: c.SecurityService,
		HistoryStore:    c.HistoryStore,
	}

	return c, nil
}

// NewLogManager builds an event stream manager reading from a remote
// `shai serve` at remote, or from the in-process hub when remote is empty.
func (c *Container) NewLogManager(remote string) (*logstream.Manager, error) {
	var source ports.LogSource = c.LogHub
	if strings.TrimSpace(remote) != "" {
		source = logsource.NewHTTPSource(remote)
	}
	return logstream.New(logstream.Config{
		Source: source,
		Logger: c.Logger.With("logstream"),
		Retry: backoff.Policy{
			Base:        c.Config.GetRetryBase(),
			Max:         c.Config.GetRetryMax(),
			MaxAttempts: c.Config.GetRetryAttempts(),
		},
	})
}

// NewAPI builds the HTTP API over the container's hub and history store.
func (c *Container) NewAPI() *httpapi.Handler {
	rps, burst := c.Config.GetRateLimit()
	return httpapi.New(httpapi.Options{
		Logs:      c.LogHub,
		History:   c.HistoryStore,
		Logger:    c.Logger.With("httpapi"),
		RateLimit: rps,
		Burst:     burst,
	})
}

// Close releases stores and the log hub.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}

// buildHistoryStore opens the configured backend. SQLite falls back to the
// JSONL file store when the database cannot be opened.
func (c *Container) buildHistoryStore(cfg domain.Config, log *logger.Logger) error {
	path := config.ExpandPath(cfg.History.Path)
	switch cfg.GetHistoryBackend() {
	case "memory":
		c.HistoryStore = historystore.NewMemoryStore()
	case "file":
		store := historystore.NewFileStore(path)
		c.HistoryStore, c.HistoryMaintainer = store, store
	default:
		store, err := historystore.NewSQLiteStore(path)
		if err != nil {
			log.Warn("sqlite history unavailable, using jsonl file", map[string]interface{}{"error": err.Error()})
			file := historystore.NewFileStore("")
			c.HistoryStore, c.HistoryMaintainer = file, file
			return nil
		}
		c.HistoryStore, c.HistoryMaintainer = store, store
		c.closers = append(c.closers, store.Close)
	}
	return nil
}

func buildGuardrail(cfg domain.Config, log ports.Logger) ports.SecurityService {
	if !cfg.IsSecurityEnabled() {
		return nil
	}
	path, err := config.EnsureGuardrailRules(config.ExpandPath(cfg.Security.RulesFile))
	if err != nil {
		log.Warn("guardrail rules unavailable, using defaults", map[string]interface{}{"error": err.Error()})
		return security.NewDefaultGuardrail()
	}
	guardrail, err := security.NewGuardrail(path)
	if err != nil {
		log.Warn("guardrail rules invalid, using defaults", map[string]interface{}{"path": path, "error": err.Error()})
		return security.NewDefaultGuardrail()
	}
	return guardrail
}

func buildTranslator(cfg domain.Config, sec ports.SecurityService, log *logger.Logger) ports.Translator {
	var next ports.Translator = translator.NewHeuristic()
	if cfg.UsesRemoteTranslation() {
		next = translator.NewHTTPTranslator(cfg.Translation.Endpoint, cfg.Translation.AuthEnvVar, cfg.GetTranslationTimeout())
		if cfg.Translation.SendEnvironment {
			next = &translator.WithEnvironment{Next: next, Probe: envprobe.New()}
		}
	}
	return &translator.Guarded{Next: next, Security: sec, Logger: log.With("translator")}
}

// executionShell keeps $SHELL as the default when the config says auto.
func executionShell(cfg domain.Config) string {
	if shell := strings.TrimSpace(cfg.Execution.Shell); shell != "" && shell != "auto" {
		return shell
	}
	return os.Getenv("SHELL")
}
