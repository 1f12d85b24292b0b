// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Shared wiring for commands that talk to the platform.

package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/lendgate-tui/internal/api"
	"github.com/jeranaias/lendgate-tui/internal/audit"
	"github.com/jeranaias/lendgate-tui/internal/config"
	"github.com/jeranaias/lendgate-tui/internal/credentials"
	"github.com/jeranaias/lendgate-tui/internal/guard"
	"github.com/jeranaias/lendgate-tui/internal/logging"
	"github.com/jeranaias/lendgate-tui/internal/session"
)

// Runtime holds the session core for one CLI invocation.
type Runtime struct {
	Config    *config.Config
	App       string
	AppConfig config.AppConfig
	Logger    *zap.Logger

	CredentialDir string
	Store         *credentials.Store
	Client        *api.Client
	Validator     *session.Validator
	Recorder      audit.Recorder

	// Out receives human or JSON output. Prompts go to Prompt so they never
	// mix with JSON on stdout.
	Out    io.Writer
	Prompt io.Writer
	In     *bufio.Reader

	auditStore *audit.Store
}

// NewRuntime loads configuration and builds the store, client, validator
// and audit recorder. The caller must Close it.
func NewRuntime(args Args) (*Runtime, error) {
	cfg, err := config.Load()
	if cfg == nil {
		return nil, &ConfigError{Err: err}
	}
	loadErr := err

	app := cfg.App
	if args.App != "" {
		app = strings.ToLower(args.App)
	}
	appCfg, ok := cfg.LookupApp(app)
	if !ok {
		return nil, NewValidationErrorWithExample("app", app, "unknown console",
			"lendgate --app "+strings.Join(cfg.AppNames(), "|"))
	}

	level := cfg.Logging.Level
	if args.Verbose {
		level = "debug"
	}
	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	logger, err := logging.New(level, logPath)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	logger = logger.With(zap.String("app", app))
	if loadErr != nil {
		logger.Warn("config file ignored, using defaults", zap.Error(loadErr))
	}

	credDir, err := cfg.CredentialDir()
	if err != nil {
		logger.Sync()
		return nil, &ConfigError{Err: err}
	}
	store := credentials.NewStore(credentials.NewFileBackend(credDir)).WithLogger(logger)
	client := api.NewClient(cfg.API.BaseURL, store).
		WithTimeout(cfg.API.Timeout()).
		WithUserAgent(cfg.API.UserAgent).
		WithLogger(logger)

	rt := &Runtime{
		Config:        cfg,
		App:           app,
		AppConfig:     appCfg,
		Logger:        logger,
		CredentialDir: credDir,
		Store:         store,
		Client:        client,
		Validator:     session.NewValidator(client).WithLogger(logger),
		Recorder:      audit.LogRecorder{Logger: logger},
		Out:           os.Stdout,
		Prompt:        os.Stderr,
		In:            bufio.NewReader(os.Stdin),
	}

	if cfg.Audit.Enabled {
		if path, err := cfg.AuditDBPath(); err != nil {
			logger.Warn("audit trail disabled", zap.Error(err))
		} else if st, err := audit.Open(path); err != nil {
			logger.Warn("audit trail disabled", zap.String("path", path), zap.Error(err))
		} else {
			rt.auditStore = st.WithLogger(logger).WithApp(app)
			rt.Recorder = rt.auditStore
		}
	}

	return rt, nil
}

// withRuntime runs fn with a fresh runtime and an interrupt-aware context.
func withRuntime(args Args, fn func(context.Context, *Runtime, Args) error) error {
	rt, err := NewRuntime(args)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fn(ctx, rt, args)
}

// Audit returns the audit store, or nil when the trail is disabled.
func (rt *Runtime) Audit() *audit.Store {
	return rt.auditStore
}

// NewGuard builds a route guard for the runtime's console.
func (rt *Runtime) NewGuard() *guard.Guard {
	s := rt.Config.Session
	return guard.New(guard.Config{
		App:          rt.App,
		AllowedRoles: rt.AppConfig.AllowedRoles,
		Store:        rt.Store,
		Client:       rt.Client,
		Validator:    rt.Validator,
		Monitor: session.MonitorConfig{
			Interval:         s.PollInterval(),
			WarningThreshold: s.WarningThreshold(),
		},
		ExtendMinInterval: s.ExtendMinInterval(),
		Recorder:          rt.Recorder,
		Logger:            rt.Logger,
	})
}

// Title returns the console title for headers.
func (rt *Runtime) Title() string {
	if rt.AppConfig.Title != "" {
		return rt.AppConfig.Title
	}
	return rt.App
}

// record writes an audit event, logging failures.
func (rt *Runtime) record(t audit.EventType, userID string, details map[string]string) {
	err := rt.Recorder.Record(audit.Event{Type: t, App: rt.App, UserID: userID, Details: details})
	if err != nil {
		rt.Logger.Warn("audit record failed", zap.String("event", string(t)), zap.Error(err))
	}
}

// Close releases the audit database and flushes the logger.
func (rt *Runtime) Close() error {
	var err error
	if rt.auditStore != nil {
		err = rt.auditStore.Close()
	}
	rt.Logger.Sync()
	return err
}
