package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/config"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/continuity"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/engine"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/extraction"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/facts"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/heuristic"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage/postgres"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/storage/sqlite"
)

// dbFile is the SQLite database name inside the data directory.
const dbFile = "memory.db"

// app holds the wired pipeline for one command invocation.
type app struct {
	log        *logger.Logger
	store      storage.Store
	facts      *facts.Service
	continuity *continuity.Manager
	pipeline   *engine.Pipeline
	watcher    *heuristic.RuleWatcher
}

// openApp wires storage, extraction and the pipeline from cfg.
//
// Startup sequence:
//  1. Open the configured store and apply pending migrations.
//  2. Build the heuristic extractor, watching the rule override file if set.
//  3. Build the remote extraction service when a URL is configured.
//  4. Wire the fact service, continuity manager and pipeline.
func openApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	store, err := openStore(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	a := &app{log: log, store: store}

	extractor := heuristic.NewDefaultExtractor()
	if cfg.Rules.OverridePath != "" {
		a.watcher = heuristic.NewRuleWatcher(cfg.Rules.OverridePath, extractor, log)
		if err := a.watcher.Start(); err != nil {
			log.Warn("rule watcher unavailable, using embedded rules", "path", cfg.Rules.OverridePath, "error", err)
			a.watcher = nil
		}
	}

	service, err := newService(cfg.Extraction, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.facts = facts.NewService(store, log)
	a.continuity = continuity.NewManager(store, log)
	client := extraction.NewClient(service, extractor, a.facts, log)

	a.pipeline, err = engine.NewPipeline(engine.Config{
		NumWorkers:      cfg.Pipeline.NumWorkers,
		QueueSize:       cfg.Pipeline.QueueSize,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
		RecentTurns:     cfg.Pipeline.RecentTurns,
		KnownFactLimit:  cfg.Pipeline.KnownFactLimit,
	}, engine.Deps{
		Facts:       a.facts,
		Continuity:  a.continuity,
		Extractor:   client,
		Transcripts: store,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close stops the rule watcher and releases the store.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", "error", err)
	}
}

func openStore(cfg config.StorageConfig, log *logger.Logger) (storage.Store, error) {
	if cfg.StorageEngine == "postgres" {
		store, err := postgres.NewStore(cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	if err := os.MkdirAll(cfg.DataPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", cfg.DataPath, err)
	}
	store, err := sqlite.NewStore(filepath.Join(cfg.DataPath, dbFile), log)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newService returns nil when no extraction URL is configured.
func newService(cfg config.ExtractionConfig, log *logger.Logger) (extraction.Service, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	httpCfg := extraction.HTTPConfig{
		BaseURL:    cfg.URL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Backoff:    []time.Duration{cfg.BackoffFirst, cfg.BackoffNext},
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		Breaker:    extraction.DefaultCircuitBreakerConfig(),
	}
	httpCfg.Breaker.MaxFailures = cfg.BreakerMaxFailures
	httpCfg.Breaker.Timeout = cfg.BreakerTimeout

	svc, err := extraction.NewHTTPService(httpCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction service: %w", err)
	}
	return svc, nil
}
