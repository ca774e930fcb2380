// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/AleutianPlanner/cmd/planner/config"
	"github.com/AleutianAI/AleutianPlanner/pkg/logging"
	"github.com/AleutianAI/AleutianPlanner/pkg/ux"
	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/AleutianAI/AleutianPlanner/services/planner/embeddings"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"github.com/AleutianAI/AleutianPlanner/services/planner/redact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app holds what every command needs. It is built in the root command's
// PersistentPreRunE and released in PersistentPostRunE.
type app struct {
	// flags
	configPath string
	outputMode string
	logLevel   string
	jsonOutput bool

	cfg      *config.PlannerConfig
	logger   *logging.Logger
	log      *slog.Logger
	printer  *ux.Printer
	out      io.Writer
	registry *prometheus.Registry
	metrics  *observability.PlannerMetrics

	closers []func() error
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg

	levelName := cfg.Logging.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "planner",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.logger = logger
	a.log = logger.Slog()
	slog.SetDefault(a.log)
	a.closers = append(a.closers, logger.Close)

	mode, err := ux.ParseMode(a.outputMode)
	if err != nil {
		return err
	}
	a.out = cmd.OutOrStdout()
	a.printer = ux.NewPrinter(a.out, mode)

	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewPlannerMetrics(a.registry)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) generator() (*composer.Generator, error) {
	return composer.NewGenerator(a.cfg.Composer, a.log, a.metrics)
}

// extractor builds the phase context extractor. The semantic step is wired
// only when embeddings are enabled and an API key is present; any setup
// failure falls back to keyword filtering.
func (a *app) extractor() *phasecontext.Extractor {
	opts := phasecontext.Options{Logger: a.log, Metrics: a.metrics}
	if !a.cfg.SemanticEnabled() {
		return phasecontext.New(opts)
	}

	ec := a.cfg.Embeddings
	openaiEmbedder, err := embeddings.NewOpenAIEmbedder(embeddings.OpenAIConfig{
		APIKey:            a.cfg.OpenAIAPIKey,
		BaseURL:           ec.BaseURL,
		Model:             ec.Model,
		RequestsPerSecond: ec.RequestsPerSecond,
		Burst:             ec.Burst,
	}, a.log)
	if err != nil {
		a.log.Warn("semantic context disabled", "error", err)
		return phasecontext.New(opts)
	}

	var embedder embeddings.Embedder = openaiEmbedder
	if ec.Redact {
		policy, err := redact.Default()
		if err != nil {
			a.log.Warn("semantic context disabled, redaction policy failed to load", "error", err)
			return phasecontext.New(opts)
		}
		embedder = redact.NewEmbedder(embedder, policy, a.log, a.metrics)
	}
	if ec.CacheDir != "" {
		db, err := embeddings.OpenCache(embeddings.CacheConfig{Path: ec.CacheDir, Logger: a.log})
		if err != nil {
			a.log.Warn("embedding cache disabled", "path", ec.CacheDir, "error", err)
		} else {
			a.closers = append(a.closers, db.Close)
			embedder = embeddings.NewCachedEmbedder(embedder, db, openaiEmbedder.Model(), a.log)
		}
	}

	a.log.Info("semantic context enabled",
		"model", openaiEmbedder.Model(), "cached", ec.CacheDir != "", "redact", ec.Redact)
	opts.Similarity = phasecontext.NewEmbeddingSimilarity(embedder, ec.Concurrency)
	return phasecontext.New(opts)
}

func (a *app) printJSON(v any) error {
	enc := jsonEncoder(a.out)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
