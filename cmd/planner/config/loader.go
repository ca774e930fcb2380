// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvOpenAIBase   = "OPENAI_BASE_URL"
	EnvPort         = "PLANNER_PORT"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// DefaultPath returns ~/.aleutian/planner.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "planner.yaml"), nil
}

// Load reads the config file at path, creating it with defaults on first
// run, then applies environment overrides and validates the result.
//
// # Inputs
//
//   - path: Config file. Empty uses DefaultPath.
//   - notice: Receives the first-run message. Nil discards it.
//
// # Outputs
//
//   - *PlannerConfig: Defaults overlaid with the file and environment.
//   - error: Non-nil if the file cannot be created, read or parsed, or the
//     result is invalid.
func Load(path string, notice io.Writer) (*PlannerConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if notice == nil {
		notice = io.Discard
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(notice, " First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	applyEnv(&cfg)
	cfg.Embeddings.CacheDir = expandHome(cfg.Embeddings.CacheDir)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks every section, including the composer limits.
func (c *PlannerConfig) Validate() error {
	if err := datatypes.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid planner config: %w", err)
	}
	return c.Composer.Validate()
}

// SemanticEnabled reports whether the embedding step can run.
func (c *PlannerConfig) SemanticEnabled() bool {
	return c.Embeddings.Enabled && c.OpenAIAPIKey != ""
}

func applyEnv(cfg *PlannerConfig) {
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv(EnvOpenAIKey))
	if v := strings.TrimSpace(os.Getenv(EnvOpenAIBase)); v != "" {
		cfg.Embeddings.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		cfg.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOTLPEndpoint)); v != "" {
		cfg.Server.OTLPEndpoint = v
	}
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
