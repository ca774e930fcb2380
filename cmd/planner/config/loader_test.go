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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvOpenAIKey, EnvOpenAIBase, EnvPort, EnvOTLPEndpoint} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FirstRunCreatesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "planner.yaml")
	var notice bytes.Buffer

	cfg, err := Load(path, &notice)
	require.NoError(t, err)

	assert.Contains(t, notice.String(), "First run detected")
	assert.FileExists(t, path)
	assert.Equal(t, composer.DefaultConfig(), cfg.Composer)
	assert.Equal(t, 8, cfg.Compression.PreserveLastN)
	assert.Equal(t, 500*time.Millisecond, cfg.Regen.Debounce())
	assert.Equal(t, 256, cfg.Server.MaxExecutions)
	assert.Equal(t, 30*time.Minute, cfg.Server.ExecutionTTL())
	assert.Equal(t, "12230", cfg.Server.Port)
	assert.False(t, cfg.SemanticEnabled())

	again, err := Load(path, &notice)
	require.NoError(t, err)
	assert.Equal(t, cfg, again, "the written file round-trips")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
composer:
  max_tokens_per_phase: 12000
  max_phases: 12
regen:
  debounce_millis: 250
logging:
  level: debug
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 12000, cfg.Composer.MaxTokensPerPhase)
	assert.Equal(t, 12, cfg.Composer.MaxPhases)
	assert.Equal(t, 4, cfg.Composer.MaxFeaturesPerPhase, "unset fields keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Regen.Debounce())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIKey, " sk-test ")
	t.Setenv(EnvOpenAIBase, "http://localhost:11434/v1")
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")
	path := writeConfig(t, "embeddings:\n  enabled: true\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embeddings.BaseURL)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "collector:4317", cfg.Server.OTLPEndpoint)
	assert.True(t, cfg.SemanticEnabled())
}

func TestLoad_ExpandsHome(t *testing.T) {
	clearEnv(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := writeConfig(t, "embeddings:\n  cache_dir: ~/cache\nlogging:\n  dir: ~/logs\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), cfg.Embeddings.CacheDir)
	assert.Equal(t, filepath.Join(home, "logs"), cfg.Logging.Dir)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "composer: [unclosed"},
		{"bad level", "logging:\n  level: loud\n"},
		{"phases inverted", "composer:\n  min_phases: 5\n  max_phases: 3\n"},
		{"tiny budget", "composer:\n  max_tokens_per_phase: 10\n"},
		{"bad port", "server:\n  port: http\n"},
		{"bad base url", "embeddings:\n  base_url: not a url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadPortFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "eighty")
	_, err := Load(writeConfig(t, ""), nil)
	assert.Error(t, err)
}
