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
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/composer"
	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/embeddings"
	"github.com/AleutianAI/AleutianPlanner/services/planner/regen"
)

// PlannerConfig is the contents of ~/.aleutian/planner.yaml.
type PlannerConfig struct {
	// Composer: phase composition limits
	Composer composer.Config `yaml:"composer"`

	// Compression: conversation compression defaults for `planner compress`
	Compression CompressionConfig `yaml:"compression"`

	// Embeddings: optional semantic step of phase context extraction
	Embeddings EmbeddingsConfig `yaml:"embeddings"`

	// Regen: debounce for `planner watch` and the plan stream
	Regen RegenConfig `yaml:"regen"`

	// Server: `planner serve` settings
	Server ServerConfig `yaml:"server"`

	// Logging: level and optional log directory
	Logging LoggingConfig `yaml:"logging"`

	// OpenAIAPIKey is read from OPENAI_API_KEY only, never from the file.
	OpenAIAPIKey string `yaml:"-"`
}

type CompressionConfig struct {
	MaxTokens     int `yaml:"max_tokens" validate:"gte=100"`
	PreserveLastN int `yaml:"preserve_last_n" validate:"gte=1"`
}

type EmbeddingsConfig struct {
	// Enabled turns the semantic step on when an API key is also present.
	Enabled           bool    `yaml:"enabled"`
	BaseURL           string  `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model             string  `yaml:"model" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" validate:"gte=1"`
	Concurrency       int     `yaml:"concurrency" validate:"gte=1,lte=64"`

	// CacheDir holds the BadgerDB vector cache. Empty disables the cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Redact masks secrets and personal data before text is embedded.
	Redact bool `yaml:"redact"`
}

type RegenConfig struct {
	DebounceMillis int `yaml:"debounce_millis" validate:"gte=10,lte=60000"`
}

// Debounce returns the debounce as a duration.
func (r RegenConfig) Debounce() time.Duration {
	return time.Duration(r.DebounceMillis) * time.Millisecond
}

type ServerConfig struct {
	Port         string `yaml:"port" validate:"required,numeric"`
	ServiceName  string `yaml:"service_name" validate:"required"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// MaxExecutions caps in-memory execution sessions.
	MaxExecutions int `yaml:"max_executions" validate:"gte=1"`

	// ExecutionIdleMinutes expires sessions nobody touched for this long.
	ExecutionIdleMinutes int `yaml:"execution_idle_minutes" validate:"gte=1"`
}

// ExecutionTTL returns the idle expiry of execution sessions.
func (s ServerConfig) ExecutionTTL() time.Duration {
	return time.Duration(s.ExecutionIdleMinutes) * time.Minute
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() PlannerConfig {
	return PlannerConfig{
		Composer: composer.DefaultConfig(),
		Compression: CompressionConfig{
			MaxTokens:     conversation.DefaultCompressMaxTokens,
			PreserveLastN: conversation.DefaultPreserveLastN,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:           false,
			Model:             embeddings.DefaultModel,
			RequestsPerSecond: 5,
			Burst:             8,
			Concurrency:       8,
			CacheDir:          "~/.aleutian/planner/embeddings",
			Redact:            true,
		},
		Regen: RegenConfig{DebounceMillis: int(regen.DefaultDebounce / time.Millisecond)},
		Server: ServerConfig{
			Port:                 "12230",
			ServiceName:          "planner-service",
			MaxExecutions:        256,
			ExecutionIdleMinutes: 30,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
