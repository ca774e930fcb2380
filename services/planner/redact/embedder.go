// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package redact

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianPlanner/services/planner/embeddings"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
)

// Embedder masks text with a Policy before delegating to another Embedder.
type Embedder struct {
	inner   embeddings.Embedder
	policy  *Policy
	logger  *slog.Logger
	metrics *observability.PlannerMetrics
}

// NewEmbedder wraps inner. logger and metrics may be nil.
func NewEmbedder(inner embeddings.Embedder, policy *Policy, logger *slog.Logger, metrics *observability.PlannerMetrics) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{inner: inner, policy: policy, logger: logger, metrics: metrics}
}

// Embed redacts text and embeds the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	clean, counts := e.policy.Redact(text)
	if counts != nil {
		total := 0
		for class, n := range counts {
			e.metrics.RecordRedaction(class, n)
			total += n
		}
		// Never log the matched text itself.
		e.logger.Debug("redacted text before embedding", "matches", total)
	}
	return e.inner.Embed(ctx, clean)
}
