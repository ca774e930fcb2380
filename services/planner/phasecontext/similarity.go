// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phasecontext

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/embeddings"
	"golang.org/x/sync/errgroup"
)

// DefaultEmbedConcurrency caps concurrent embedding calls per extraction.
const DefaultEmbedConcurrency = 8

// Similarity scores candidate texts against a query.
//
// # Description
//
// The optional semantic step of context extraction. Any error makes the
// extractor fall back to topic-filtered segments only.
type Similarity interface {
	// Scores returns one similarity per candidate, in candidate order.
	Scores(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Absent is the Similarity used when no embedding capability is configured.
type Absent struct{}

// Scores always fails with datatypes.ErrEmbeddingUnavailable.
func (Absent) Scores(context.Context, string, []string) ([]float64, error) {
	return nil, datatypes.ErrEmbeddingUnavailable
}

// EmbeddingSimilarity scores candidates by cosine similarity of embeddings.
//
// Thread Safety: Safe for concurrent use if the embedder is.
type EmbeddingSimilarity struct {
	embedder    embeddings.Embedder
	concurrency int
}

// NewEmbeddingSimilarity wraps an embedder. concurrency <= 0 uses
// DefaultEmbedConcurrency.
func NewEmbeddingSimilarity(embedder embeddings.Embedder, concurrency int) *EmbeddingSimilarity {
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}
	return &EmbeddingSimilarity{embedder: embedder, concurrency: concurrency}
}

// Scores embeds the query and every candidate, then compares them.
//
// # Description
//
// Candidates are embedded concurrently with at most concurrency calls in
// flight. The first failure cancels the remaining calls.
//
// # Outputs
//
//   - []float64: Cosine similarity per candidate.
//   - error: Wraps datatypes.ErrEmbeddingUnavailable on any embedding failure.
func (s *EmbeddingSimilarity) Scores(ctx context.Context, query string, candidates []string) ([]float64, error) {
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", datatypes.ErrEmbeddingUnavailable, err)
	}

	scores := make([]float64, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range candidates {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed candidate %d: %w", i, err)
			}
			scores[i] = embeddings.CosineSimilarity(q, vec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", datatypes.ErrEmbeddingUnavailable, err)
	}
	return scores, nil
}
