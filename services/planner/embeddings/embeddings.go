// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embeddings provides the optional text-embedding capability used by
// phase context extraction.
//
// # Description
//
// Embedder is the injected capability. Two implementations are provided:
//
//   - OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, rate
//     limited on the client side.
//   - CachedEmbedder wraps any Embedder with a BadgerDB vector cache keyed by
//     model and text hash.
//
// Callers treat every error as datatypes.ErrEmbeddingUnavailable and fall
// back to keyword filtering.
package embeddings

import (
	"context"
	"math"
)

// Embedder turns text into a vector.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// CosineSimilarity computes the cosine similarity between two vectors.
//
// # Outputs
//
//   - float64: Similarity in [-1, 1]. 0 for mismatched lengths, empty
//     vectors or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
