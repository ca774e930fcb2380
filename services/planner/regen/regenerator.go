// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package regen keeps a plan in step with an edited AppConcept.
//
// # Description
//
// Regenerator debounces concept edits and regenerates the plan off the
// caller's goroutine. A trigger arriving while a regeneration is in flight is
// queued, never cancelling the running one, and a result computed from a
// superseded snapshot is discarded so the stored plan never regresses.
//
// ConceptWatcher feeds a Regenerator from a concept file on disk.
package regen

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
)

// DefaultDebounce is the quiet period before a regeneration starts.
const DefaultDebounce = 500 * time.Millisecond

// GenerateFunc produces a plan from a concept snapshot.
// composer.Generator.Generate satisfies it.
type GenerateFunc func(ctx context.Context, concept *datatypes.AppConcept) (*datatypes.DynamicPhasePlan, error)

// Result reports the outcome of one regeneration run.
type Result struct {
	// Seq is the trigger sequence number of the snapshot the run used.
	Seq uint64

	// Plan is the generated plan. Nil on error.
	Plan *datatypes.DynamicPhasePlan

	// Err is the generation error, if any.
	Err error

	// Outcome is applied, stale or error.
	Outcome observability.RegenOutcome
}

// Options configures a Regenerator. The zero value is usable.
type Options struct {
	// Debounce is the quiet period. Default DefaultDebounce.
	Debounce time.Duration

	// Logger is optional. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *observability.PlannerMetrics

	// OnResult is called from the Regenerator goroutine after every run.
	// It must not block for long.
	OnResult func(Result)
}

// Regenerator debounces concept changes into plan regenerations.
//
// # Description
//
// Trigger stores the latest concept snapshot and restarts the debounce
// window. When the window expires a run starts with the snapshot current at
// that moment. If a run is already in flight the expiry is remembered and a
// new run starts as soon as the current one finishes.
//
// A result is applied only if its snapshot is still the latest trigger.
// Otherwise it is reported as stale and dropped.
//
// # Thread Safety
//
// Safe for concurrent use. All scheduling happens on one goroutine; at most
// one GenerateFunc call is in flight.
type Regenerator struct {
	generate GenerateFunc
	debounce time.Duration
	logger   *slog.Logger
	metrics  *observability.PlannerMetrics
	onResult func(Result)

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.RWMutex
	seq     uint64
	latest  *datatypes.AppConcept
	plan    *datatypes.DynamicPhasePlan
	planSeq uint64
	lastErr error
}

type runResult struct {
	seq  uint64
	plan *datatypes.DynamicPhasePlan
	err  error
}

// New creates a Regenerator and starts its scheduling goroutine.
//
// # Inputs
//
//   - generate: The plan generator. Must not be nil.
//   - opts: Optional settings.
//
// # Outputs
//
//   - *Regenerator: Running. Call Close to stop it.
func New(generate GenerateFunc, opts Options) *Regenerator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Regenerator{
		generate: generate,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		onResult: opts.OnResult,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	r.wg.Add(1)
	go r.loop(ctx)
	return r
}

// Trigger records a new concept snapshot and restarts the debounce window.
//
// # Outputs
//
//   - uint64: The sequence number assigned to this snapshot. 0 after Close.
func (r *Regenerator) Trigger(concept *datatypes.AppConcept) uint64 {
	select {
	case <-r.done:
		return 0
	default:
	}

	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.latest = concept.Clone()
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
		// A notification is already pending; the loop reads the latest
		// snapshot when the window expires.
	}
	return seq
}

// Plan returns a copy of the latest applied plan and its sequence number.
// The plan is nil until the first successful run.
func (r *Regenerator) Plan() (*datatypes.DynamicPhasePlan, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plan.Clone(), r.planSeq
}

// Err returns the error of the most recent non-stale run.
func (r *Regenerator) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Close stops scheduling, cancels an in-flight run and waits for it to
// return. Safe to call more than once.
func (r *Regenerator) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.cancel()
	})
	r.wg.Wait()
}

// loop owns the debounce timer and the in-flight flag.
func (r *Regenerator) loop(ctx context.Context) {
	defer r.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	results := make(chan runResult, 1)
	running, queued := false, false

	for {
		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-r.notify:
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timer, timerC = nil, nil
			if running {
				queued = true
				continue
			}
			running = true
			r.launch(ctx, results)

		case res := <-results:
			running = false
			r.apply(res)
			if queued {
				queued = false
				running = true
				r.launch(ctx, results)
			}
		}
	}
}

// launch starts one run against the snapshot current now.
func (r *Regenerator) launch(ctx context.Context, results chan<- runResult) {
	r.mu.RLock()
	seq, concept := r.seq, r.latest
	r.mu.RUnlock()

	r.logger.Debug("Regenerating plan", "seq", seq)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		plan, err := r.generate(ctx, concept)
		if err == nil && plan == nil {
			err = errors.New("generator returned no plan")
		}
		results <- runResult{seq: seq, plan: plan, err: err}
	}()
}

func (r *Regenerator) apply(res runResult) {
	r.mu.Lock()
	out := Result{Seq: res.seq, Plan: res.plan, Err: res.err}
	switch {
	case res.seq != r.seq || res.seq <= r.planSeq:
		out.Outcome = observability.RegenStale
	case res.err != nil:
		out.Outcome = observability.RegenError
		r.lastErr = res.err
	default:
		out.Outcome = observability.RegenApplied
		r.plan = res.plan
		r.planSeq = res.seq
		r.lastErr = nil
	}
	r.mu.Unlock()

	switch out.Outcome {
	case observability.RegenApplied:
		r.logger.Info("Plan regenerated", "seq", res.seq, "phases", res.plan.TotalPhases)
	case observability.RegenStale:
		r.logger.Debug("Discarded stale plan", "seq", res.seq)
	case observability.RegenError:
		r.logger.Warn("Plan regeneration failed", "seq", res.seq, "error", res.err)
	}
	r.metrics.RecordRegeneration(out.Outcome)
	if r.onResult != nil {
		r.onResult(out)
	}
}
