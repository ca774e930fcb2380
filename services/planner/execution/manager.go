// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execution tracks the sequential execution of a phase plan.
//
// # Description
//
// A Manager owns one plan and one conversation snapshot. It moves phases
// through pending -> in-progress -> complete|failed, refuses to start a phase
// whose dependencies are not complete, and assembles the execution context of
// a phase from its definition, a freshly extracted PhaseContext and the
// outputs reported by earlier phases.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.planner.execution")

// PhaseOutput is what a finished phase reports for the phases after it.
type PhaseOutput struct {
	// Libraries chosen or installed by the phase.
	Libraries []string `json:"libraries,omitempty" validate:"dive,required"`

	// Files created or modified by the phase.
	Files []string `json:"files,omitempty" validate:"dive,required"`

	// Notes is free text for later phases.
	Notes string `json:"notes,omitempty" validate:"max=4000"`
}

// PhaseStatus is a snapshot of one phase's execution state.
type PhaseStatus struct {
	Number     int          `json:"number"`
	Name       string       `json:"name"`
	State      PhaseState   `json:"state"`
	Attempts   int          `json:"attempts"`
	Output     *PhaseOutput `json:"output,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
	StartedAt  time.Time    `json:"startedAt,omitempty"`
	FinishedAt time.Time    `json:"finishedAt,omitempty"`
}

// Options configures a Manager. The zero value is usable.
type Options struct {
	// Extractor builds phase contexts. Nil uses phasecontext.New with no
	// semantic step.
	Extractor *phasecontext.Extractor

	// Logger is optional. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *observability.PlannerMetrics

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Manager drives the execution of one plan.
//
// # Thread Safety
//
// Safe for concurrent use. State changes take the write lock; context
// extraction runs outside the lock on immutable snapshots.
type Manager struct {
	mu       sync.RWMutex
	plan     *datatypes.DynamicPhasePlan
	messages []datatypes.ChatMessage
	statuses []PhaseStatus

	extractor *phasecontext.Extractor
	logger    *slog.Logger
	metrics   *observability.PlannerMetrics
	now       func() time.Time
}

// NewManager creates a Manager with every phase pending.
//
// # Inputs
//
//   - plan: A valid plan. Deep-copied.
//   - messages: The conversation snapshot. Copied.
//   - opts: Optional collaborators.
//
// # Outputs
//
//   - *Manager: Ready to use.
//   - error: Wraps datatypes.ErrInvalidPlan if the plan is invalid.
func NewManager(plan *datatypes.DynamicPhasePlan, messages []datatypes.ChatMessage, opts Options) (*Manager, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("execution manager: %w", err)
	}
	if opts.Extractor == nil {
		opts.Extractor = phasecontext.New(phasecontext.Options{Logger: opts.Logger, Metrics: opts.Metrics})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	statuses := make([]PhaseStatus, len(plan.Phases))
	for i, ph := range plan.Phases {
		statuses[i] = PhaseStatus{Number: ph.Number, Name: ph.Name, State: StatePending}
	}

	return &Manager{
		plan:      plan.Clone(),
		messages:  append([]datatypes.ChatMessage(nil), messages...),
		statuses:  statuses,
		extractor: opts.Extractor,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}, nil
}

// Plan returns a copy of the managed plan.
func (m *Manager) Plan() *datatypes.DynamicPhasePlan {
	return m.plan.Clone()
}

// Status returns the status of phase n.
func (m *Manager) Status(n int) (PhaseStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n < 1 || n > len(m.statuses) {
		return PhaseStatus{}, fmt.Errorf("%w: %d", ErrPhaseNotFound, n)
	}
	return copyStatus(m.statuses[n-1]), nil
}

// Statuses returns the status of every phase in order.
func (m *Manager) Statuses() []PhaseStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PhaseStatus, len(m.statuses))
	for i, s := range m.statuses {
		out[i] = copyStatus(s)
	}
	return out
}

// Done reports whether every phase is complete.
func (m *Manager) Done() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.statuses {
		if s.State != StateComplete {
			return false
		}
	}
	return true
}

// Next returns the lowest-numbered phase that can be started now.
//
// # Outputs
//
//   - int: Phase number.
//   - bool: False when nothing is startable (all done, or waiting on an
//     in-progress phase).
func (m *Manager) Next() (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.statuses {
		if !CanTransition(s.State, StateInProgress) {
			continue
		}
		if m.unmetDependencies(s.Number) == nil {
			return s.Number, true
		}
	}
	return 0, false
}

// Start moves phase n to in-progress.
//
// # Description
//
// Valid from pending, or from failed as a retry. Every dependency of the phase
// must be complete.
//
// # Outputs
//
//   - error: ErrPhaseNotFound, ErrInvalidTransition or
//     ErrDependenciesIncomplete, wrapped with details.
func (m *Manager) Start(n int) error {
	return m.start(n, false)
}

// Retry restarts a failed phase. It is Start restricted to failed phases.
func (m *Manager) Retry(n int) error {
	return m.start(n, true)
}

func (m *Manager) start(n int, retryOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.status(n)
	if err != nil {
		return err
	}
	if retryOnly && s.State != StateFailed {
		return fmt.Errorf("%w: phase %d is %s, only failed phases can be retried", ErrInvalidTransition, n, s.State)
	}
	if !CanTransition(s.State, StateInProgress) {
		return fmt.Errorf("%w: phase %d %s -> %s", ErrInvalidTransition, n, s.State, StateInProgress)
	}
	if missing := m.unmetDependencies(n); missing != nil {
		return fmt.Errorf("%w: phase %d waits on %v", ErrDependenciesIncomplete, n, missing)
	}

	retry := s.State == StateFailed
	s.State = StateInProgress
	s.Attempts++
	s.StartedAt = m.now()
	s.FinishedAt = time.Time{}
	m.logger.Info("Phase started", "phase", n, "name", s.Name, "attempt", s.Attempts, "retry", retry)
	m.metrics.RecordPhaseTransition(string(StateInProgress))
	return nil
}

// Complete marks phase n complete and records its output.
func (m *Manager) Complete(n int, output PhaseOutput) error {
	if err := datatypes.Validator().Struct(output); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.status(n)
	if err != nil {
		return err
	}
	if !CanTransition(s.State, StateComplete) {
		return fmt.Errorf("%w: phase %d %s -> %s", ErrInvalidTransition, n, s.State, StateComplete)
	}

	out := PhaseOutput{
		Libraries: append([]string(nil), output.Libraries...),
		Files:     append([]string(nil), output.Files...),
		Notes:     output.Notes,
	}
	s.State = StateComplete
	s.Output = &out
	s.LastError = ""
	s.FinishedAt = m.now()
	m.logger.Info("Phase complete", "phase", n, "name", s.Name,
		"libraries", len(out.Libraries), "files", len(out.Files))
	m.metrics.RecordPhaseTransition(string(StateComplete))
	return nil
}

// Fail marks phase n failed. The phase may be retried.
func (m *Manager) Fail(n int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.status(n)
	if err != nil {
		return err
	}
	if !CanTransition(s.State, StateFailed) {
		return fmt.Errorf("%w: phase %d %s -> %s", ErrInvalidTransition, n, s.State, StateFailed)
	}

	s.State = StateFailed
	s.LastError = reason
	s.FinishedAt = m.now()
	m.logger.Warn("Phase failed", "phase", n, "name", s.Name, "attempt", s.Attempts, "reason", reason)
	m.metrics.RecordPhaseTransition(string(StateFailed))
	return nil
}

// GetExecutionContext assembles everything phase n needs.
//
// # Description
//
// Merges the phase definition, a PhaseContext extracted fresh from the
// conversation snapshot, and the outputs of every completed earlier phase.
// The result depends only on (conversation, plan, completed outputs), so a
// retried phase receives an identical context.
//
// # Outputs
//
//   - *ExecutionContext: Ready for Prompt.
//   - error: ErrPhaseNotFound if n is outside the plan.
func (m *Manager) GetExecutionContext(ctx context.Context, n int) (*ExecutionContext, error) {
	ctx, span := tracer.Start(ctx, "execution.Manager.GetExecutionContext",
		trace.WithAttributes(attribute.Int("phase.number", n)))
	defer span.End()

	phase, ok := m.plan.Phase(n)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPhaseNotFound, n)
	}

	m.mu.RLock()
	var prior []PriorPhase
	for _, s := range m.statuses[:n-1] {
		if s.State == StateComplete && s.Output != nil {
			prior = append(prior, PriorPhase{
				Number:    s.Number,
				Name:      s.Name,
				Libraries: append([]string(nil), s.Output.Libraries...),
				Files:     append([]string(nil), s.Output.Files...),
				Notes:     s.Output.Notes,
			})
		}
	}
	m.mu.RUnlock()

	pc := m.extractor.Extract(ctx, m.messages, phase.Domain)

	ec := &ExecutionContext{
		ConceptName:  m.plan.ConceptName,
		TotalPhases:  m.plan.TotalPhases,
		Phase:        phase,
		PhaseContext: pc,
		PriorPhases:  prior,
	}
	ec.rollup()
	span.SetAttributes(
		attribute.Int("execution.prior_phases", len(prior)),
		attribute.Int("execution.context_tokens", pc.TokenEstimate),
	)
	return ec, nil
}

// status returns a pointer into m.statuses. Caller holds m.mu.
func (m *Manager) status(n int) (*PhaseStatus, error) {
	if n < 1 || n > len(m.statuses) {
		return nil, fmt.Errorf("%w: %d", ErrPhaseNotFound, n)
	}
	return &m.statuses[n-1], nil
}

// unmetDependencies returns dependencies of phase n that are not complete.
// Caller holds m.mu.
func (m *Manager) unmetDependencies(n int) []int {
	var missing []int
	for _, d := range m.plan.Phases[n-1].Dependencies {
		if m.statuses[d-1].State != StateComplete {
			missing = append(missing, d)
		}
	}
	return missing
}

func copyStatus(s PhaseStatus) PhaseStatus {
	if s.Output != nil {
		out := *s.Output
		out.Libraries = append([]string(nil), out.Libraries...)
		out.Files = append([]string(nil), out.Files...)
		s.Output = &out
	}
	return s
}
