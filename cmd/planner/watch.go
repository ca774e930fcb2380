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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/AleutianPlanner/services/planner/observability"
	"github.com/AleutianAI/AleutianPlanner/services/planner/regen"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [concept-file]",
		Short: "Regenerate the plan every time the concept file changes",
		Long: `watch prints the plan for a concept file, then reprints it whenever the
file is saved. Bursts of saves are debounced (regen.debounce_millis in the config).
Invalid edits are reported and the last good plan stays on screen.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, args[0])
		},
	}
}

func (a *app) watch(ctx context.Context, path string) error {
	gen, err := a.generator()
	if err != nil {
		return err
	}

	r := regen.New(gen.Generate, regen.Options{
		Debounce: a.cfg.Regen.Debounce(),
		Logger:   a.log,
		Metrics:  a.metrics,
		OnResult: func(res regen.Result) {
			switch res.Outcome {
			case observability.RegenApplied:
				a.printer.Plan(res.Plan, nil)
			case observability.RegenError:
				a.printer.Error(fmt.Sprintf("revision %d: %v", res.Seq, res.Err))
			}
		},
	})
	defer r.Close()

	w, err := regen.NewConceptWatcher(path, r, a.log)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	a.log.Info("watching concept", "path", path, "debounce", a.cfg.Regen.Debounce())
	<-ctx.Done()
	return nil
}
