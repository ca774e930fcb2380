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
	"encoding/json"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianPlanner/pkg/ux"
	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/execution"
	"github.com/AleutianAI/AleutianPlanner/services/planner/redact"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals.
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "planner",
		Short: "Plan an app build in phases and feed each phase its context",
		Long: `planner turns an app concept and the wizard conversation that produced it
into an ordered, dependency-resolved build plan, and extracts the bounded
conversation context each phase needs for code generation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Config file (default ~/.aleutian/planner.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.outputMode, "output", "full",
		"Output style: full, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"Print results as JSON")

	rootCmd.AddCommand(
		newPlanCmd(a),
		newContextCmd(a),
		newCompressCmd(a),
		newPromptCmd(a),
		newScanCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [concept-file]",
		Short: "Generate the phase plan for a concept (.yaml or .json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concept, err := datatypes.LoadConceptFile(args[0])
			if err != nil {
				return err
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}
			plan, err := gen.Generate(cmd.Context(), concept)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(plan)
			}
			a.printer.Plan(plan, nil)
			return nil
		},
	}
}

func newContextCmd(a *app) *cobra.Command {
	var phaseType string
	cmd := &cobra.Command{
		Use:   "context [conversation-file]",
		Short: "Extract the conversation context for one phase type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, ok := datatypes.ParseDomain(phaseType)
			if !ok {
				return fmt.Errorf("unknown phase type %q", phaseType)
			}
			messages, err := datatypes.LoadConversationFile(args[0])
			if err != nil {
				return err
			}
			pc := a.extractor().Extract(cmd.Context(), messages, domain)
			if a.jsonOutput {
				return a.printJSON(pc)
			}
			a.printer.PhaseContext(pc)
			return nil
		},
	}
	cmd.Flags().StringVarP(&phaseType, "phase", "p", string(datatypes.DomainFeature),
		"Phase domain, e.g. database, auth, ui-component")
	return cmd
}

func newCompressCmd(a *app) *cobra.Command {
	var maxTokens, preserveLastN int
	cmd := &cobra.Command{
		Use:   "compress [conversation-file]",
		Short: "Compress a conversation below a token budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := datatypes.LoadConversationFile(args[0])
			if err != nil {
				return err
			}
			opts := conversation.CompressOptions{
				MaxTokens:     a.cfg.Compression.MaxTokens,
				PreserveLastN: a.cfg.Compression.PreserveLastN,
			}
			if maxTokens > 0 {
				opts.MaxTokens = maxTokens
			}
			if preserveLastN > 0 {
				opts.PreserveLastN = preserveLastN
			}

			out := conversation.CompressConversation(messages, opts)
			a.metrics.RecordCompression(out.Outcome())
			a.log.Debug("conversation compressed",
				"outcome", out.Outcome(),
				"original_tokens", out.OriginalTokens,
				"compressed_tokens", out.CompressedTokens)

			if a.jsonOutput {
				return a.printJSON(out)
			}
			if a.printer.Mode() != ux.ModeMachine {
				a.printer.Success(fmt.Sprintf("%d messages, %d → %d tokens (%s)",
					out.OriginalCount, out.OriginalTokens, out.CompressedTokens, out.Outcome()))
			}
			fmt.Fprintln(a.out, conversation.BuildCompressedContext(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token budget (default from config)")
	cmd.Flags().IntVar(&preserveLastN, "preserve-last", 0, "Messages kept verbatim (default from config)")
	return cmd
}

func newPromptCmd(a *app) *cobra.Command {
	var (
		phase     int
		completed []int
		libraries []string
		chatFile  string
	)
	cmd := &cobra.Command{
		Use:   "prompt [concept-file]",
		Short: "Render the code-generation prompt context for one phase",
		Long: `prompt generates the plan, marks the phases given by --completed as done
(recording --libraries as their output), and prints the execution context of
--phase. It previews what a code-generation call would receive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concept, err := datatypes.LoadConceptFile(args[0])
			if err != nil {
				return err
			}
			var messages []datatypes.ChatMessage
			if chatFile != "" {
				if messages, err = datatypes.LoadConversationFile(chatFile); err != nil {
					return err
				}
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}
			plan, err := gen.Generate(cmd.Context(), concept)
			if err != nil {
				return err
			}

			m, err := execution.NewManager(plan, messages, execution.Options{
				Extractor: a.extractor(),
				Logger:    a.log,
				Metrics:   a.metrics,
			})
			if err != nil {
				return err
			}
			for _, n := range completed {
				if err := m.Start(n); err != nil {
					return fmt.Errorf("phase %d: %w", n, err)
				}
				if err := m.Complete(n, execution.PhaseOutput{Libraries: libraries}); err != nil {
					return fmt.Errorf("phase %d: %w", n, err)
				}
			}

			ec, err := m.GetExecutionContext(cmd.Context(), phase)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(ec)
			}
			fmt.Fprintln(a.out, ec.Prompt())
			return nil
		},
	}
	cmd.Flags().IntVar(&phase, "phase", 1, "Phase number to render")
	cmd.Flags().IntSliceVar(&completed, "completed", nil, "Phases to mark complete first, in order")
	cmd.Flags().StringSliceVar(&libraries, "libraries", nil, "Libraries reported by the completed phases")
	cmd.Flags().StringVar(&chatFile, "conversation", "", "Conversation file for phase context")
	return cmd
}

// messageFinding is a redaction finding located in a conversation.
type messageFinding struct {
	Message int `json:"message"`
	redact.Finding
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [conversation-file]",
		Short: "Report secrets and personal data that redaction would mask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, err := datatypes.LoadConversationFile(args[0])
			if err != nil {
				return err
			}
			policy, err := redact.Default()
			if err != nil {
				return err
			}

			findings := []messageFinding{}
			for i, m := range messages {
				for _, f := range policy.Scan(m.Content) {
					findings = append(findings, messageFinding{Message: i, Finding: f})
				}
			}
			if a.jsonOutput {
				return a.printJSON(findings)
			}
			for _, f := range findings {
				if a.printer.Mode() == ux.ModeMachine {
					fmt.Fprintf(a.out, "FINDING\t%d\t%d\t%s\t%s\n", f.Message, f.Line, f.Classification, f.PatternID)
					continue
				}
				a.printer.Warning(fmt.Sprintf("message %d, line %d: %s (%s)",
					f.Message, f.Line, f.Description, f.Classification))
			}
			if len(findings) == 0 && a.printer.Mode() != ux.ModeMachine {
				a.printer.Success("no sensitive data found")
			}
			return nil
		},
	}
}

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
