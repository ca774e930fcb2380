// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// Compression defaults.
const (
	DefaultPreserveLastN     = 8
	DefaultCompressMaxTokens = 6000
	maxSynopsisHighlights    = 10
	synopsisBudgetDivisor    = 4
	truncatedMarker          = " …[truncated]"
)

// Compression outcomes, used as metric labels.
const (
	OutcomeSkipped    = "skipped"
	OutcomeCompressed = "compressed"
	OutcomeTruncated  = "truncated"
)

// CompressOptions bounds compression.
type CompressOptions struct {
	// MaxTokens is the budget for summary plus recent messages. Zero means
	// DefaultCompressMaxTokens.
	MaxTokens int `json:"maxTokens" validate:"gte=0"`

	// PreserveLastN messages are kept verbatim when they fit. Zero means
	// DefaultPreserveLastN.
	PreserveLastN int `json:"preserveLastN" validate:"gte=0"`
}

func (o CompressOptions) withDefaults() CompressOptions {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultCompressMaxTokens
	}
	if o.PreserveLastN <= 0 {
		o.PreserveLastN = DefaultPreserveLastN
	}
	return o
}

// CompressedConversation is the bounded form of a conversation.
type CompressedConversation struct {
	Summary          string                  `json:"summary"`
	RecentMessages   []datatypes.ChatMessage `json:"recentMessages"`
	OriginalCount    int                     `json:"originalCount"`
	SummarizedCount  int                     `json:"summarizedCount"`
	OriginalTokens   int                     `json:"originalTokens"`
	CompressedTokens int                     `json:"compressedTokens"`
	Truncated        bool                    `json:"truncated"`
}

// Outcome labels the compression for metrics.
func (c CompressedConversation) Outcome() string {
	switch {
	case c.Truncated:
		return OutcomeTruncated
	case c.SummarizedCount > 0:
		return OutcomeCompressed
	default:
		return OutcomeSkipped
	}
}

// NeedsCompression reports whether messages reach the token budget.
//
// A conversation fits only when its estimate is strictly below maxTokens.
func NeedsCompression(messages []datatypes.ChatMessage, maxTokens int) bool {
	return EstimateMessages(messages) >= maxTokens
}

// CompressConversation bounds a conversation to a token budget.
//
// # Description
//
// Keeps the last PreserveLastN messages verbatim and replaces everything
// older with a synopsis (message counts, topics, decisions and highlights).
// Three quarters of the budget is reserved for the recent messages; if they
// alone do not fit, the oldest of them move into the synopsis, and a single
// remaining message that still does not fit is truncated.
//
// # Outputs
//
//   - CompressedConversation: NeedsCompression(RecentMessages, MaxTokens) is
//     false and the summary plus recent messages estimate strictly below
//     MaxTokens. Input messages are never modified.
func CompressConversation(messages []datatypes.ChatMessage, opts CompressOptions) CompressedConversation {
	opts = opts.withDefaults()
	original := EstimateMessages(messages)
	result := CompressedConversation{
		OriginalCount:  len(messages),
		OriginalTokens: original,
	}

	if !NeedsCompression(messages, opts.MaxTokens) {
		result.RecentMessages = append([]datatypes.ChatMessage{}, messages...)
		result.CompressedTokens = original
		return result
	}

	keep := opts.PreserveLastN
	if keep > len(messages) {
		keep = len(messages)
	}
	recentBudget := opts.MaxTokens - opts.MaxTokens/synopsisBudgetDivisor
	recent := append([]datatypes.ChatMessage{}, messages[len(messages)-keep:]...)
	for len(recent) > 1 && EstimateMessages(recent) >= recentBudget {
		recent = recent[1:]
	}
	if len(recent) == 1 && EstimateMessage(recent[0]) >= recentBudget {
		if m, ok := truncateMessage(recent[0], recentBudget-1); ok {
			recent[0] = m
		} else {
			recent = recent[:0]
		}
		result.Truncated = true
	}

	older := messages[:len(messages)-len(recent)]
	recentTokens := EstimateMessages(recent)
	summaryTokens := opts.MaxTokens - 1 - recentTokens
	summary := TruncateRunes(Synopsis(older), summaryTokens*CharsPerToken)

	result.Summary = summary
	result.RecentMessages = recent
	result.SummarizedCount = len(older)
	result.CompressedTokens = recentTokens + EstimateTokens(summary)
	return result
}

// truncateMessage shortens m so EstimateMessage(m) <= tokens.
func truncateMessage(m datatypes.ChatMessage, tokens int) (datatypes.ChatMessage, bool) {
	contentTokens := tokens - messageOverheadTokens
	runes := contentTokens*CharsPerToken - len([]rune(truncatedMarker))
	if runes <= 0 {
		return m, false
	}
	r := []rune(m.Content)
	if len(r) > runes {
		r = r[:runes]
	}
	m.Content = string(r) + truncatedMarker
	return m, true
}

// Synopsis renders a compact summary of messages.
func Synopsis(messages []datatypes.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}

	var users, assistants int
	topicCounts := make(map[datatypes.Topic]int)
	for _, m := range messages {
		switch m.Role {
		case datatypes.RoleUser:
			users++
		case datatypes.RoleAssistant:
			assistants++
		}
		if t := ClassifyMessage(m.Content); t != datatypes.TopicGeneral {
			topicCounts[t]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Earlier conversation: %d messages (%d user, %d assistant).", len(messages), users, assistants)

	if topics := topTopics(topicCounts, 3); len(topics) > 0 {
		fmt.Fprintf(&b, " Topics: %s.", strings.Join(topics, ", "))
	}

	var text strings.Builder
	for _, m := range messages {
		text.WriteString(m.Content)
		text.WriteByte('\n')
	}
	if techs := Technologies(text.String()); len(techs) > 0 {
		fmt.Fprintf(&b, " Technologies: %s.", strings.Join(techs, ", "))
	}

	if highlights := KeyPoints(messages, maxSynopsisHighlights); len(highlights) > 0 {
		b.WriteString("\nHighlights:")
		for _, h := range highlights {
			b.WriteString("\n- ")
			b.WriteString(h)
		}
	}
	return b.String()
}

func topTopics(counts map[datatypes.Topic]int, n int) []string {
	topics := make([]datatypes.Topic, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = string(t)
	}
	return out
}

// BuildCompressedContext renders a compressed conversation into one
// prompt-ready string.
func BuildCompressedContext(c CompressedConversation) string {
	var b strings.Builder
	if c.Summary != "" {
		b.WriteString("## Conversation Summary\n")
		b.WriteString(c.Summary)
		b.WriteString("\n\n")
	}
	if len(c.RecentMessages) > 0 {
		b.WriteString("## Recent Messages\n")
		for _, m := range c.RecentMessages {
			fmt.Fprintf(&b, "[%s]: %s\n", m.Role, m.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
