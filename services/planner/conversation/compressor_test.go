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
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longConversation(n int) []datatypes.ChatMessage {
	msgs := make([]datatypes.ChatMessage, n)
	for i := range msgs {
		if i%2 == 0 {
			msgs[i] = user(fmt.Sprintf("Message %d: we should store recipes in Postgres and show them in a grid layout.", i))
		} else {
			msgs[i] = assistant(fmt.Sprintf("Reply %d: noted, the recipe grid will use cards with photos.", i))
		}
	}
	return msgs
}

func TestNeedsCompression(t *testing.T) {
	msgs := []datatypes.ChatMessage{user(strings.Repeat("a", 40))}

	assert.True(t, NeedsCompression(msgs, 14), "estimate 14 reaches the budget")
	assert.False(t, NeedsCompression(msgs, 15))
	assert.False(t, NeedsCompression(nil, 1))
}

func TestCompressConversation_UnderBudgetIsUnchanged(t *testing.T) {
	msgs := longConversation(4)

	c := CompressConversation(msgs, CompressOptions{MaxTokens: 10000})
	assert.Equal(t, msgs, c.RecentMessages)
	assert.Empty(t, c.Summary)
	assert.Zero(t, c.SummarizedCount)
	assert.Equal(t, OutcomeSkipped, c.Outcome())
}

func TestCompressConversation_KeepsLastN(t *testing.T) {
	msgs := longConversation(100)
	opts := CompressOptions{MaxTokens: 1000}

	c := CompressConversation(msgs, opts)

	require.Len(t, c.RecentMessages, DefaultPreserveLastN)
	assert.Equal(t, msgs[len(msgs)-DefaultPreserveLastN:], c.RecentMessages)
	assert.Equal(t, 100-DefaultPreserveLastN, c.SummarizedCount)
	assert.Contains(t, c.Summary, "Earlier conversation: 92 messages (46 user, 46 assistant).")
	assert.Contains(t, c.Summary, "PostgreSQL")
	assert.False(t, NeedsCompression(c.RecentMessages, opts.MaxTokens))
	assert.Less(t, c.CompressedTokens, opts.MaxTokens)
	assert.Equal(t, OutcomeCompressed, c.Outcome())
}

func TestCompressConversation_BudgetPostcondition(t *testing.T) {
	msgs := longConversation(60)
	for _, budget := range []int{1, 5, 20, 50, 100, 300, 700, 2000} {
		for _, keep := range []int{1, 3, 8, 30} {
			t.Run(fmt.Sprintf("budget=%d/keep=%d", budget, keep), func(t *testing.T) {
				c := CompressConversation(msgs, CompressOptions{MaxTokens: budget, PreserveLastN: keep})

				assert.False(t, NeedsCompression(c.RecentMessages, budget))
				assert.Less(t, EstimateMessages(c.RecentMessages)+EstimateTokens(c.Summary), budget)
				assert.Equal(t, len(msgs), c.SummarizedCount+len(c.RecentMessages))
			})
		}
	}
}

func TestCompressConversation_TruncatesOversizedLastMessage(t *testing.T) {
	msgs := []datatypes.ChatMessage{user("hi"), user(strings.Repeat("word ", 2000))}

	c := CompressConversation(msgs, CompressOptions{MaxTokens: 400})

	require.Len(t, c.RecentMessages, 1)
	assert.True(t, c.Truncated)
	assert.True(t, strings.HasSuffix(c.RecentMessages[0].Content, truncatedMarker))
	assert.Less(t, EstimateMessage(c.RecentMessages[0]), 300)
	assert.Equal(t, OutcomeTruncated, c.Outcome())
	assert.Equal(t, strings.Repeat("word ", 2000), msgs[1].Content, "input is not modified")
}

func TestBuildCompressedContext(t *testing.T) {
	c := CompressedConversation{
		Summary:        "Earlier conversation: 2 messages.",
		RecentMessages: []datatypes.ChatMessage{user("Use Postgres."), assistant("Noted.")},
	}

	out := BuildCompressedContext(c)
	assert.Equal(t, "## Conversation Summary\nEarlier conversation: 2 messages.\n\n## Recent Messages\n[user]: Use Postgres.\n[assistant]: Noted.", out)
	assert.Empty(t, BuildCompressedContext(CompressedConversation{}))
}
