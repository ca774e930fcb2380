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
	"unicode/utf8"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// CharsPerToken is the approximate characters-per-token ratio.
//
// This is a rough proxy, not a tokenizer for any particular model. Every
// budget in the planner is expressed in these estimated tokens.
const CharsPerToken = 4

// messageOverheadTokens accounts for role markers around each message.
const messageOverheadTokens = 4

// EstimateTokens approximates the token count of s as ceil(chars / 4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// EstimateMessage approximates one message including its role overhead.
func EstimateMessage(m datatypes.ChatMessage) int {
	return EstimateTokens(m.Content) + messageOverheadTokens
}

// EstimateMessages sums EstimateMessage over msgs.
func EstimateMessages(msgs []datatypes.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += EstimateMessage(m)
	}
	return total
}
