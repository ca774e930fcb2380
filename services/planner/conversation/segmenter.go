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

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/google/uuid"
)

// MaxKeyPoints caps the extractive bullets kept per segment.
const MaxKeyPoints = 5

// segmentNamespace seeds deterministic segment IDs.
var segmentNamespace = uuid.MustParse("6f1c2a0e-6d2b-5d8e-9a51-3c7e4b8f2d10")

// SegmentOptions tunes segmentation.
type SegmentOptions struct {
	// FeatureNames are the concept's feature names. Segments mentioning a
	// feature no other segment mentions are marked high importance.
	FeatureNames []string
}

// Segment partitions messages into topic-tagged segments.
//
// # Description
//
// Every message is classified with ClassifyMessage. A new segment starts only
// when two consecutive non-general messages both classify to a topic that
// differs from the current segment's topic; the new segment begins at the
// first of the two and takes the topic of the second. General messages are
// skipped when counting consecutive messages, so short acknowledgments
// between turns neither start nor block a switch. A message back on the
// current topic cancels a pending switch. A leading general segment adopts
// the first non-general topic it meets.
//
// # Inputs
//
//   - messages: The ordered message log. Not modified.
//   - opts: Feature names used for mentions and importance.
//
// # Outputs
//
//   - []datatypes.ConversationSegment: Contiguous segments covering every
//     message exactly once, in order. Empty input yields nil.
func Segment(messages []datatypes.ChatMessage, opts SegmentOptions) []datatypes.ConversationSegment {
	if len(messages) == 0 {
		return nil
	}

	topics := make([]datatypes.Topic, len(messages))
	for i, m := range messages {
		topics[i] = ClassifyMessage(m.Content)
	}

	type span struct {
		start, end int
		topic      datatypes.Topic
	}
	var spans []span
	cur := span{start: 0, topic: topics[0]}
	pending := -1
	for i := 1; i < len(messages); i++ {
		t := topics[i]
		if t == datatypes.TopicGeneral {
			continue
		}
		if t == cur.topic {
			pending = -1
			continue
		}
		if cur.topic == datatypes.TopicGeneral {
			cur.topic = t
			pending = -1
			continue
		}
		if pending < 0 {
			pending = i
			continue
		}
		cur.end = pending - 1
		spans = append(spans, cur)
		cur = span{start: pending, topic: t}
		pending = -1
	}
	cur.end = len(messages) - 1
	spans = append(spans, cur)

	segments := make([]datatypes.ConversationSegment, len(spans))
	for i, sp := range spans {
		segments[i] = buildSegment(messages[sp.start:sp.end+1], sp.start, sp.topic, opts.FeatureNames)
	}
	assignImportance(segments, messages)
	return segments
}

// SegmentID returns the deterministic ID of a segment.
func SegmentID(start, end int, topic datatypes.Topic) string {
	return uuid.NewSHA1(segmentNamespace, []byte(fmt.Sprintf("%d:%d:%s", start, end, topic))).String()
}

func buildSegment(msgs []datatypes.ChatMessage, start int, topic datatypes.Topic, featureNames []string) datatypes.ConversationSegment {
	end := start + len(msgs) - 1
	var text strings.Builder
	tokens := 0
	for _, m := range msgs {
		text.WriteString(m.Content)
		text.WriteByte('\n')
		tokens += EstimateTokens(m.Content)
	}
	joined := text.String()
	lower := strings.ToLower(joined)

	var mentions []string
	for _, name := range featureNames {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			mentions = appendUnique(mentions, name)
		}
	}

	return datatypes.ConversationSegment{
		ID:         SegmentID(start, end, topic),
		Topic:      topic,
		StartIndex: start,
		EndIndex:   end,
		KeyPoints:  KeyPoints(msgs, MaxKeyPoints),
		ExtractedData: datatypes.SegmentData{
			FeatureMentions: mentions,
			Technologies:    Technologies(joined),
			Roles:           roles(joined),
		},
		Importance:    datatypes.ImportanceLow,
		TokenEstimate: tokens,
	}
}

// KeyPoints extracts up to limit bullet-worthy sentences from msgs.
//
// Decisions come first, then requirement-like sentences, each in message
// order. System messages are ignored.
func KeyPoints(msgs []datatypes.ChatMessage, limit int) []string {
	var decisions, others []string
	for _, m := range msgs {
		if m.Role == datatypes.RoleSystem {
			continue
		}
		for _, s := range Sentences(m.Content) {
			if len(s) < 12 {
				continue
			}
			s = TruncateRunes(s, 200)
			switch {
			case DecisionPattern.MatchString(s):
				decisions = appendUnique(decisions, s)
			case keyPointPattern.MatchString(s):
				others = appendUnique(others, s)
			}
		}
	}

	out := make([]string, 0, limit)
	for _, s := range append(decisions, others...) {
		if len(out) == limit {
			break
		}
		out = appendUnique(out, s)
	}
	return out
}

// assignImportance sets high for confirmed decisions or sole feature
// mentions, medium for segments with two key points or four messages.
func assignImportance(segments []datatypes.ConversationSegment, messages []datatypes.ChatMessage) {
	mentionCount := make(map[string]int)
	for _, s := range segments {
		for _, name := range s.ExtractedData.FeatureMentions {
			mentionCount[strings.ToLower(name)]++
		}
	}

	for i := range segments {
		s := &segments[i]
		switch {
		case hasDecision(messages[s.StartIndex:s.EndIndex+1]) || soleMention(s, mentionCount):
			s.Importance = datatypes.ImportanceHigh
		case len(s.KeyPoints) >= 2 || s.MessageCount() >= 4:
			s.Importance = datatypes.ImportanceMedium
		default:
			s.Importance = datatypes.ImportanceLow
		}
	}
}

func hasDecision(msgs []datatypes.ChatMessage) bool {
	for _, m := range msgs {
		if m.Role != datatypes.RoleSystem && DecisionPattern.MatchString(m.Content) {
			return true
		}
	}
	return false
}

func soleMention(s *datatypes.ConversationSegment, counts map[string]int) bool {
	for _, name := range s.ExtractedData.FeatureMentions {
		if counts[strings.ToLower(name)] == 1 {
			return true
		}
	}
	return false
}
