// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation analyzes the wizard conversation that produced an app
// concept.
//
// # Description
//
// The package provides four pure functions over an ordered message log:
//
//   - Segment partitions the log into topic-tagged segments.
//   - ExtractStructured mines feature, workflow and technical-spec records.
//   - CompressConversation bounds the log by summarizing older messages.
//   - EstimateTokens is the shared chars/4 token proxy.
//
// # Thread Safety
//
// Every pattern is compiled once at package init and only used through
// stateless methods (MatchString, FindAllString...). No match state survives
// a call, so all functions are safe for concurrent use.
package conversation

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// topicKeywords lists the scoring keywords of every non-general topic.
var topicKeywords = map[datatypes.Topic][]string{
	datatypes.TopicAuthentication: {
		`log ?ins?`, `log ?out`, `sign ?ups?`, `sign ?in`, `passwords?`, `auth\w*`,
		`oauth`, `sso`, `2fa`, `two[- ]factor`, `sessions?`, `permissions?`, `roles?`,
		`account`,
	},
	datatypes.TopicDataModel: {
		`database`, `schema`, `tables?`, `fields?`, `columns?`, `relations?\w*`,
		`entit(?:y|ies)`, `data ?model`, `records?`, `migrations?`, `postgres\w*`,
		`sql`, `mongo\w*`, `supabase`, `store (?:the )?data`, `foreign key`,
	},
	datatypes.TopicIntegrations: {
		`integrat\w*`, `apis?`, `stripe`, `payments?`, `webhooks?`, `third[- ]party`,
		`twilio`, `sendgrid`, `slack`, `zapier`, `google maps`, `calendar sync`,
		`import`, `export`,
	},
	datatypes.TopicWorkflows: {
		`workflows?`, `steps?`, `process`, `flows?`, `approv\w*`, `journey`,
		`then`, `after that`, `first`, `finally`, `checkout`,
	},
	datatypes.TopicUIDesign: {
		`design`, `colou?rs?`, `layout`, `buttons?`, `screens?`, `pages?`, `theme`,
		`fonts?`, `dark mode`, `nav ?bar`, `sidebar`, `modal`, `ui`, `ux`, `styl\w*`,
		`responsive`, `mobile`, `icons?`, `animations?`, `rounded`, `minimal\w*`,
	},
	datatypes.TopicFeatures: {
		`features?`, `users? (?:can|should|will)`, `able to`, `functionality`,
		`ability`, `lets? (?:users|people|me)`, `support for`, `must have`,
		`nice to have`,
	},
	datatypes.TopicTechnical: {
		`react`, `next\.?js`, `node`, `typescript`, `performance`, `cach\w*`,
		`framework`, `librar(?:y|ies)`, `websockets?`, `real[- ]?time`, `scal\w*`,
		`architecture`, `tech stack`, `backend`, `frontend`, `server`,
	},
	datatypes.TopicDeployment: {
		`deploy\w*`, `hosting`, `hosted`, `domain name`, `vercel`, `aws`, `docker`,
		`ci`, `production`, `launch`, `staging`, `netlify`,
	},
	datatypes.TopicAppOverview: {
		`app`, `application`, `idea`, `platform`, `purpose`, `goals?`, `audience`,
		`target users`, `build (?:an?|my)`, `startup`, `mvp`, `concept`,
	},
}

// topicPatterns holds one compiled pattern per topic.
var topicPatterns = func() map[datatypes.Topic]*regexp.Regexp {
	m := make(map[datatypes.Topic]*regexp.Regexp, len(topicKeywords))
	for topic, kws := range topicKeywords {
		m[topic] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(kws, "|") + `)\b`)
	}
	return m
}()

// ClassifyMessage labels one message with a topic by keyword scoring.
//
// # Description
//
// Each topic scores one point per keyword occurrence. The highest score wins;
// ties are broken by datatypes.AllTopics order. A message with no hits is
// TopicGeneral.
func ClassifyMessage(content string) datatypes.Topic {
	best, bestScore := datatypes.TopicGeneral, 0
	for _, topic := range datatypes.AllTopics {
		re, ok := topicPatterns[topic]
		if !ok {
			continue
		}
		score := len(re.FindAllStringIndex(content, -1))
		if score > bestScore {
			best, bestScore = topic, score
		}
	}
	return best
}

// TopicScores returns the keyword score of every non-general topic.
func TopicScores(content string) map[datatypes.Topic]int {
	scores := make(map[datatypes.Topic]int, len(topicPatterns))
	for topic, re := range topicPatterns {
		if n := len(re.FindAllStringIndex(content, -1)); n > 0 {
			scores[topic] = n
		}
	}
	return scores
}
