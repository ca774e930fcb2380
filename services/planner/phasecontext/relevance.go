// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phasecontext

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
)

// =============================================================================
// Per-Domain Tables
// =============================================================================

// relevantTopics maps each phase domain to the segment topics it reads.
var relevantTopics = map[datatypes.FeatureDomain][]datatypes.Topic{
	datatypes.DomainSetup:        {datatypes.TopicAppOverview, datatypes.TopicTechnical, datatypes.TopicDeployment},
	datatypes.DomainDatabase:     {datatypes.TopicDataModel, datatypes.TopicTechnical},
	datatypes.DomainAuth:         {datatypes.TopicAuthentication, datatypes.TopicTechnical},
	datatypes.DomainCoreEntity:   {datatypes.TopicDataModel, datatypes.TopicFeatures},
	datatypes.DomainFeature:      {datatypes.TopicFeatures, datatypes.TopicWorkflows},
	datatypes.DomainUIComponent:  {datatypes.TopicUIDesign, datatypes.TopicFeatures},
	datatypes.DomainIntegration:  {datatypes.TopicIntegrations, datatypes.TopicTechnical},
	datatypes.DomainRealTime:     {datatypes.TopicTechnical, datatypes.TopicFeatures},
	datatypes.DomainStorage:      {datatypes.TopicDataModel, datatypes.TopicTechnical},
	datatypes.DomainNotification: {datatypes.TopicFeatures, datatypes.TopicWorkflows, datatypes.TopicIntegrations},
	datatypes.DomainOffline:      {datatypes.TopicTechnical, datatypes.TopicDataModel},
	datatypes.DomainSearch:       {datatypes.TopicFeatures, datatypes.TopicDataModel},
	datatypes.DomainAnalytics:    {datatypes.TopicFeatures, datatypes.TopicDataModel},
	datatypes.DomainAdmin:        {datatypes.TopicWorkflows, datatypes.TopicAuthentication, datatypes.TopicFeatures},
	datatypes.DomainUIRole:       {datatypes.TopicAuthentication, datatypes.TopicWorkflows, datatypes.TopicUIDesign},
	datatypes.DomainTesting:      {datatypes.TopicWorkflows, datatypes.TopicTechnical},
	datatypes.DomainPolish:       {datatypes.TopicUIDesign, datatypes.TopicAppOverview},
}

// domainQueries is the canned semantic-search query per domain.
var domainQueries = map[datatypes.FeatureDomain]string{
	datatypes.DomainSetup:        "project setup, tech stack, framework choice, hosting and deployment",
	datatypes.DomainDatabase:     "database schema, tables, data model, relationships and stored records",
	datatypes.DomainAuth:         "user login, sign up, passwords, sessions and authentication providers",
	datatypes.DomainCoreEntity:   "main entities of the app, their fields and how users create and edit them",
	datatypes.DomainFeature:      "features users want and what each feature should do",
	datatypes.DomainUIComponent:  "screens, layout, components, buttons, forms and visual design",
	datatypes.DomainIntegration:  "third-party services, external APIs, payments and webhooks",
	datatypes.DomainRealTime:     "live updates, real-time sync, chat and websockets",
	datatypes.DomainStorage:      "file uploads, images, attachments and media storage",
	datatypes.DomainNotification: "notifications, reminders, emails and alerts sent to users",
	datatypes.DomainOffline:      "offline mode, local caching and syncing when the connection returns",
	datatypes.DomainSearch:       "searching, filtering and sorting content",
	datatypes.DomainAnalytics:    "reports, charts, statistics and usage analytics",
	datatypes.DomainAdmin:        "admin panel, moderation and managing users",
	datatypes.DomainUIRole:       "user roles, permissions and what each role can see",
	datatypes.DomainTesting:      "testing, quality checks and expected behaviour",
	datatypes.DomainPolish:       "look and feel, animations, theming, accessibility and responsiveness",
}

// domainKeywordLists filters structured records per domain. Each keyword is
// anchored at a word start.
var domainKeywordLists = map[datatypes.FeatureDomain][]string{
	datatypes.DomainSetup:        {`setup`, `scaffold`, `framework`, `stack`, `deploy`, `hosting`, `project structure`},
	datatypes.DomainDatabase:     {`database`, `schema`, `tables?\b`, `data model`, `records?\b`, `persist`, `sql\b`, `postgres`, `mysql`, `mongo`, `supabase`, `prisma`, `migration`, `relation`},
	datatypes.DomainAuth:         {`log ?in`, `sign ?up`, `sign ?in`, `password`, `authenticat`, `auth\b`, `oauth`, `sessions?\b`, `accounts?\b`, `register`},
	datatypes.DomainCoreEntity:   {`create`, `edit`, `delete`, `entity`, `entities`, `profile`, `items?\b`, `fields?\b`, `list`},
	datatypes.DomainFeature:      {`feature`, `users? can`, `able to`, `want to`, `should`},
	datatypes.DomainUIComponent:  {`layout`, `screen`, `page`, `button`, `modal`, `form`, `cards?\b`, `grid`, `sidebar`, `nav`, `dashboard`, `component`},
	datatypes.DomainIntegration:  {`integrat`, `api\b`, `stripe`, `payment`, `webhook`, `third[- ]party`, `external`},
	datatypes.DomainRealTime:     {`real[- ]?time`, `live`, `websocket`, `instant`, `sync`, `chat`},
	datatypes.DomainStorage:      {`upload`, `files?\b`, `images?\b`, `photos?\b`, `attachment`, `media`, `s3\b`, `storage`},
	datatypes.DomainNotification: {`notif`, `remind`, `email`, `alert`, `push`},
	datatypes.DomainOffline:      {`offline`, `cache`, `local`, `sync`, `connection`},
	datatypes.DomainSearch:       {`search`, `filter`, `sort`, `find`, `lookup`},
	datatypes.DomainAnalytics:    {`analytic`, `report`, `chart`, `statistic`, `metric`, `insight`, `dashboard`},
	datatypes.DomainAdmin:        {`admin`, `moderat`, `manage`, `ban\b`, `approve`},
	datatypes.DomainUIRole:       {`roles?\b`, `permission`, `access`, `admin`, `viewer`, `editor`},
	datatypes.DomainTesting:      {`test`, `verify`, `expect`, `valid`, `quality`},
	datatypes.DomainPolish:       {`animation`, `theme`, `dark mode`, `accessib`, `responsive`, `polish`, `color`},
}

// specCategories maps a phase domain to the technical spec category that is
// always relevant to it.
var specCategories = map[datatypes.FeatureDomain]datatypes.SpecCategory{
	datatypes.DomainDatabase:    datatypes.SpecDatabase,
	datatypes.DomainAuth:        datatypes.SpecAuth,
	datatypes.DomainIntegration: datatypes.SpecAPI,
	datatypes.DomainRealTime:    datatypes.SpecRealtime,
	datatypes.DomainStorage:     datatypes.SpecStorage,
}

// domainPatterns holds the compiled keyword lists.
var domainPatterns = compileDomainPatterns()

func compileDomainPatterns() map[datatypes.FeatureDomain]*regexp.Regexp {
	out := make(map[datatypes.FeatureDomain]*regexp.Regexp, len(domainKeywordLists))
	for d, kws := range domainKeywordLists {
		out[d] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(kws, "|") + `)`)
	}
	return out
}

// RelevantTopics returns the topics a phase of domain d reads. Unknown
// domains read nothing.
func RelevantTopics(d datatypes.FeatureDomain) []datatypes.Topic {
	return append([]datatypes.Topic(nil), relevantTopics[d]...)
}

// Query returns the canned semantic query for domain d.
func Query(d datatypes.FeatureDomain) string {
	return domainQueries[d]
}

// MatchesDomain reports whether text hits the keyword list of domain d.
func MatchesDomain(d datatypes.FeatureDomain, text string) bool {
	p, ok := domainPatterns[d]
	return ok && p.MatchString(text)
}

// =============================================================================
// Context List Patterns
// =============================================================================

var (
	requirementPattern = regexp.MustCompile(`(?i)\b(?:should|must|needs? to|has to|have to|want(?:s)? to|requires?|able to)\b`)
	technicalPattern   = regexp.MustCompile(`(?i)\b(?:api|endpoint|database|schema|library|framework|sdk|server|backend|frontend|deploy\w*|hosting|cache|queue|websockets?|typescript|react|next\.?js|node|postgres\w*|supabase|firebase|prisma|redis|graphql|docker)\b`)
	validationPattern  = regexp.MustCompile(`(?i)\b(?:at least|at most|no more than|maximum|minimum|max|min|required|mandatory|must be|cannot be|can'?t be|valid(?:ate|ation)?|unique|format|characters?|between \d+ and \d+)\b`)
	uiPattern          = regexp.MustCompile(`(?i)\b(?:layout|screens?|pages?|buttons?|modal|forms?|cards?|grid|sidebar|navbar|nav bar|header|footer|colou?rs?|theme|dark mode|fonts?|icons?|tabs?|dashboard|responsive|mobile)\b`)
)
