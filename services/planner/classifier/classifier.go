// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier tags features with a FeatureDomain.
//
// Classification is deterministic keyword matching over a feature's name and
// description. Always-separate domains are tried first in fixed priority order
// (auth, database, real-time, offline, integration), then the remaining domain
// tables. A feature matching nothing is tagged "feature".
package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.planner.classifier")

// domainKeywords is the ordered rule table. First match wins.
//
// Each keyword is anchored at a word start; keywords that must also end at a
// word boundary carry their own \b.
var domainKeywords = []struct {
	domain   datatypes.FeatureDomain
	keywords []string
}{
	// Always-separate domains, in priority order.
	{datatypes.DomainAuth, []string{
		`log ?in`, `log ?out`, `sign ?up`, `sign ?in`, `sign ?out`, `register`,
		`registration`, `password`, `authenticat`, `auth\b`, `oauth`, `sso\b`,
		`2fa\b`, `two[- ]factor`, `jwt\b`, `magic link`, `session token`,
	}},
	{datatypes.DomainDatabase, []string{
		`database`, `schema`, `migration`, `data model`, `sql\b`, `postgres`,
		`mysql`, `mongo`, `supabase`, `prisma`, `orm\b`, `persist`, `crud\b`,
		`tables? for`,
	}},
	{datatypes.DomainRealTime, []string{
		`real[- ]?time`, `live update`, `live chat`, `websocket`, `presence\b`,
		`collaborat`, `instant messag`, `multiplayer`, `live feed`,
	}},
	{datatypes.DomainOffline, []string{
		`offline`, `service worker`, `pwa\b`, `local[- ]first`, `without internet`,
		`background sync`,
	}},
	{datatypes.DomainIntegration, []string{
		`integrat`, `third[- ]party`, `stripe`, `payment`, `paypal`, `webhook`,
		`external api`, `google maps`, `twilio`, `sendgrid`, `slack\b`, `zapier`,
		`api key`, `calendar sync`,
	}},

	// Remaining domains.
	{datatypes.DomainAdmin, []string{
		`admin`, `moderat`, `back ?office`, `manage users`, `user management`,
		`ban users?`,
	}},
	{datatypes.DomainUIRole, []string{
		`role[- ]based`, `permission`, `access level`, `per[- ]role`,
		`different roles`, `viewer role`, `editor role`,
	}},
	{datatypes.DomainNotification, []string{
		`notif`, `alert`, `reminder`, `email digest`, `push message`,
	}},
	{datatypes.DomainSearch, []string{
		`search`, `filter`, `autocomplete`, `full[- ]text`, `lookup`, `sort by`,
	}},
	{datatypes.DomainAnalytics, []string{
		`analytic`, `report`, `metric`, `chart`, `statistic`, `insight`, `kpi`,
		`tracking`,
	}},
	{datatypes.DomainStorage, []string{
		`upload`, `file storage`, `attachment`, `s3\b`, `blob`, `media library`,
		`avatar`, `image gallery`,
	}},
	{datatypes.DomainTesting, []string{
		`tests?\b`, `testing`, `e2e\b`, `qa\b`, `test coverage`,
	}},
	{datatypes.DomainPolish, []string{
		`animation`, `dark mode`, `theme`, `polish`, `accessib`, `a11y\b`,
		`responsive`, `seo\b`, `onboarding tour`, `micro[- ]interaction`,
	}},
	{datatypes.DomainUIComponent, []string{
		`component`, `modal`, `navbar`, `nav ?bar`, `sidebar`, `layout`, `forms?\b`,
		`button`, `card`, `landing page`, `dashboard`, `widget`, `carousel`,
	}},
	{datatypes.DomainCoreEntity, []string{
		`profile`, `product`, `catalog`, `inventory`, `listing`, `posts?\b`,
		`items?\b`, `tasks?\b`, `projects?\b`, `orders?\b`, `booking`, `events?\b`,
		`recipe`, `notes?\b`, `entity`, `entities`,
	}},
}

// Classifier assigns a FeatureDomain to features.
//
// Thread Safety: Safe for concurrent use. Compiled patterns are immutable and
// no match state is retained between calls.
type Classifier struct {
	rules []rule
}

type rule struct {
	domain  datatypes.FeatureDomain
	pattern *regexp.Regexp
}

// New compiles the keyword tables.
func New() *Classifier {
	rules := make([]rule, 0, len(domainKeywords))
	for _, dk := range domainKeywords {
		rules = append(rules, rule{
			domain:  dk.domain,
			pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(dk.keywords, "|") + `)`),
		})
	}
	return &Classifier{rules: rules}
}

// Classify returns the domain of a feature.
//
// # Description
//
// Matches the lowercased name and description against the ordered rule table.
// Ambiguity ("login dashboard") is resolved by order and is not an error.
//
// # Outputs
//
//   - datatypes.FeatureDomain: Exactly one domain; DomainFeature if nothing matches.
func (c *Classifier) Classify(f datatypes.Feature) datatypes.FeatureDomain {
	return c.ClassifyText(f.Text())
}

// ClassifyText classifies raw text with the feature rule table.
func (c *Classifier) ClassifyText(text string) datatypes.FeatureDomain {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		if r.pattern.MatchString(text) {
			return r.domain
		}
	}
	return datatypes.DomainFeature
}

// ClassifyAll returns copies of features with Domain assigned.
//
// The input slice is not modified.
func (c *Classifier) ClassifyAll(ctx context.Context, features []datatypes.Feature) []datatypes.Feature {
	_, span := tracer.Start(ctx, "classifier.Classifier.ClassifyAll",
		trace.WithAttributes(attribute.Int("classifier.features", len(features))))
	defer span.End()

	out := make([]datatypes.Feature, len(features))
	counts := make(map[datatypes.FeatureDomain]int)
	for i, f := range features {
		f.Domain = c.Classify(f)
		counts[f.Domain]++
		out[i] = f
	}
	span.SetAttributes(attribute.Int("classifier.domains", len(counts)))
	return out
}

// Matches reports whether text hits the keyword table of domain d.
//
// Used by the dependency resolver to detect features that need a database or
// auth without being classified into those domains.
func (c *Classifier) Matches(d datatypes.FeatureDomain, text string) bool {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		if r.domain == d {
			return r.pattern.MatchString(text)
		}
	}
	return false
}
