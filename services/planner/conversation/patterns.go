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
	"regexp"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// Shared Patterns
// =============================================================================

var (
	// sentencePattern splits text into sentences and list lines. Terminators
	// followed by a non-space ("Next.js", "v1.2") do not end a sentence.
	sentencePattern = regexp.MustCompile(`(?:[^.!?\n]|[.!?][^\s.!?])+[.!?]*`)

	// listMarkerPattern matches a leading bullet or "1." / "2)" marker.
	listMarkerPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

	// DecisionPattern marks a confirmed decision. Segment importance and phase
	// context decision lists both read it.
	DecisionPattern = regexp.MustCompile(`(?i)\b(?:let'?s (?:go with|use|do)|we'?ll (?:use|go with)|decided|confirmed|sounds good|agreed|go with|final(?:ly)? decid\w*|settled on|yes,? (?:let'?s|that works|please))\b`)

	// keyPointPattern marks a sentence worth keeping as a bullet.
	keyPointPattern = regexp.MustCompile(`(?i)\b(?:should|must|need(?:s|ed)? to|want(?:s)? to|will|require[sd]?|let'?s|we'?ll|decided|go with|use|important|has to|have to)\b`)

	// rolePattern finds user roles.
	rolePattern = regexp.MustCompile(`(?i)\b(admin(?:istrator)?|manager|customer|guest|editor|viewer|owner|member|teacher|student|driver|vendor|seller|buyer|moderator|patient|doctor|coach|instructor)s?\b`)

	// technologyPattern finds named technologies.
	technologyPattern = regexp.MustCompile(`(?i)\b(react(?: native)?|next\.?js|vue|svelte|angular|node(?:\.?js)?|express|typescript|tailwind|postgres(?:ql)?|mysql|sqlite|mongo(?:db)?|supabase|firebase|redis|graphql|prisma|docker|aws|s3|vercel|netlify|stripe|paypal|twilio|sendgrid|openai|websockets?|socket\.io|oauth|jwt|google maps|cloudinary|algolia|elasticsearch)\b`)
)

// canonicalTech maps lowercase technology matches to display names.
var canonicalTech = map[string]string{
	"react": "React", "react native": "React Native", "nextjs": "Next.js", "next.js": "Next.js",
	"vue": "Vue", "svelte": "Svelte", "angular": "Angular", "node": "Node.js", "nodejs": "Node.js",
	"node.js": "Node.js", "express": "Express", "typescript": "TypeScript", "tailwind": "Tailwind",
	"postgres": "PostgreSQL", "postgresql": "PostgreSQL", "mysql": "MySQL", "sqlite": "SQLite",
	"mongo": "MongoDB", "mongodb": "MongoDB", "supabase": "Supabase", "firebase": "Firebase",
	"redis": "Redis", "graphql": "GraphQL", "prisma": "Prisma", "docker": "Docker", "aws": "AWS",
	"s3": "S3", "vercel": "Vercel", "netlify": "Netlify", "stripe": "Stripe", "paypal": "PayPal",
	"twilio": "Twilio", "sendgrid": "SendGrid", "openai": "OpenAI", "websocket": "WebSocket",
	"websockets": "WebSocket", "socket.io": "Socket.IO", "oauth": "OAuth", "jwt": "JWT",
	"google maps": "Google Maps", "cloudinary": "Cloudinary", "algolia": "Algolia",
	"elasticsearch": "Elasticsearch",
}

// =============================================================================
// Helpers
// =============================================================================

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(listMarkerPattern.ReplaceAllString(s, ""))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Technologies returns the distinct technologies named in text, in order of
// first appearance.
func Technologies(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range technologyPattern.FindAllString(text, -1) {
		name, ok := canonicalTech[strings.ToLower(m)]
		if !ok {
			name = m
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// roles returns the distinct singular lowercase roles named in text.
func roles(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range rolePattern.FindAllStringSubmatch(text, -1) {
		r := strings.ToLower(m[1])
		if r == "administrator" {
			r = "admin"
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// TruncateRunes cuts s to at most n runes, appending an ellipsis when cut.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}

// appendUnique appends v to list unless an equal-fold entry exists.
func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return list
		}
	}
	return append(list, v)
}
