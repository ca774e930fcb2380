// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package redact masks secrets and personal data in conversation text before
// it leaves the process.
//
// # Description
//
// A Policy is a set of regular expressions grouped into prioritized
// classifications. The default policy is embedded in the binary so the rules
// travel with the executable. Embedder applies a Policy to every text sent to
// an embedding provider, so the provider never sees a raw credential.
package redact

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassPublic is reported by Classify when nothing matches.
const ClassPublic = "public"

//go:embed patterns.yaml
var defaultPatterns []byte

// Policy classifies and masks sensitive text.
//
// # Thread Safety
//
// Immutable after construction and safe for concurrent use.
type Policy struct {
	classifications []Classification
}

// Default returns the embedded policy.
func Default() (*Policy, error) {
	return Parse(defaultPatterns)
}

// Parse builds a Policy from YAML in the embedded file's layout.
//
// # Outputs
//
//   - *Policy: Classifications sorted by descending priority.
//   - error: Non-nil on malformed YAML, an unknown confidence or an invalid
//     regex.
func Parse(data []byte) (*Policy, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the redaction policy: %w", err)
	}
	if err := f.compile(); err != nil {
		return nil, err
	}
	f.sortByPriority()
	return &Policy{classifications: f.Classifications}, nil
}

// Classify returns the name of the highest-priority classification matching
// text, or ClassPublic.
func (p *Policy) Classify(text string) string {
	for _, c := range p.classifications {
		for _, pat := range c.Patterns {
			if pat.compiled.MatchString(text) {
				return c.Name
			}
		}
	}
	return ClassPublic
}

// Scan reports every match in text, line by line.
func (p *Policy) Scan(text string) []Finding {
	var findings []Finding
	for lineNum, line := range strings.Split(text, "\n") {
		for _, c := range p.classifications {
			for _, pat := range c.Patterns {
				for _, match := range pat.compiled.FindAllString(line, -1) {
					findings = append(findings, Finding{
						Line:           lineNum + 1,
						Match:          strings.TrimSpace(match),
						Classification: c.Name,
						PatternID:      pat.ID,
						Description:    pat.Description,
						Confidence:     pat.Confidence,
					})
				}
			}
		}
	}
	return findings
}

// Redact replaces every match with "[REDACTED:<classification>]".
//
// # Description
//
// Classifications are applied in priority order, so text already masked as
// a secret is not counted again as personal data.
//
// # Outputs
//
//   - string: The masked text. Equal to text when nothing matched.
//   - map[string]int: Match counts by classification. Nil when nothing
//     matched.
func (p *Policy) Redact(text string) (string, map[string]int) {
	var counts map[string]int
	for _, c := range p.classifications {
		marker := "[REDACTED:" + c.Name + "]"
		for _, pat := range c.Patterns {
			text = pat.compiled.ReplaceAllStringFunc(text, func(string) string {
				if counts == nil {
					counts = make(map[string]int)
				}
				counts[c.Name]++
				return marker
			})
		}
	}
	return text, counts
}
