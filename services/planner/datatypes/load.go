// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConceptFile reads an AppConcept from a .json, .yaml or .yml file.
//
// The concept is structurally validated; the "at least one feature" rule is
// left to the plan generator.
func LoadConceptFile(path string) (*AppConcept, error) {
	var c AppConcept
	if err := decodeFile(path, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// LoadConversationFile reads an ordered message log from a .json, .yaml or
// .yml file holding a list of messages.
func LoadConversationFile(path string) ([]ChatMessage, error) {
	var msgs []ChatMessage
	if err := decodeFile(path, &msgs); err != nil {
		return nil, err
	}
	for i, m := range msgs {
		if err := plannerValidate.Struct(m); err != nil {
			return nil, fmt.Errorf("%s: message %d: %s", path, i, describeValidation(err))
		}
	}
	return msgs, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, out)
	default:
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
