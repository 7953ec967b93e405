// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for user-provided identifiers.
//
// Document and experiment names end up in storage keys and file paths, so
// they are validated against an allow-list pattern before use. This prevents
// path traversal and keeps storage keys predictable.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches valid document and experiment names.
// Allows: lowercase letters, digits, underscores, hyphens. Must start with a
// letter or digit. Max length: 64 characters.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateName validates a document or experiment name for safe use as a
// storage key.
//
// Valid names:
//   - 1-64 characters
//   - lowercase letters a-z, digits 0-9
//   - underscores and hyphens after the first character
//
// Returns an error if the name is invalid.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid name format: %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", name)
	}
	return nil
}

// SanitizeName normalizes and validates a name. Returns the lowercase
// trimmed name if valid, or an error if invalid.
func SanitizeName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
