// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for user-supplied
// identifiers.
//
// Entity IDs arrive from HTTP clients and end up as map keys and log
// fields. Validating them here keeps control characters, whitespace, and
// unbounded strings out of the registry and the logs.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// idPattern matches valid process and resource identifiers.
// Allows: letters, digits, then dots, underscores, hyphens.
// Max length: 64 characters.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateID validates a process or resource identifier.
//
// Valid IDs:
//   - 1-64 characters
//   - start with a letter or digit
//   - contain only letters, digits, dots, underscores, hyphens
//
// Returns an error if the ID is invalid.
//
// Example:
//
//	if err := validation.ValidateID(pid); err != nil {
//	    return fmt.Errorf("invalid process id: %w", err)
//	}
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid id format: %q (must be 1-64 alphanumeric chars, dots, underscores, or hyphens)", id)
	}

	return nil
}

// SanitizeID trims surrounding whitespace and validates the result.
// Returns the trimmed ID if valid, or an error if invalid.
func SanitizeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateID(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
