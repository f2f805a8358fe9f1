// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "p1", false},
		{"single char", "x", false},
		{"digits first", "9lives", false},
		{"dots underscores hyphens", "node-1.worker_a", false},
		{"max length", strings.Repeat("a", 64), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"leading dot", ".hidden", true},
		{"leading hyphen", "-flag", true},
		{"embedded space", "p 1", true},
		{"newline", "p1\n", true},
		{"control char", "p\x01", true},
		{"slash", "a/b", true},
		{"unicode", "procé", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeID(t *testing.T) {
	got, err := SanitizeID("  p1\t")
	if err != nil {
		t.Fatalf("SanitizeID failed: %v", err)
	}
	if got != "p1" {
		t.Errorf("expected trimmed id 'p1', got %q", got)
	}

	if _, err := SanitizeID("   "); err == nil {
		t.Error("expected an error for whitespace-only input")
	}

	// Interior whitespace is not trimmed away; it stays invalid.
	if _, err := SanitizeID("p 1"); err == nil {
		t.Error("expected an error for interior whitespace")
	}
}
