// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix is prepended to every generated job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid v4 without dashes>
// Example: job-9b2f0c1e6d3a4f5b8c7d6e5f4a3b2c1d
func Generate() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
