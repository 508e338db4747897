package service

import (
	"fmt"
	"regexp"
)

const maxNameLength = 128

// Names travel in URLs and blob keys, so the alphabet is kept tight:
// letters, digits, then dot/dash/underscore/slash as separators.
var (
	datasetNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	pointerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)
)

// ValidateDatasetName checks a dataset name. Returns an empty string when
// valid, otherwise a human-readable reason.
func ValidateDatasetName(name string) string {
	if name == "" {
		return "name must not be empty"
	}
	if len(name) > maxNameLength {
		return fmt.Sprintf("name exceeds %d characters", maxNameLength)
	}
	if !datasetNamePattern.MatchString(name) {
		return "name must start with a letter or digit and contain only letters, digits, '.', '_' or '-'"
	}
	return ""
}

// ValidatePointerName checks a branch or tag name. Slashes are allowed for
// grouping (e.g. feature/cleanup) but a name can never be empty or start
// with a separator.
func ValidatePointerName(name string) string {
	if name == "" {
		return "name must not be empty"
	}
	if len(name) > maxNameLength {
		return fmt.Sprintf("name exceeds %d characters", maxNameLength)
	}
	if !pointerNamePattern.MatchString(name) {
		return "name must start with a letter or digit and contain only letters, digits, '.', '_', '-' or '/'"
	}
	return ""
}
