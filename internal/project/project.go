// Package project resolves project directories and validates identifiers that end up on a command line.
package project

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// ResolveDir returns the absolute form of dir, falling back to def when dir is empty.
// The directory must exist.
func ResolveDir(dir, def string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = def
	}
	if dir == "" {
		return "", apperrors.Precondition("Project directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.Preconditionf("Invalid project directory: %s", dir)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", apperrors.Preconditionf("Directory not found: %s", dir)
	}
	return abs, nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var (
	projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-:.]{0,99}$`)
	namePattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)
	secretKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)
)

// ValidateProjectID rejects IDs that are not plain Firebase project IDs.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return apperrors.Preconditionf("Invalid project ID: %q", id)
	}
	return nil
}

// ValidateName rejects deploy targets, services and script names containing shell metacharacters.
func ValidateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return apperrors.Preconditionf("Invalid %s: %q", kind, name)
	}
	return nil
}

// ValidateSecretKey checks a Secret Manager secret ID.
func ValidateSecretKey(key string) error {
	if !secretKeyPattern.MatchString(key) {
		return apperrors.Preconditionf("Invalid secret name: %q", key)
	}
	return nil
}
