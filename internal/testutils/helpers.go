// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/stretchr/testify/require"
)

// WriteFile creates name with content in a fresh temporary directory and returns
// its absolute path. It fails the test immediately on error.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join(t.TempDir(), name))
	require.NoError(t, err, "Failed to get absolute path for temp file")
	require.NoError(t, os.WriteFile(absPath, []byte(content), 0o644), "Failed to write %s", name)
	return absPath
}

// Inputs returns a complete set of session inputs.
func Inputs() domain.Inputs {
	return domain.Inputs{
		Material:        "Quarterly numbers",
		Requirements:    "One paragraph",
		ScoringCriteria: "Accuracy",
	}
}
