package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// testArtifact is the classifier artifact shared with the classifier tests.
var testArtifact = filepath.Join("..", "..", "internal", "classifier", "testdata", "model.json")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeConfig writes a configuration file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".phishguard")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
