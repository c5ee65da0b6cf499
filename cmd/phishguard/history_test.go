package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/phishguard/internal/database"
	"github.com/nao1215/phishguard/internal/model"
)

// seedHistory creates a verdict database in a temporary directory.
func seedHistory(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	now := time.Now()
	records := []model.VerdictRecord{
		{Timestamp: now.Add(-48 * time.Hour), URL: "https://old.example/", Verdict: model.VerdictBenign, Score: 0.1},
		{Timestamp: now.Add(-time.Hour), URL: "https://news.example/", Verdict: model.VerdictBenign, Score: 0.2},
		{Timestamp: now.Add(-time.Minute), URL: "http://203.0.113.7/login", Verdict: model.VerdictPhishing, Score: 0.97, Closed: true},
	}
	for i := range records {
		if _, err := db.SaveVerdict(context.Background(), &records[i]); err != nil {
			t.Fatalf("SaveVerdict() error = %v", err)
		}
	}
	return dir
}

type historyJSON struct {
	Version string `json:"version"`
	History struct {
		Phishing int `json:"phishing"`
		Benign   int `json:"benign"`
		Records  []struct {
			URL     string `json:"url"`
			Verdict string `json:"verdict"`
		} `json:"records"`
	} `json:"history"`
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", writeConfig(t, "")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	// Subtests share one database file and run sequentially.
	dir := seedHistory(t)

	tests := []struct {
		name     string
		args     []string
		wantURLs []string
	}{
		{
			name:     "newest first",
			args:     []string{"--json"},
			wantURLs: []string{"http://203.0.113.7/login", "https://news.example/", "https://old.example/"},
		},
		{
			name:     "phishing only",
			args:     []string{"--json", "--phishing-only"},
			wantURLs: []string{"http://203.0.113.7/login"},
		},
		{
			name:     "limit",
			args:     []string{"--json", "-n", "1"},
			wantURLs: []string{"http://203.0.113.7/login"},
		},
		{
			name:     "since",
			args:     []string{"--json", "--since", "24h"},
			wantURLs: []string{"http://203.0.113.7/login", "https://news.example/"},
		},
		{
			name:     "single url",
			args:     []string{"--json", "https://old.example/"},
			wantURLs: []string{"https://old.example/"},
		},
		{
			name:     "latest verdict of a url",
			args:     []string{"--json", "--latest", "https://news.example/"},
			wantURLs: []string{"https://news.example/"},
		},
		{
			name:     "latest verdict of an unknown url",
			args:     []string{"--json", "--latest", "https://never.example/"},
			wantURLs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runHistory(t, append([]string{"--db-dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			var got historyJSON
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", out, err)
			}
			if got.Version == "" {
				t.Error("expected version in JSON report")
			}
			if len(got.History.Records) != len(tt.wantURLs) {
				t.Fatalf("got %d records, want %d", len(got.History.Records), len(tt.wantURLs))
			}
			for i, want := range tt.wantURLs {
				if got.History.Records[i].URL != want {
					t.Errorf("record %d = %q, want %q", i, got.History.Records[i].URL, want)
				}
			}
		})
	}

	t.Run("markdown to file", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "reports", "history.md")
		if _, err := runHistory(t, "--db-dir", dir, "--markdown", "-o", outPath); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		content, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(content), "203.0.113.7") {
			t.Errorf("expected phishing URL in report, got %q", content)
		}
	})

	t.Run("distinct urls", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir, "--urls")
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		want := "http://203.0.113.7/login\nhttps://news.example/\nhttps://old.example/\n"
		if out != want {
			t.Errorf("got %q, want %q", out, want)
		}
	})

	t.Run("text output", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !strings.Contains(out, "news.example") {
			t.Errorf("unexpected output %q", out)
		}
	})
}

func TestRunHistoryCmdPrune(t *testing.T) {
	t.Parallel()

	dir := seedHistory(t)
	out, err := runHistory(t, "--db-dir", dir, "--json", "--prune", "24h")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var got historyJSON
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	for _, rec := range got.History.Records {
		if rec.URL == "https://old.example/" {
			t.Error("expected the old verdict to be pruned")
		}
	}
	if len(got.History.Records) != 2 {
		t.Errorf("got %d records, want 2", len(got.History.Records))
	}
}

func TestRunHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		_, err := runHistory(t, "--db-dir", dir)
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Execute() error = %v, want ErrNotFound", err)
		}
		if _, statErr := os.Stat(filepath.Join(dir, database.FileName)); !os.IsNotExist(statErr) {
			t.Error("history must not create a database")
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", t.TempDir(), "-n", "-1"); err == nil {
			t.Error("expected error for negative limit")
		}
	})

	t.Run("latest without url", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", t.TempDir(), "--latest"); err == nil {
			t.Error("expected error for --latest without a URL")
		}
	})

	t.Run("urls with url argument", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "--db-dir", t.TempDir(), "--urls", "https://a.example/"); err == nil {
			t.Error("expected error for --urls with a URL")
		}
	})

	t.Run("too many arguments", func(t *testing.T) {
		t.Parallel()
		if _, err := runHistory(t, "a", "b"); err == nil {
			t.Error("expected error for two URLs")
		}
	})
}
