package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nao1215/phishguard/internal/model"
)

// VerdictLog appends one line per phishing verdict to a text file:
//
//	Mon Jan  2 15:04:05 2006 | https://example.test/login | PHISHING
//
// URLs are written verbatim, without log redaction.
type VerdictLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewVerdictLog creates a VerdictLog writing to path. The file and its
// directory are created on first append.
func NewVerdictLog(path string) *VerdictLog {
	return &VerdictLog{path: path, now: time.Now}
}

// Path returns the file path.
func (v *VerdictLog) Path() string {
	return v.path
}

// Append writes one line.
func (v *VerdictLog) Append(url string, verdict model.Verdict) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if dir := filepath.Dir(v.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create verdict log directory: %w", err)
		}
	}

	f, err := os.OpenFile(v.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path comes from trusted configuration
	if err != nil {
		return fmt.Errorf("failed to open verdict log: %w", err)
	}

	line := fmt.Sprintf("%s | %s | %s\n", v.now().Format(time.ANSIC), url, upper(verdict))
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write verdict log: %w", err)
	}
	return f.Close()
}

func upper(v model.Verdict) string {
	if v.IsPhishing() {
		return "PHISHING"
	}
	return "BENIGN"
}
