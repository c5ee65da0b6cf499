package whitelist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nao1215/phishguard/internal/config"
)

// Whitelist is an immutable set of lowercase substring patterns.
// It is safe for concurrent use.
type Whitelist struct {
	entries []string
}

// New builds a Whitelist from raw entries. Entries are trimmed and lowercased;
// empty entries are dropped because they would match every URL.
func New(entries ...string) *Whitelist {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return &Whitelist{entries: out}
}

// Load reads one entry per line from path, plus any extra entries.
// Blank lines and lines starting with '#' are ignored. An empty path or a
// missing file yields a whitelist of only the extra entries. Any other
// read failure wraps config.ErrConfiguration.
func Load(path string, extra ...string) (*Whitelist, error) {
	if path == "" {
		return New(extra...), nil
	}

	f, err := os.Open(path) //nolint:gosec // Whitelist path comes from trusted configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(extra...), nil
		}
		return nil, fmt.Errorf("%w: open whitelist: %w", config.ErrConfiguration, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	entries, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read whitelist %s: %w", config.ErrConfiguration, path, err)
	}
	return New(append(entries, extra...)...), nil
}

func parse(r io.Reader) ([]string, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, scanner.Err()
}

// Match reports whether url contains any entry, case-insensitively, and
// returns the first matching entry.
func (w *Whitelist) Match(url string) (string, bool) {
	if w == nil {
		return "", false
	}
	lower := strings.ToLower(url)
	for _, e := range w.entries {
		if strings.Contains(lower, e) {
			return e, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.entries)
}

// Entries returns a copy of the entries in sorted order.
func (w *Whitelist) Entries() []string {
	if w == nil {
		return nil
	}
	return append([]string(nil), w.entries...)
}
