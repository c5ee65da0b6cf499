package report

import (
	"io"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/phishguard/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a verdict history.
	// Returns the number of bytes written and any error encountered.
	Write(history *History) (int, error)

	// WriteRecord outputs one verdict with its feature vector.
	WriteRecord(rec *model.VerdictRecord) (int, error)
}

// History is a list of verdicts with summary counts.
type History struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Phishing    int                   `json:"phishing"`
	Benign      int                   `json:"benign"`
	Records     []model.VerdictRecord `json:"records"`
}

// NewHistory creates a History over records, counting verdicts.
func NewHistory(records []model.VerdictRecord) *History {
	h := &History{
		GeneratedAt: time.Now(),
		Records:     records,
	}
	if h.Records == nil {
		h.Records = make([]model.VerdictRecord, 0)
	}
	for _, rec := range records {
		if rec.Verdict.IsPhishing() {
			h.Phishing++
		} else {
			h.Benign++
		}
	}
	return h
}

// Total returns the number of records.
func (h *History) Total() int {
	return len(h.Records)
}

// MultiWriter writes to multiple Writers in order and stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the history to all configured Writers.
func (m *MultiWriter) Write(history *History) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(history)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRecord outputs the record to all configured Writers.
func (m *MultiWriter) WriteRecord(rec *model.VerdictRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRecord(rec)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// verdictLabel returns "Phishing" or "Benign".
// A Caser is stateful, so each call gets its own.
func verdictLabel(v model.Verdict) string {
	return cases.Title(language.English).String(v.String())
}

const timeLayout = "2006-01-02 15:04:05 MST"

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
