package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/phishguard/internal/model"
)

// SimpleWriter outputs plain text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the feature vector of every record.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with feature vectors.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the history.
func (w *SimpleWriter) Write(history *History) (int, error) {
	var sb strings.Builder

	w.writeBanner(&sb, "PHISHGUARD VERDICT HISTORY")

	sb.WriteString(fmt.Sprintf("Generated: %s\n", history.GeneratedAt.Format(timeLayout)))
	sb.WriteString(fmt.Sprintf("Records:   %d (phishing %d, benign %d)\n\n", history.Total(), history.Phishing, history.Benign))

	if history.Total() == 0 {
		sb.WriteString("  No verdicts recorded\n\n")
	}

	for _, rec := range history.Records {
		marker := " "
		if rec.Verdict.IsPhishing() {
			marker = "!"
		}
		closed := ""
		if rec.Closed {
			closed = " (closed)"
		}
		sb.WriteString(fmt.Sprintf("[%s] %s  %-8s %5.2f  %s%s\n",
			marker,
			rec.Timestamp.Local().Format(timeLayout),
			strings.ToUpper(rec.Verdict.String()),
			rec.Score,
			rec.URL,
			closed,
		))
		if w.verbose {
			sb.WriteString(fmt.Sprintf("      %s\n", rec.Features.String()))
		}
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteRecord outputs one verdict with every feature.
func (w *SimpleWriter) WriteRecord(rec *model.VerdictRecord) (int, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("URL:     %s\n", rec.URL))
	sb.WriteString(fmt.Sprintf("Verdict: %s\n", strings.ToUpper(rec.Verdict.String())))
	sb.WriteString(fmt.Sprintf("Score:   %.4f\n", rec.Score))
	sb.WriteString("Features:\n")

	values := rec.Features.Map()
	for _, name := range model.FeatureNames {
		sb.WriteString(fmt.Sprintf("  %-18s %d\n", name, values[name]))
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeBanner(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max((70-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
