package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/phishguard/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the history.
func (w *MarkdownWriter) Write(history *History) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("PhishGuard Verdict History")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", history.GeneratedAt.Format(timeLayout)},
			{"Records", strconv.Itoa(history.Total())},
			{"Phishing", strconv.Itoa(history.Phishing)},
			{"Benign", strconv.Itoa(history.Benign)},
		},
	})
	md.PlainText("")

	if history.Total() > 0 {
		w.writePieChart(md, history)
	}
	w.writeAlert(md, history)
	w.writeRecords(md, history)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRecord outputs one verdict with its feature vector.
func (w *MarkdownWriter) WriteRecord(rec *model.VerdictRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("PhishGuard Verdict")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + rec.URL + "`"},
			{"Verdict", verdictLabel(rec.Verdict)},
			{"Score", strconv.FormatFloat(rec.Score, 'f', 4, 64)},
		},
	})
	md.PlainText("")

	if rec.Verdict.IsPhishing() {
		md.Cautionf("%s was classified as phishing.", rec.URL)
		md.PlainText("")
	}

	md.H2("Features")
	md.PlainText("")

	values := rec.Features.Map()
	rows := make([][]string, 0, len(model.FeatureNames))
	for _, name := range model.FeatureNames {
		rows = append(rows, []string{name, strconv.Itoa(values[name])})
	}
	md.Table(markdown.TableSet{Header: []string{"Feature", "Value"}, Rows: rows})
	md.PlainText("")

	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart for the verdict distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, history *History) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Verdict Distribution"),
		piechart.WithShowData(true),
	)

	if history.Phishing > 0 {
		chart.LabelAndIntValue(verdictLabel(model.VerdictPhishing), uint64(history.Phishing))
	}
	if history.Benign > 0 {
		chart.LabelAndIntValue(verdictLabel(model.VerdictBenign), uint64(history.Benign))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, history *History) {
	switch {
	case history.Phishing > 0:
		md.Cautionf("%d phishing page(s) detected.", history.Phishing)
	case history.Total() > 0:
		md.Tip("No phishing pages detected.")
	default:
		md.Note("No verdicts recorded yet.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, history *History) {
	md.H2("Verdicts")
	md.PlainText("")

	if history.Total() == 0 {
		md.PlainText("No verdicts recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(history.Records))
	for i, rec := range history.Records {
		closed := "-"
		if rec.Closed {
			closed = "yes"
		}
		rows[i] = []string{
			rec.Timestamp.Local().Format(timeLayout),
			verdictLabel(rec.Verdict),
			strconv.FormatFloat(rec.Score, 'f', 2, 64),
			"`" + truncateString(rec.URL, 80) + "`",
			closed,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Time", "Verdict", "Score", "URL", "Closed"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [PhishGuard](https://github.com/nao1215/phishguard)*")
}
