package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs runs in Markdown format for documentation and
// sharing.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists, and code blocks
//  3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given
// writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeResults(md, run)
	w.writeExchange(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run metadata table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *Run) {
	md.H1("Measurement Report")
	md.PlainText("")

	page := run.Page
	if page == "" {
		page = "-"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + run.RunID + "`"},
			{"Page", page},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().String()},
			{"Workers", strconv.Itoa(run.Workers)},
		},
	})
	md.PlainText("")
}

// writeSummary writes aggregate statistics over the results.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *Run) {
	md.H2("Summary")
	md.PlainText("")

	if len(run.Results) == 0 {
		md.Warning("The run produced no measurements; every target failed validation or probing.")
		md.PlainText("")
		return
	}

	rows := [][]string{
		{"Targets measured", strconv.Itoa(len(run.Results))},
		{"Bytes downloaded", strconv.FormatInt(run.TotalBytes(), 10)},
		{"Mean response time", run.MeanResponseTime().String()},
		{"Mean overhead", run.MeanOverhead().String()},
	}
	if slowest, ok := run.Slowest(); ok {
		rows = append(rows, []string{"Slowest target", fmt.Sprintf("%s (%s)", slowest.URL(), slowest.ResponseTime)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeResults writes the per-target measurement table.
func (w *MarkdownWriter) writeResults(md *markdown.Markdown, run *Run) {
	if len(run.Results) == 0 {
		return
	}

	md.H2("Results")
	md.PlainText("")

	rows := make([][]string, len(run.Results))
	for i, result := range run.Results {
		rows[i] = []string{
			result.URL(),
			strconv.FormatInt(result.Size, 10),
			result.ResponseTime.String(),
			result.Overhead.String(),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Bytes", "Response Time", "Overhead"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeExchange writes the drained exchange data, keys sorted for a
// stable document.
func (w *MarkdownWriter) writeExchange(md *markdown.Markdown, run *Run) {
	if len(run.Exchange) == 0 {
		return
	}

	md.H2("Exchange Data")
	md.PlainText("")

	keys := make([]string, 0, len(run.Exchange))
	for k := range run.Exchange {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{"`" + k + "`", fmt.Sprintf("%v", run.Exchange[k])}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Key", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by netmeter*")
}
