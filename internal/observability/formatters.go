// Package observability provides formatted output for the CLI: run summaries,
// dry-run samples and ad-hoc classifications.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jonathan/speaker-outreach/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxSamples is how many drafts a dry run shows
	maxSamples = 3
)

// StageSummary holds the counters reported for one stage.
type StageSummary struct {
	Stage       string
	Processed   int
	Skipped     int
	Failed      int
	NotTargeted int
}

// RunSummary is the end-of-run report.
type RunSummary struct {
	RunID       string
	Stages      []StageSummary
	RowsWritten int
	ReportPath  string
	DryRun      bool
}

// Printer handles formatted output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content. Widths are display
// cells, so wide and combining characters keep the border aligned.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", fit(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", fit(line, inner))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func fit(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}

// wrap breaks text into lines of at most width display cells on word
// boundaries. Words longer than width are truncated.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, w := range words {
			switch {
			case line == "":
				line = w
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(w) <= width:
				line += " " + w
			default:
				lines = append(lines, line)
				line = w
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// PrintSamples outputs up to three drafted emails, used by dry runs.
func (p *Printer) PrintSamples(records []types.EmailRecord) {
	if len(records) == 0 {
		p.printBox("DRY RUN: NO NEW DRAFTS", "Nothing was drafted in this run.")
		return
	}

	var sb strings.Builder
	count := min(len(records), maxSamples)
	for i := 0; i < count; i++ {
		rec := records[i]
		sb.WriteString(fmt.Sprintf("[%s | %s] %s\n", rec.SpeakerName, rec.SpeakerCompany, rec.CompanyCategory))
		sb.WriteString(fmt.Sprintf("Subject: %s\n", rec.EmailSubject))
		if rec.SpecificDetail != "" {
			sb.WriteString(fmt.Sprintf("Detail:  %s\n", rec.SpecificDetail))
		}
		sb.WriteString("\n")
		for _, line := range wrap(rec.EmailBody, boxWidth-4) {
			sb.WriteString(line + "\n")
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(records) > maxSamples {
		sb.WriteString(fmt.Sprintf("\n... and %d more drafts\n", len(records)-maxSamples))
	}

	p.printBox(fmt.Sprintf("DRY RUN SAMPLES (%d drafted)", len(records)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs per-stage counters and the report outcome.
func (p *Printer) PrintSummary(summary RunSummary) {
	var sb strings.Builder
	if summary.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:      %s\n\n", summary.RunID))
	}

	sb.WriteString(fmt.Sprintf("%-12s %9s %8s %7s %12s\n", "Stage", "Processed", "Skipped", "Failed", "Not targeted"))
	for _, s := range summary.Stages {
		sb.WriteString(fmt.Sprintf("%-12s %9d %8d %7d %12d\n", s.Stage, s.Processed, s.Skipped, s.Failed, s.NotTargeted))
	}
	sb.WriteString("\n")

	switch {
	case summary.DryRun:
		sb.WriteString("Dry run: no report written")
	case summary.ReportPath != "":
		sb.WriteString(fmt.Sprintf("Rows written: %d -> %s", summary.RowsWritten, summary.ReportPath))
	default:
		sb.WriteString("No report stage in this run")
	}

	p.printBox("RUN SUMMARY", sb.String())
}

// PrintClassification outputs a single category decision.
func (p *Printer) PrintClassification(rec types.CategorizedRecord) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:     %s\n", rec.Name))
	sb.WriteString(fmt.Sprintf("Title:    %s\n", rec.Title))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", rec.Company))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Category: %s (%s)", rec.CompanyCategory, rec.DecisionSource))
	if rec.Reason != "" {
		sb.WriteString(fmt.Sprintf("\nReason:   %s", rec.Reason))
	}

	p.printBox("CLASSIFICATION", sb.String())
}
