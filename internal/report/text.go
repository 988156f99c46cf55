package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dgallion1/fingest/internal/parser"
)

// WriteText writes the plain-text report: header, statistics, fact
// summary, diagnostics, then one framed section per page. The output
// reads back with parser.TextParser.
func WriteText(w io.Writer, meta Meta, res *Report) error {
	var b bytes.Buffer

	b.WriteString("FINANCIAL DOCUMENT EXTRACTION REPORT\n")
	if meta.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", meta.Title)
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", meta.Source)
	}
	if !meta.Generated.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", meta.Generated.Format(time.RFC3339))
	}

	b.WriteString("\nSTATISTICS\n")
	for _, l := range statLines(res.Stats) {
		fmt.Fprintf(&b, "%s: %s\n", l.label, l.value)
	}

	b.WriteString("\nFACTS\n")
	facts := factLines(res.Facts)
	if len(facts) == 0 {
		b.WriteString("No facts found\n")
	}
	for _, f := range facts {
		fmt.Fprintf(&b, "%s (%s): %d found, %d distinct\n", f.label, f.category, f.summary.Count, f.summary.Distinct)
	}
	for _, f := range res.Facts {
		fmt.Fprintf(&b, "  p.%d %s = %s | %s\n", f.Page, f.Category, formatValue(f.Value), oneLine(f.Context))
	}

	b.WriteString("\nDIAGNOSTICS\n")
	for _, l := range diagnosticLines(parser.Assess(res.Text())) {
		fmt.Fprintf(&b, "%s: %s\n", l.label, l.value)
	}

	for _, rec := range res.Pages {
		b.WriteString("\n")
		b.WriteString(Delimiter)
		b.WriteString("\n")
		b.WriteString(Header(rec))
		b.WriteString("\n")
		b.WriteString(Delimiter)
		b.WriteString("\n")
		if content := strings.TrimSpace(rec.Result.Content); content != "" {
			b.WriteString(content)
			b.WriteString("\n")
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
