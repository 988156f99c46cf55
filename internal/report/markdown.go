package report

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/fingest/internal/parser"
)

const fence = "````"

// WriteMarkdown writes the report as Markdown. Page content sits in fenced
// blocks so table rows keep their line breaks; parser.MarkdownParser reads
// it back.
func WriteMarkdown(w io.Writer, meta Meta, res *Report) error {
	var b bytes.Buffer

	title := meta.Title
	if title == "" {
		title = "Financial document extraction report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if !meta.Generated.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.Generated.Format(time.RFC3339))
	}

	b.WriteString("\n## Statistics\n\n| Metric | Value |\n|---|---|\n")
	for _, l := range statLines(res.Stats) {
		fmt.Fprintf(&b, "| %s | %s |\n", l.label, l.value)
	}

	b.WriteString("\n## Facts\n\n")
	if facts := factLines(res.Facts); len(facts) > 0 {
		b.WriteString("| Category | Label | Count | Distinct |\n|---|---|---|---|\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", f.category, f.label, f.summary.Count, f.summary.Distinct)
		}
	} else {
		b.WriteString("No facts found.\n")
	}

	b.WriteString("\n## Diagnostics\n\n")
	for _, l := range diagnosticLines(parser.Assess(res.Text())) {
		fmt.Fprintf(&b, "- %s: %s\n", l.label, l.value)
	}

	for _, rec := range res.Pages {
		fmt.Fprintf(&b, "\n## %s\n\n", Header(rec))
		if content := strings.TrimSpace(rec.Result.Content); content != "" {
			fmt.Fprintf(&b, "%stext\n%s\n%s\n", fence, content, fence)
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

// WriteHTML renders the Markdown report to a standalone HTML page.
func WriteHTML(w io.Writer, meta Meta, res *Report) error {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, meta, res); err != nil {
		return err
	}

	var body bytes.Buffer
	gm := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := gm.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	title := meta.Title
	if title == "" {
		title = "Financial document extraction report"
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), body.String())
	return err
}
