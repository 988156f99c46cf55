package report

import (
	"fmt"
	"io"
	"strings"
)

// Format is an output rendering of a report.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the format names and their usual file extensions.
// The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, markdown or html)", s)
}

func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	}
	return ".txt"
}

func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Write renders rep in format f.
func Write(w io.Writer, f Format, meta Meta, rep *Report) error {
	switch f {
	case FormatMarkdown:
		return WriteMarkdown(w, meta, rep)
	case FormatHTML:
		return WriteHTML(w, meta, rep)
	case FormatText:
		return WriteText(w, meta, rep)
	}
	return fmt.Errorf("unknown report format %q", string(f))
}
