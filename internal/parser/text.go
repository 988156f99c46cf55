package parser

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/fingest/internal/doctree"
)

// TextParser reads a saved plain-text report. Page sections are framed by
// delimiter lines around a "Page N — ..." header; text outside any section
// (the report preamble) is dropped. Files without sections fall back to one
// node per paragraph.
type TextParser struct{}

var (
	delimiterRe  = regexp.MustCompile(`^={20,}\s*$`)
	pageHeaderRe = regexp.MustCompile(`^Page (\d+)\b`)
)

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(filename, ".txt"),
	}

	var current *doctree.DocNode
	var body []string
	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(strings.Join(body, "\n"))
			tree.Children = append(tree.Children, current)
		}
		body = nil
	}

	for i := 0; i < len(lines); i++ {
		if i+2 < len(lines) && delimiterRe.MatchString(lines[i]) && delimiterRe.MatchString(lines[i+2]) {
			if m := pageHeaderRe.FindStringSubmatch(lines[i+1]); m != nil {
				flush()
				page, _ := strconv.Atoi(m[1])
				current = &doctree.DocNode{Title: strings.TrimSpace(lines[i+1]), Page: page}
				i += 2
				continue
			}
		}
		if current != nil {
			body = append(body, lines[i])
		}
	}
	flush()

	if len(tree.Children) > 0 {
		return tree, nil
	}

	// No page sections: each paragraph becomes a child node.
	var para strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if para.Len() > 0 {
				tree.Children = append(tree.Children, &doctree.DocNode{Text: para.String()})
				para.Reset()
			}
			continue
		}
		if para.Len() > 0 {
			para.WriteString("\n")
		}
		para.WriteString(line)
	}
	if para.Len() > 0 {
		tree.Children = append(tree.Children, &doctree.DocNode{Text: para.String()})
	}

	return tree, nil
}
