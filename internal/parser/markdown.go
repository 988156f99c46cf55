package parser

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser reads a saved Markdown report using goldmark. The level-1
// heading is the title and every "Page N ..." heading opens a page node whose
// text is the blocks that follow it.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"),
	}

	var current *doctree.DocNode
	var body []string
	flush := func() {
		if current != nil {
			current.Text = strings.Join(body, "\n\n")
			tree.Children = append(tree.Children, current)
		}
		current, body = nil, nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			title := strings.TrimSpace(string(h.Text(src)))
			switch {
			case h.Level == 1:
				flush()
				tree.Title = title
			case pageHeaderRe.MatchString(title):
				flush()
				page, _ := strconv.Atoi(pageHeaderRe.FindStringSubmatch(title)[1])
				current = &doctree.DocNode{Title: title, Page: page}
			default:
				flush()
			}
			continue
		}
		if current == nil {
			continue
		}
		if t := extractText(n, src); t != "" {
			body = append(body, t)
		}
	}
	flush()

	return tree, nil
}

// extractText gets the text content of a goldmark AST node. Code blocks keep
// their line breaks so tabular page content survives.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
