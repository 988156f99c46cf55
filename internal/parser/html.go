package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/fingest/internal/layout"
	"golang.org/x/net/html"
)

// ParseMuPDFHTML extracts positioned spans from MuPDF's HTML page output,
// where every text line is a <p style="top:..pt;left:..pt;line-height:..pt">
// holding <span style="font-size:..pt"> runs.
func ParseMuPDFHTML(src string) ([]layout.Span, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var spans []layout.Span
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			spans = append(spans, lineSpans(n)...)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return spans, nil
}

func lineSpans(p *html.Node) []layout.Span {
	style := parseStyle(attr(p, "style"))
	top, okTop := parsePt(style["top"])
	left, okLeft := parsePt(style["left"])
	if !okTop || !okLeft {
		return nil
	}
	lineHeight, _ := parsePt(style["line-height"])
	y := top + lineHeight

	var out []layout.Span
	x := left
	var walk func(n *html.Node, size float64)
	walk = func(n *html.Node, size float64) {
		if n.Type == html.ElementNode && n.Data == "span" {
			if fs, ok := parsePt(parseStyle(attr(n, "style"))["font-size"]); ok {
				size = fs
			}
		}
		if n.Type == html.TextNode {
			text := n.Data
			if strings.TrimSpace(text) != "" {
				w := estimateWidth(text, size)
				out = append(out, layout.Span{Text: text, X: x, Y: y, Width: w, FontSize: size})
				x += w
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, size)
		}
	}
	walk(p, lineHeight)
	return out
}

// estimateWidth approximates advance width: full em for wide (CJK) runes,
// a little over half an em for everything else.
func estimateWidth(text string, size float64) float64 {
	w := 0.0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hangul, r) || unicode.In(r, unicode.Hiragana, unicode.Katakana) || (r >= 0xFF00 && r <= 0xFFEF) {
			w += size
		} else {
			w += size * 0.55
		}
	}
	return w
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func parseStyle(s string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return out
}

func parsePt(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "pt")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
