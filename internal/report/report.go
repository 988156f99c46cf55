// Package report renders a processed document as plain text, Markdown or
// HTML, and turns it back into a DocTree for retrieval.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/extract"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/strategy"
)

// Delimiter frames each page header in the text report.
var Delimiter = strings.Repeat("=", 60)

// Meta describes the source of a report.
type Meta struct {
	Title     string
	Source    string
	Generated time.Time
}

// Header is the one-line page summary:
// page, content type, complexity, strategy, table marker, status marker.
func Header(rec Page) string {
	table := "[TEXT]"
	if rec.Result.IsFinancialTable {
		table = "[TABLE]"
	}
	status := "[OK]"
	if !rec.Result.Success {
		status = "[FAILED]"
	}
	strat := rec.Result.Strategy.String()
	if string(rec.Result.Method) != strat {
		strat += " (" + string(rec.Result.Method) + ")"
	}
	return fmt.Sprintf("Page %d — %s — %s — %s — %s — %s",
		rec.Number, rec.Analysis.ContentType, rec.Analysis.Complexity, strat, table, status)
}

// Tree builds the retrieval view of a report: one node per page.
func Tree(id string, meta Meta, res *Report) *doctree.DocTree {
	tree := &doctree.DocTree{ID: id, Title: meta.Title}
	for _, rec := range res.Pages {
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: Header(rec),
			Text:  strings.TrimSpace(rec.Result.Content),
			Page:  rec.Number,
		})
	}
	return tree
}

type statLine struct {
	label string
	value string
}

func statLines(s Stats) []statLine {
	lines := []statLine{
		{"Pages processed", strconv.Itoa(s.PagesProcessed)},
		{"Successful pages", strconv.Itoa(s.Successful)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)},
		{"Financial tables found", strconv.Itoa(s.FinancialTablesFound)},
	}
	for _, m := range []strategy.Method{
		strategy.MethodBasic,
		strategy.MethodStructured,
		strategy.MethodRecognition,
		strategy.MethodHybrid,
		strategy.MethodFailed,
	} {
		if n := s.Methods[m]; n > 0 {
			lines = append(lines, statLine{"Method " + string(m), strconv.Itoa(n)})
		}
	}
	return lines
}

type factLine struct {
	category extract.Category
	label    string
	summary  extract.Summary
}

// factLines lists the categories present, built-in ones first in report
// order, then any others by name.
func factLines(facts []extract.Fact) []factLine {
	sums := extract.Summarize(facts)
	var out []factLine
	for _, c := range extract.Categories {
		if s, ok := sums[c]; ok {
			out = append(out, factLine{c, extract.Labels[c], s})
			delete(sums, c)
		}
	}
	rest := make([]extract.Category, 0, len(sums))
	for c := range sums {
		rest = append(rest, c)
	}
	slices.Sort(rest)
	for _, c := range rest {
		label := extract.Labels[c]
		if label == "" {
			label = string(c)
		}
		out = append(out, factLine{c, label, sums[c]})
	}
	return out
}

func diagnosticLines(q parser.Quality) []statLine {
	years := "none"
	if len(q.Years) > 0 {
		years = strings.Join(q.Years, ", ")
	}
	return []statLine{
		{"Characters", strconv.Itoa(q.Chars)},
		{"Printable ratio", fmt.Sprintf("%.3f", q.PrintableRatio)},
		{"Large amounts", strconv.Itoa(q.LargeAmounts)},
		{"Table line ratio", fmt.Sprintf("%.3f", q.TableLineRatio)},
		{"Years mentioned", years},
		{"Mentions revenue", strconv.FormatBool(q.HasRevenue)},
		{"Mentions profit", strconv.FormatBool(q.HasProfit)},
		{"Mentions assets", strconv.FormatBool(q.HasAssets)},
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
