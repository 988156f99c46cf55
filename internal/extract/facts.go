// Package extract pulls numeric financial facts out of cleaned page text.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Category string

const (
	Revenue         Category = "revenue"
	NetIncome       Category = "net_income"
	TotalAssets     Category = "total_assets"
	OperatingIncome Category = "operating_income"
	GrossProfit     Category = "gross_profit"
	EPS             Category = "eps"
)

// Categories lists every category in report order.
var Categories = []Category{Revenue, NetIncome, TotalAssets, OperatingIncome, GrossProfit, EPS}

// Labels are the display names used in reports.
var Labels = map[Category]string{
	Revenue:         "營業收入",
	NetIncome:       "本期淨利",
	TotalAssets:     "資產總額",
	OperatingIncome: "營業利益",
	GrossProfit:     "營業毛利",
	EPS:             "每股盈餘",
}

// Fact is one number found next to a category keyword.
type Fact struct {
	Category Category `json:"category"`
	Value    float64  `json:"value"`
	Page     int      `json:"page"`
	Context  string   `json:"context"` // the raw matched substring
}

// Pattern lists the expressions for one category. Each expression must
// capture the number in its first group.
type Pattern struct {
	Category Category
	Exprs    []string
}

// gap is what may sit between a keyword and its number: no digits, no line
// break, and no ratio markers so "毛利率 45%" is not read as an amount.
const gap = `[^\d\n率%％]{0,20}?`

const amount = `([\d,]+(?:\.\d+)?)`

func kw(keyword string) string { return keyword + gap + amount }

// DefaultPatterns is the built-in bank. Keywords within a category do not
// overlap, so one occurrence yields one fact.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Revenue, []string{kw(`營業收入`), kw(`營收`), kw(`\brevenues?`)}},
		{NetIncome, []string{kw(`(?:本期|稅後)?淨利`), kw(`\bnet\s+income`)}},
		{TotalAssets, []string{kw(`資產(?:總額|總計)`), kw(`總資產`), kw(`\btotal\s+assets`)}},
		{OperatingIncome, []string{kw(`營業利益`), kw(`\boperating\s+income`)}},
		{GrossProfit, []string{kw(`(?:營業)?毛利`), kw(`\bgross\s+profit`)}},
		{EPS, []string{kw(`每股盈餘`), kw(`\beps\b`), kw(`\bearnings\s+per\s+share`)}},
	}
}

type rule struct {
	category Category
	re       *regexp.Regexp
}

// Extractor runs a compiled pattern bank. Safe for concurrent use.
type Extractor struct {
	rules []rule
}

// New compiles patterns case-insensitively.
func New(patterns []Pattern) (*Extractor, error) {
	e := &Extractor{}
	for _, p := range patterns {
		for _, expr := range p.Exprs {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", p.Category, expr, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("%s pattern %q has no capture group", p.Category, expr)
			}
			e.rules = append(e.rules, rule{category: p.Category, re: re})
		}
	}
	return e, nil
}

// MustNew is New for built-in banks.
func MustNew(patterns []Pattern) *Extractor {
	e, err := New(patterns)
	if err != nil {
		panic(err)
	}
	return e
}

// Extract returns every fact in text, in bank order then text order.
// Numbers that fail to parse are skipped. Duplicates are kept.
func (e *Extractor) Extract(text string, page int) []Fact {
	var facts []Fact
	for _, r := range e.rules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			f := Fact{Category: r.category, Value: v, Page: page, Context: m[0]}
			if ValidateFact(&f) {
				facts = append(facts, f)
			}
		}
	}
	return facts
}

// Summary counts the facts of one category.
type Summary struct {
	Count    int `json:"count"`
	Distinct int `json:"distinct"` // distinct values
}

// Summarize groups facts by category. Distinct counts (category, value)
// pairs.
func Summarize(facts []Fact) map[Category]Summary {
	out := make(map[Category]Summary)
	seen := make(map[Category]map[float64]struct{})
	for _, f := range facts {
		s := out[f.Category]
		s.Count++
		if seen[f.Category] == nil {
			seen[f.Category] = make(map[float64]struct{})
		}
		if _, ok := seen[f.Category][f.Value]; !ok {
			seen[f.Category][f.Value] = struct{}{}
			s.Distinct++
		}
		out[f.Category] = s
	}
	return out
}
