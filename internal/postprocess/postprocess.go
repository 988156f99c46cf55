// Package postprocess cleans extracted page text: character-confusion
// correction for recognized text, table-row reconstruction and numeral
// spacing repair.
package postprocess

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Tables holds the correction data. It is injected so deployments can tune
// it per document family.
type Tables struct {
	// Confusions maps glyphs that recognition mistakes for digits. They are
	// only replaced inside a run bounded by digits on both sides.
	Confusions map[rune]rune
	// Phrases are literal replacements applied in order.
	Phrases [][2]string
	// RowMarkers make a line with a digit count as a table row.
	RowMarkers []string
}

func DefaultTables() Tables {
	return Tables{
		Confusions: map[rune]rune{
			'O': '0', 'o': '0', 'D': '0', 'Q': '0',
			'l': '1', 'I': '1',
			'Z': '2', 'S': '5', 'B': '8',
		},
		Phrases: [][2]string{
			{"營業收人", "營業收入"},
			{"營業成木", "營業成本"},
			{"資產總頟", "資產總額"},
			{"負債總頟", "負債總額"},
			{"新台弊", "新台幣"},
			{"税後", "稅後"},
			{"Tota1", "Total"},
			{"Net lncome", "Net income"},
			{"Reveune", "Revenue"},
		},
		RowMarkers: []string{"$", "%", "元", "萬", "億", "仟", "千"},
	}
}

// Processor applies the cleanup passes. Safe for concurrent use.
type Processor struct {
	tables  Tables
	phrases *strings.Replacer
}

func New(t Tables) *Processor {
	var pairs []string
	for _, p := range t.Phrases {
		if p[0] == "" || p[0] == p[1] {
			continue
		}
		pairs = append(pairs, norm.NFC.String(p[0]), p[1])
	}
	return &Processor{tables: t, phrases: strings.NewReplacer(pairs...)}
}

// CleanRecognized is the full chain for recognition output.
func (p *Processor) CleanRecognized(s string) string {
	return p.RepairSpacing(p.ReconstructRows(p.CorrectConfusions(s)))
}

// CleanText is the chain for text-layer output.
func (p *Processor) CleanText(s string) string {
	return p.RepairSpacing(s)
}

// CorrectConfusions normalizes to NFC, applies the phrase table, then fixes
// digit look-alikes bounded by digits on both sides ("1O0" becomes "100",
// "Total 1O" is left alone).
func (p *Processor) CorrectConfusions(s string) string {
	s = p.phrases.Replace(norm.NFC.String(s))

	rs := []rune(s)
	for i := 0; i < len(rs); {
		if _, ok := p.tables.Confusions[rs[i]]; !ok {
			i++
			continue
		}
		j := i
		for j < len(rs) {
			if _, ok := p.tables.Confusions[rs[j]]; !ok {
				break
			}
			j++
		}
		if i > 0 && j < len(rs) && isDigit(rs[i-1]) && isDigit(rs[j]) {
			for k := i; k < j; k++ {
				rs[k] = p.tables.Confusions[rs[k]]
			}
		}
		i = j
	}
	return string(rs)
}

var rowSplitRe = regexp.MustCompile(`\s*\|\s*|[ \t]*\t[ \t]*| {2,}`)

// ReconstructRows rewrites table-like lines (a digit plus tabs, runs of
// spaces, pipes or a currency/unit marker) as cells joined by " | ".
// Applying it twice gives the same result as applying it once.
func (p *Processor) ReconstructRows(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !p.isTableRow(line) {
			continue
		}
		var cells []string
		for _, c := range rowSplitRe.Split(line, -1) {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		lines[i] = strings.Join(cells, " | ")
	}
	return strings.Join(lines, "\n")
}

func (p *Processor) isTableRow(line string) bool {
	if !strings.ContainsFunc(line, isDigit) {
		return false
	}
	if strings.ContainsAny(line, "\t|") || strings.Contains(line, "  ") {
		return true
	}
	for _, m := range p.tables.RowMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

var spacingRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\d)[ \t]*,[ \t]*(\d)`), "$1,$2"},
	{regexp.MustCompile(`(\d)[ \t]*\.[ \t]*(\d)`), "$1.$2"},
	{regexp.MustCompile(`(\d)[ \t]+%`), "$1%"},
	{regexp.MustCompile(`(NT\$|\$)[ \t]+(\d)`), "$1$2"},
	{regexp.MustCompile(`(\d)[ \t]+(元|萬|億|仟)`), "$1$2"},
	{regexp.MustCompile(`[ \t]+([，。！？；：、）])`), "$1"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// RepairSpacing narrows fullwidth numerals and removes whitespace that
// extraction inserts inside numbers, before percent signs and units, after
// currency symbols and before CJK punctuation.
func (p *Processor) RepairSpacing(s string) string {
	s = narrowNumerals(s)
	for range 4 {
		prev := s
		for _, r := range spacingRules {
			s = r.re.ReplaceAllString(s, r.repl)
		}
		if s == prev {
			break
		}
	}
	return s
}

// narrowNumerals maps fullwidth digits, $ and % to ASCII, plus fullwidth
// comma and period when they sit between digits.
func narrowNumerals(s string) string {
	rs := []rune(s)
	changed := false
	for i, r := range rs {
		switch {
		case r >= '０' && r <= '９', r == '＄', r == '％':
			rs[i] = width.LookupRune(r).Narrow()
			changed = true
		}
	}
	for i := 1; i+1 < len(rs); i++ {
		if (rs[i] == '，' || rs[i] == '．') && isDigit(rs[i-1]) && isDigit(rs[i+1]) {
			rs[i] = width.LookupRune(rs[i]).Narrow()
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(rs)
}

func isDigit(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsDigit(r)
}
