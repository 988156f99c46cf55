package parser

import (
	"regexp"
	"strings"
	"unicode"
)

// PrintableRatio is the fraction of runes that are printable or ordinary
// whitespace. Broken font encodings show up as control and private-use runes.
func PrintableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if r == '\n' || r == '\t' || r == '\r' || (unicode.IsPrint(r) && !unicode.Is(unicode.Co, r) && r != unicode.ReplacementChar) {
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}

// Quality summarizes how usable extracted text looks.
type Quality struct {
	Chars          int      `json:"chars"`
	PrintableRatio float64  `json:"printable_ratio"`
	LargeAmounts   int      `json:"large_amounts"`
	TableLineRatio float64  `json:"table_line_ratio"`
	Years          []string `json:"years"`
	HasRevenue     bool     `json:"has_revenue"`
	HasProfit      bool     `json:"has_profit"`
	HasAssets      bool     `json:"has_assets"`
}

var (
	largeAmountRe = regexp.MustCompile(`\$?\s*\d{1,3}(?:,\d{3}){2,}`)
	yearRe        = regexp.MustCompile(`(?:19|20)\d{2}`)
	revenueRe     = regexp.MustCompile(`(?i)營業收入|revenue|sales`)
	profitRe      = regexp.MustCompile(`(?i)淨利|profit|net income`)
	assetsRe      = regexp.MustCompile(`(?i)總資產|total assets|資產總額`)
	tableLineRe   = regexp.MustCompile(`\t|\s{3,}|\|`)
)

// Assess computes extraction quality indicators for a document's text.
func Assess(text string) Quality {
	q := Quality{
		Chars:          len([]rune(text)),
		PrintableRatio: PrintableRatio(text),
		LargeAmounts:   len(largeAmountRe.FindAllString(text, -1)),
		HasRevenue:     revenueRe.MatchString(text),
		HasProfit:      profitRe.MatchString(text),
		HasAssets:      assetsRe.MatchString(text),
	}

	lines, tableLines := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if tableLineRe.MatchString(line) {
			tableLines++
		}
	}
	if lines > 0 {
		q.TableLineRatio = float64(tableLines) / float64(lines)
	}

	seen := map[string]bool{}
	for _, y := range yearRe.FindAllString(text, -1) {
		if !seen[y] {
			seen[y] = true
			q.Years = append(q.Years, y)
		}
	}
	return q
}
