// Package analyzer classifies a single page by content type, complexity and
// table taxonomy from text, layout and raster features.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/vision"
)

type ContentType string

const (
	MinimalContent        ContentType = "minimal_content"
	PlainText             ContentType = "plain_text"
	StructuredText        ContentType = "structured_text"
	FinancialContent      ContentType = "financial_content"
	ComplexFinancialTable ContentType = "complex_financial_table"
	Unknown               ContentType = "unknown"
)

type Complexity string

const (
	Low    Complexity = "low"
	Medium Complexity = "medium"
	High   Complexity = "high"
)

type TableType string

const (
	TableInvestment      TableType = "investment"
	TableIncomeStatement TableType = "income_statement"
	TableBalanceSheet    TableType = "balance_sheet"
	TableCashFlow        TableType = "cash_flow"
	TableUnknown         TableType = "unknown"
)

type TextFeatures struct {
	Chars         int            `json:"chars"`
	Lines         int            `json:"lines"`
	KeywordHits   int            `json:"keyword_hits"`
	CategoryHits  map[string]int `json:"category_hits,omitempty"`
	NumberDensity float64        `json:"number_density"` // number-like tokens per 1000 runes
	IndicatorHits int            `json:"indicator_hits"`
}

type StructuralFeatures struct {
	Blocks            int     `json:"blocks"`
	AlignedBlocks     int     `json:"aligned_blocks"`
	FontVariance      float64 `json:"font_variance"`
	HasTableStructure bool    `json:"has_table_structure"`
}

type Features struct {
	Text      TextFeatures       `json:"text"`
	Structure StructuralFeatures `json:"structure"`
	Visual    vision.Features    `json:"visual"`
}

// Analysis is the classification of one page. It is a value; nothing
// mutates it after Analyze returns.
type Analysis struct {
	PageNumber  int         `json:"page_number"`
	ContentType ContentType `json:"content_type"`
	Complexity  Complexity  `json:"complexity"`
	TableType   TableType   `json:"table_type"`
	Fallback    bool        `json:"fallback"`
	Features    Features    `json:"features"`
}

// Degraded is the analysis used when a page could not be analyzed.
func Degraded(page int) Analysis {
	return Analysis{
		PageNumber:  page,
		ContentType: Unknown,
		Complexity:  Medium,
		TableType:   TableUnknown,
		Fallback:    true,
	}
}

// Config holds the classification thresholds. Every "Min" is exclusive.
type Config struct {
	KeywordComplexMin         int
	KeywordFinancialMin       int
	TableBlockRatio           float64
	AlignedDistinctRatio      float64
	StructuredMinBlocks       int
	StructuredMinFontVariance float64
	PlainTextMinChars         int

	ComplexityDensityMin      float64
	ComplexityFontVarianceMin float64
	ComplexityLineCountMin    int
	ComplexityHighScore       int
	ComplexityMediumScore     int

	// RenderScale for visual features; zero skips rendering.
	RenderScale float64
	Layout      layout.Options
	Vision      vision.Options
}

func DefaultConfig() Config {
	return Config{
		KeywordComplexMin:         5,
		KeywordFinancialMin:       2,
		TableBlockRatio:           0.3,
		AlignedDistinctRatio:      0.8,
		StructuredMinBlocks:       5,
		StructuredMinFontVariance: 2,
		PlainTextMinChars:         100,
		ComplexityDensityMin:      10,
		ComplexityFontVarianceMin: 5,
		ComplexityLineCountMin:    20,
		ComplexityHighScore:       6,
		ComplexityMediumScore:     3,
		RenderScale:               1.5,
		Layout:                    layout.DefaultOptions(),
		Vision:                    vision.DefaultOptions(),
	}
}

type Analyzer struct {
	cfg    Config
	tables Tables
	log    *slog.Logger
}

func New(cfg Config, tables Tables, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{cfg: cfg, tables: tables.lowered(), log: log}
}

// Analyze classifies page. It never fails: any error or panic yields
// Degraded.
func (a *Analyzer) Analyze(ctx context.Context, page parser.Page) (an Analysis) {
	num := page.Number()
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn("page analysis panicked", "page", num, "panic", r)
			an = Degraded(num)
		}
	}()

	text, err := page.Text()
	if err != nil {
		a.log.Warn("page analysis failed", "page", num, "error", fmt.Errorf("text layer: %w", err))
		return Degraded(num)
	}
	spans, err := page.Spans()
	if err != nil {
		a.log.Warn("page analysis failed", "page", num, "error", fmt.Errorf("spans: %w", err))
		return Degraded(num)
	}

	lower := strings.ToLower(text)
	f := Features{
		Text:      a.textFeatures(text, lower),
		Structure: a.structuralFeatures(spans),
		Visual:    a.visualFeatures(ctx, page),
	}
	return Analysis{
		PageNumber:  num,
		ContentType: a.classify(f),
		Complexity:  a.complexity(f),
		TableType:   a.tableType(lower),
		Features:    f,
	}
}

// visualFeatures are informational; a page that cannot be rendered keeps
// zero values.
func (a *Analyzer) visualFeatures(ctx context.Context, page parser.Page) vision.Features {
	if a.cfg.RenderScale <= 0 || ctx.Err() != nil {
		return vision.Features{}
	}
	img, err := page.Render(a.cfg.RenderScale)
	if err != nil {
		a.log.Debug("render for visual features failed", "page", page.Number(), "error", err)
		return vision.Features{}
	}
	return vision.Measure(img, a.cfg.Vision)
}

var numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

func (a *Analyzer) textFeatures(text, lower string) TextFeatures {
	tf := TextFeatures{
		Chars:        utf8.RuneCountInString(text),
		CategoryHits: make(map[string]int, len(a.tables.Keywords)),
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			tf.Lines++
		}
	}
	for cat, kws := range a.tables.Keywords {
		n := countAll(lower, kws)
		tf.CategoryHits[cat] = n
		tf.KeywordHits += n
	}
	for _, marks := range a.tables.Indicators {
		tf.IndicatorHits += countAll(lower, marks)
	}
	if tf.Chars > 0 {
		tokens := len(numberRe.FindAllStringIndex(text, -1))
		tf.NumberDensity = float64(tokens) * 1000 / float64(tf.Chars)
	}
	return tf
}

func (a *Analyzer) structuralFeatures(spans []layout.Span) StructuralFeatures {
	lines := layout.GroupLines(spans, a.cfg.Layout)
	blocks := layout.GroupBlocks(lines, a.cfg.Layout)
	sf := StructuralFeatures{
		Blocks:       len(blocks),
		FontVariance: layout.FontVariance(spans),
	}
	for _, b := range blocks {
		if b.Aligned(a.cfg.AlignedDistinctRatio) {
			sf.AlignedBlocks++
		}
	}
	if sf.Blocks > 0 {
		sf.HasTableStructure = float64(sf.AlignedBlocks)/float64(sf.Blocks) > a.cfg.TableBlockRatio
	}
	return sf
}

func (a *Analyzer) classify(f Features) ContentType {
	c := a.cfg
	switch {
	case f.Text.KeywordHits > c.KeywordComplexMin && f.Structure.HasTableStructure:
		return ComplexFinancialTable
	case f.Text.KeywordHits > c.KeywordFinancialMin:
		return FinancialContent
	case f.Structure.Blocks > c.StructuredMinBlocks && f.Structure.FontVariance > c.StructuredMinFontVariance:
		return StructuredText
	case f.Text.Chars > c.PlainTextMinChars:
		return PlainText
	default:
		return MinimalContent
	}
}

func (a *Analyzer) complexity(f Features) Complexity {
	c := a.cfg
	score := 0
	if f.Text.NumberDensity > c.ComplexityDensityMin {
		score += 2
	}
	if f.Text.KeywordHits > c.KeywordComplexMin {
		score += 2
	}
	if f.Structure.HasTableStructure {
		score += 2
	}
	if f.Structure.FontVariance > c.ComplexityFontVarianceMin {
		score++
	}
	if f.Text.Lines > c.ComplexityLineCountMin {
		score += 2
	}
	switch {
	case score >= c.ComplexityHighScore:
		return High
	case score >= c.ComplexityMediumScore:
		return Medium
	default:
		return Low
	}
}

// tableType picks the taxonomy with the most keyword hits.
func (a *Analyzer) tableType(lower string) TableType {
	best, bestHits := TableUnknown, 0
	for _, tk := range a.tables.TableTypes {
		if n := countAll(lower, tk.Keywords); n > bestHits {
			best, bestHits = tk.Type, n
		}
	}
	return best
}

func countAll(lower string, needles []string) int {
	n := 0
	for _, s := range needles {
		if s != "" {
			n += strings.Count(lower, s)
		}
	}
	return n
}

func (t Tables) lowered() Tables {
	lowerAll := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	out := Tables{
		Keywords:   make(map[string][]string, len(t.Keywords)),
		Indicators: make(map[string][]string, len(t.Indicators)),
	}
	for k, v := range t.Keywords {
		out.Keywords[k] = lowerAll(v)
	}
	for k, v := range t.Indicators {
		out.Indicators[k] = lowerAll(v)
	}
	for _, tk := range t.TableTypes {
		out.TableTypes = append(out.TableTypes, TableKeywords{Type: tk.Type, Keywords: lowerAll(tk.Keywords)})
	}
	return out
}
