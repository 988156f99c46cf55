package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer() *Analyzer {
	return New(DefaultConfig(), DefaultTables(), nil)
}

// alignedRows builds n two-column rows whose left edges all line up.
func alignedRows(n int) []layout.Span {
	var spans []layout.Span
	for i := range n {
		y := 20 + float64(i)*12
		spans = append(spans,
			layout.Span{Text: "項目", X: 10, Y: y, Width: 20, FontSize: 10},
			layout.Span{Text: "1,234", X: 200, Y: y, Width: 25, FontSize: 10},
		)
	}
	return spans
}

func TestAnalyze_MinimalContent(t *testing.T) {
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 3, Content: "目錄"})
	assert.Equal(t, 3, an.PageNumber)
	assert.Equal(t, MinimalContent, an.ContentType)
	assert.Equal(t, Low, an.Complexity)
	assert.Equal(t, TableUnknown, an.TableType)
	assert.False(t, an.Fallback)
}

func TestAnalyze_PlainText(t *testing.T) {
	text := strings.Repeat("the company held its annual meeting. ", 5)
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 1, Content: text})
	assert.Equal(t, PlainText, an.ContentType)
}

func TestAnalyze_FinancialContent(t *testing.T) {
	// revenue: 營業收入 + 收入, profit: 淨利, assets: 資產 -> 4 hits
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 1, Content: "營業收入 淨利 資產"})
	assert.Equal(t, 4, an.Features.Text.KeywordHits)
	assert.Equal(t, FinancialContent, an.ContentType)
}

func TestAnalyze_KeywordsAreCaseInsensitive(t *testing.T) {
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 1, Content: "REVENUE Revenue revenue"})
	assert.Equal(t, 3, an.Features.Text.CategoryHits["revenue"])
}

func TestAnalyze_ComplexFinancialTable(t *testing.T) {
	page := &parser.MemoryPage{
		Num:      7,
		Content:  "營業收入 營業成本 營業利益 本期淨利 資產總額 負債總額",
		SpanList: alignedRows(4),
	}
	an := newAnalyzer().Analyze(context.Background(), page)

	assert.Equal(t, 1, an.Features.Structure.Blocks)
	assert.True(t, an.Features.Structure.HasTableStructure)
	assert.Greater(t, an.Features.Text.KeywordHits, 5)
	assert.Equal(t, ComplexFinancialTable, an.ContentType)
	assert.Equal(t, TableIncomeStatement, an.TableType)
	assert.Equal(t, Medium, an.Complexity)
}

func TestAnalyze_HighComplexity(t *testing.T) {
	var lines []string
	for range 25 {
		lines = append(lines, "營業收入 1,234 資產 5,678 淨利 90")
	}
	page := &parser.MemoryPage{Num: 1, Content: strings.Join(lines, "\n"), SpanList: alignedRows(4)}
	an := newAnalyzer().Analyze(context.Background(), page)
	assert.Equal(t, High, an.Complexity)
}

func TestAnalyze_TextErrorDegrades(t *testing.T) {
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 2, TextErr: errors.New("bad stream")})
	assert.Equal(t, Degraded(2), an)
}

type panicPage struct{ parser.MemoryPage }

func (p *panicPage) Spans() ([]layout.Span, error) { panic("corrupt content stream") }

func TestAnalyze_PanicDegrades(t *testing.T) {
	page := &panicPage{parser.MemoryPage{Num: 5, Content: "營業收入"}}
	an := newAnalyzer().Analyze(context.Background(), page)
	assert.Equal(t, Unknown, an.ContentType)
	assert.Equal(t, Medium, an.Complexity)
	assert.True(t, an.Fallback)
	assert.Equal(t, 5, an.PageNumber)
}

func TestAnalyze_VisualFeatures(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 255}}, image.Point{}, draw.Src)
	for x := range 40 {
		img.SetGray(x, 0, color.Gray{Y: 0})
	}

	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 1, Content: "x", Image: img})
	require.Equal(t, 40, an.Features.Visual.Width)
	assert.InDelta(t, 40.0/800.0, an.Features.Visual.TextDensity, 1e-9)
	assert.False(t, an.Features.Visual.HasLines)
}

func TestAnalyze_RenderFailureIsNotFatal(t *testing.T) {
	an := newAnalyzer().Analyze(context.Background(), &parser.MemoryPage{Num: 1, Content: "目錄"})
	assert.False(t, an.Fallback)
	assert.Zero(t, an.Features.Visual.Width)
}

func TestTableType_TieKeepsFirst(t *testing.T) {
	a := newAnalyzer()
	assert.Equal(t, TableInvestment, a.tableType("轉投資 現金流量"))
}
