package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/extract"
	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/ocr"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/strategy"
)

type stubEngine struct {
	text string
}

func (s stubEngine) Available() bool { return true }

func (s stubEngine) Recognize(context.Context, image.Image, ocr.Profile) (string, error) {
	return s.text, nil
}

var recognizedTable = "營業收入 1,234,567\n本期淨利 345,678\n" + strings.Repeat("附註說明", 30)

func newTestAgent(engine ocr.Engine) *Agent {
	an := analyzer.New(analyzer.DefaultConfig(), analyzer.DefaultTables(), nil)
	ex := strategy.NewExtractor(strategy.DefaultConfig(), engine, nil, nil)
	return NewAgent(an, ex, extract.MustNew(extract.DefaultPatterns()), nil)
}

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

// threePageDocument has a complex financial table, a plain text page and a
// page that cannot be loaded.
func threePageDocument() *parser.MemoryDocument {
	return &parser.MemoryDocument{
		Pages: []parser.Page{
			&parser.MemoryPage{
				Num:      1,
				Content:  "營業收入 營業成本 營業利益 本期淨利 資產總額 負債總額",
				SpanList: alignedRows(4),
				Image:    image.NewGray(image.Rect(0, 0, 64, 64)),
			},
			&parser.MemoryPage{
				Num:     2,
				Content: strings.Repeat("the company held its annual meeting. ", 5),
			},
			&parser.MemoryPage{Num: 3},
		},
		Errs: map[int]error{3: errors.New("broken xref table")},
	}
}

func TestProcess_ThreePageStatistics(t *testing.T) {
	agent := newTestAgent(stubEngine{text: recognizedTable})

	rep, err := agent.Process(context.Background(), threePageDocument(), Options{})
	require.NoError(t, err)
	require.Len(t, rep.Pages, 3)

	p1, p2, p3 := rep.Pages[0], rep.Pages[1], rep.Pages[2]
	assert.Equal(t, analyzer.ComplexFinancialTable, p1.Analysis.ContentType)
	assert.Equal(t, strategy.MethodRecognition, p1.Result.Method)
	assert.True(t, p1.Result.IsFinancialTable)
	assert.True(t, p1.Result.Success)

	assert.Equal(t, analyzer.PlainText, p2.Analysis.ContentType)
	assert.Equal(t, strategy.MethodBasic, p2.Result.Method)
	assert.True(t, p2.Result.Success)

	assert.Equal(t, strategy.MethodFailed, p3.Result.Method)
	assert.False(t, p3.Result.Success)
	assert.Contains(t, p3.Error, "broken xref")

	for i, p := range rep.Pages {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, report.PageAggregated, p.State)
	}

	st := rep.Stats
	assert.Equal(t, 3, st.PagesProcessed)
	assert.Equal(t, 1, st.Methods[strategy.MethodRecognition])
	assert.Equal(t, 1, st.Methods[strategy.MethodBasic])
	assert.Equal(t, 1, st.Methods[strategy.MethodFailed])
	assert.Equal(t, 1, st.FinancialTablesFound)
	assert.InDelta(t, 0.667, st.SuccessRate(), 0.001)
}

func TestProcess_FactsCarryPage(t *testing.T) {
	agent := newTestAgent(stubEngine{text: recognizedTable})

	rep, err := agent.Process(context.Background(), threePageDocument(), Options{})
	require.NoError(t, err)

	require.Len(t, rep.Facts, 2)
	assert.Equal(t, extract.Revenue, rep.Facts[0].Category)
	assert.Equal(t, 1234567.0, rep.Facts[0].Value)
	assert.Equal(t, 1, rep.Facts[0].Page)
	assert.Equal(t, extract.NetIncome, rep.Facts[1].Category)
	assert.Equal(t, rep.Facts, rep.Pages[0].Facts)
}

func TestProcess_WithoutEngineUsesHybrid(t *testing.T) {
	agent := newTestAgent(nil)

	rep, err := agent.Process(context.Background(), threePageDocument(), Options{})
	require.NoError(t, err)
	assert.Equal(t, strategy.Hybrid, rep.Pages[0].Result.Strategy)
	assert.Equal(t, 0, rep.Stats.Methods[strategy.MethodRecognition])
}

func TestProcess_ParallelPagesKeepOrder(t *testing.T) {
	agent := newTestAgent(stubEngine{text: recognizedTable})

	serial, err := agent.Process(context.Background(), threePageDocument(), Options{PageWorkers: 1})
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []int
	parallel, err := agent.Process(context.Background(), threePageDocument(), Options{
		PageWorkers: 3,
		OnPage: func(p report.Page, done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			seen = append(seen, done)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, serial.Pages, parallel.Pages)
	assert.Equal(t, serial.Stats, parallel.Stats)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestProcess_NoPagesIsUnreadable(t *testing.T) {
	_, err := newTestAgent(nil).Process(context.Background(), &parser.MemoryDocument{}, Options{})
	assert.ErrorIs(t, err, parser.ErrUnreadable)
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestAgent(nil).Process(ctx, threePageDocument(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

type panickyDocument struct {
	*parser.MemoryDocument
}

func (d panickyDocument) Page(n int) (parser.Page, error) {
	if n == 2 {
		panic("corrupt page tree")
	}
	return d.MemoryDocument.Page(n)
}

func TestProcess_PanicFailsOnlyThatPage(t *testing.T) {
	doc := panickyDocument{threePageDocument()}
	rep, err := newTestAgent(stubEngine{text: recognizedTable}).Process(context.Background(), doc, Options{})
	require.NoError(t, err)

	assert.Equal(t, strategy.MethodRecognition, rep.Pages[0].Result.Method)
	assert.Equal(t, strategy.MethodFailed, rep.Pages[1].Result.Method)
	assert.Contains(t, rep.Pages[1].Error, "corrupt page tree")
	assert.Equal(t, 2, rep.Stats.Methods[strategy.MethodFailed])
}
