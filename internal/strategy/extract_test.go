package strategy

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/ocr"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	avail   bool
	byPSM   map[int]string
	errPSM  map[int]bool
	profile []string
}

func (f *fakeEngine) Available() bool { return f.avail }

func (f *fakeEngine) Recognize(_ context.Context, _ image.Image, p ocr.Profile) (string, error) {
	f.profile = append(f.profile, p.Name)
	if f.errPSM[p.PSM] {
		return "", errors.New("engine crashed")
	}
	return f.byPSM[p.PSM], nil
}

func pageImage() image.Image { return image.NewGray(image.Rect(0, 0, 32, 32)) }

func TestExtract_RecognitionKeepsLongest(t *testing.T) {
	engine := &fakeEngine{
		avail: true,
		byPSM: map[int]string{
			3:  strings.Repeat("甲", 120),
			11: strings.Repeat("乙", 300),
			6:  strings.Repeat("丙", 150),
		},
		errPSM: map[int]bool{4: true},
	}
	e := NewExtractor(DefaultConfig(), engine, nil, nil)
	page := &parser.MemoryPage{Num: 1, Content: "text layer", Image: pageImage()}

	res := e.Extract(context.Background(), page, Recognition, analyzer.Analysis{ContentType: analyzer.ComplexFinancialTable})

	assert.Equal(t, strings.Repeat("乙", 300), res.Content)
	assert.Equal(t, MethodRecognition, res.Method)
	assert.Equal(t, Recognition, res.Strategy)
	assert.Equal(t, "sparse_text", res.Profile)
	assert.True(t, res.IsFinancialTable)
	assert.True(t, res.Success)
	assert.Len(t, engine.profile, 4)
}

func TestExtract_RecognitionShortOutputFallsBack(t *testing.T) {
	engine := &fakeEngine{avail: true, byPSM: map[int]string{3: "短", 11: strings.Repeat("字", 100)}}
	e := NewExtractor(DefaultConfig(), engine, nil, nil)
	text := "營業收入 1 , 234 元" + strings.Repeat("。", 60)
	page := &parser.MemoryPage{Num: 1, Content: text, Image: pageImage()}

	res := e.Extract(context.Background(), page, Recognition, analyzer.Analysis{})
	assert.Equal(t, MethodBasic, res.Method)
	assert.Equal(t, Recognition, res.Strategy)
	assert.True(t, strings.HasPrefix(res.Content, "營業收入 1,234元"))
}

func TestExtract_RecognitionWithoutEngine(t *testing.T) {
	for _, engine := range []ocr.Engine{nil, &fakeEngine{avail: false}} {
		e := NewExtractor(DefaultConfig(), engine, nil, nil)
		res := e.Extract(context.Background(), &parser.MemoryPage{Num: 1, Content: "only text"}, Recognition, analyzer.Analysis{})
		assert.Equal(t, MethodBasic, res.Method)
		assert.Equal(t, "only text", res.Content)
		assert.False(t, res.Success)
	}
}

func TestExtract_RecognitionRenderFailure(t *testing.T) {
	engine := &fakeEngine{avail: true, byPSM: map[int]string{3: strings.Repeat("字", 200)}}
	e := NewExtractor(DefaultConfig(), engine, nil, nil)
	res := e.Extract(context.Background(), &parser.MemoryPage{Num: 1, Content: "fallback"}, Recognition, analyzer.Analysis{})
	assert.Equal(t, MethodBasic, res.Method)
	assert.Empty(t, engine.profile)
}

func TestExtract_Structured(t *testing.T) {
	spans := []layout.Span{
		{Text: "項目", X: 0, Y: 10, Width: 20, FontSize: 10},
		{Text: "2023", X: 100, Y: 10, Width: 20, FontSize: 10},
		{Text: "2024", X: 145, Y: 10, Width: 20, FontSize: 10},
		{Text: "營收", X: 0, Y: 30, Width: 20, FontSize: 10},
		{Text: "1,000", X: 30, Y: 30, Width: 25, FontSize: 10},
		{Text: "元", X: 56, Y: 30, Width: 10, FontSize: 10},
	}
	e := NewExtractor(DefaultConfig(), nil, nil, nil)
	res := e.Extract(context.Background(), &parser.MemoryPage{Num: 2, SpanList: spans}, Structured, analyzer.Analysis{})

	assert.Equal(t, MethodStructured, res.Method)
	assert.Equal(t, "項目 | 2023  2024\n營收 1,000元", res.Content)
	assert.False(t, res.Success)
}

func TestColumnSeparator(t *testing.T) {
	assert.Equal(t, " | ", columnSeparator(130))
	assert.Equal(t, " | ", columnSeparator(61))
	assert.Equal(t, "  ", columnSeparator(60))
	assert.Equal(t, " ", columnSeparator(20))
	assert.Equal(t, "", columnSeparator(8))
}

func TestExtract_HybridLabelsSections(t *testing.T) {
	text := strings.Repeat("營收成長", 30)
	var spans []layout.Span
	for i := range 3 {
		spans = append(spans, layout.Span{Text: strings.Repeat("表", 50), X: 0, Y: float64(10 + 20*i), Width: 500, FontSize: 10})
	}
	engine := &fakeEngine{avail: true, byPSM: map[int]string{3: "辨識結果 1O0"}}
	e := NewExtractor(DefaultConfig(), engine, nil, nil)
	page := &parser.MemoryPage{Num: 1, Content: text, SpanList: spans, Image: pageImage()}

	res := e.Extract(context.Background(), page, Hybrid, analyzer.Analysis{})

	require.Equal(t, MethodHybrid, res.Method)
	assert.Contains(t, res.Content, LabelText+"\n"+text)
	assert.Contains(t, res.Content, LabelLayout+"\n")
	assert.Contains(t, res.Content, LabelRecognition+"\n辨識結果 100")
	assert.Equal(t, []string{"dense_text"}, engine.profile)
	assert.True(t, res.Success)
}

func TestExtract_HybridSkipsRecognitionWhenLongEnough(t *testing.T) {
	engine := &fakeEngine{avail: true, byPSM: map[int]string{3: "unused"}}
	e := NewExtractor(DefaultConfig(), engine, nil, nil)
	page := &parser.MemoryPage{Num: 1, Content: strings.Repeat("字", 600), Image: pageImage()}

	res := e.Extract(context.Background(), page, Hybrid, analyzer.Analysis{})
	assert.NotContains(t, res.Content, LabelRecognition)
	assert.NotContains(t, res.Content, LabelLayout)
	assert.Empty(t, engine.profile)
}

func TestExtract_BasicSwallowsTextError(t *testing.T) {
	e := NewExtractor(DefaultConfig(), nil, nil, nil)
	res := e.Extract(context.Background(), &parser.MemoryPage{Num: 1, TextErr: errors.New("bad")}, Basic, analyzer.Analysis{})
	assert.Equal(t, MethodBasic, res.Method)
	assert.Empty(t, res.Content)
	assert.False(t, res.Success)
}

type panicPage struct{ parser.MemoryPage }

func (p *panicPage) Text() (string, error) { panic("broken xref") }

func TestExtract_PanicBecomesEmpty(t *testing.T) {
	e := NewExtractor(DefaultConfig(), nil, nil, nil)
	res := e.Extract(context.Background(), &panicPage{parser.MemoryPage{Num: 9}}, Basic, analyzer.Analysis{})
	assert.Empty(t, res.Content)
	assert.False(t, res.Success)
}
