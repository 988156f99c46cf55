package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/config"
	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/strategy"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Retrieval.Segmenter = "simple"
	cfg.OCR.Enabled = false
	return cfg
}

func TestAnalyzerConfig_MapsThresholds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analyzer.KeywordComplexMin = 7
	cfg.Analyzer.LineSegmentsMin = 12
	cfg.Analyzer.DarkPixelLevel = 100

	c := AnalyzerConfig(cfg)
	assert.Equal(t, 7, c.KeywordComplexMin)
	assert.Equal(t, 12, c.Vision.MinSegments)
	assert.Equal(t, uint8(100), c.Vision.DarkLevel)

	cfg.Analyzer.DarkPixelLevel = 300
	assert.Equal(t, analyzer.DefaultConfig().Vision.DarkLevel, AnalyzerConfig(cfg).Vision.DarkLevel)
}

func TestRetrievalConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retrieval.ContextBudget = 800
	cfg.Retrieval.TopK = 3

	c := RetrievalConfig(cfg)
	assert.Equal(t, 800, c.Budget)
	assert.Equal(t, 3, c.TopK)
	assert.Equal(t, 50, c.TruncateMargin)
}

func TestNew(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Agent)
	assert.NotNil(t, a.Answerer)
	assert.False(t, a.Engine.Available())
	assert.Equal(t, "llama3:latest", a.LLM.Model())
}

func TestNew_BadLLMHost(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Host = "http://[::1"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func savedReport(t *testing.T) []byte {
	t.Helper()
	rep := &report.Report{
		Pages: []report.Page{{
			Number:   1,
			State:    report.PageAggregated,
			Analysis: analyzer.Analysis{PageNumber: 1, ContentType: analyzer.PlainText, Complexity: analyzer.Low},
			Result:   strategy.Result{Content: "營業收入 1,234,567 元", Method: strategy.MethodBasic, Success: true},
		}},
		Stats: report.Stats{PagesProcessed: 1, Successful: 1, Methods: map[strategy.Method]int{strategy.MethodBasic: 1}},
	}
	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf, report.Meta{Title: "q1", Generated: time.Now()}, rep))
	return buf.Bytes()
}

func TestLoadTree_SavedReport(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "q1.txt")
	require.NoError(t, os.WriteFile(path, savedReport(t), 0o644))

	tree, err := a.LoadTree(context.Background(), "A", path)
	require.NoError(t, err)
	assert.Equal(t, "A", tree.ID)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, 1, tree.Children[0].Page)
	assert.Contains(t, tree.Children[0].Text, "營業收入")

	sess := a.NewSession([]*doctree.DocTree{tree})
	sel := sess.Selector.Select("營業收入")
	assert.Contains(t, sel.Context, "報告A")
}

func TestLoadTree_UnsupportedExtension(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	_, err = a.LoadTree(context.Background(), "A", "report.docx")
	assert.Error(t, err)
}
