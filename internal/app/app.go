// Package app wires configuration into the ingestion, retrieval and answer
// components shared by the CLI and the HTTP server.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/chunker"
	"github.com/dgallion1/fingest/internal/config"
	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/dgallion1/fingest/internal/extract"
	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/llm"
	"github.com/dgallion1/fingest/internal/ocr"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/pipeline"
	"github.com/dgallion1/fingest/internal/postprocess"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/retrieval"
	"github.com/dgallion1/fingest/internal/store"
	"github.com/dgallion1/fingest/internal/strategy"
	"github.com/dgallion1/fingest/internal/vision"
)

// App holds the long-lived components built from one Config.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Engine    ocr.Engine
	Agent     *pipeline.Agent
	Synonyms  retrieval.Synonyms
	Segmenter retrieval.Segmenter
	LLM       *llm.Client
	Answerer  *llm.Answerer
}

// New builds every component. Recognition and the language model are
// optional at run time; New only fails on invalid settings.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		Config:    cfg,
		Log:       log,
		Synonyms:  retrieval.DefaultSynonyms(),
		Segmenter: retrieval.NewSegmenter(cfg.Retrieval.Segmenter, log),
	}

	a.Engine = ocr.NewTesseract(ocr.Config{
		Enabled:     cfg.OCR.Enabled,
		Binary:      cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		TessdataDir: cfg.OCR.TessdataDir,
	}, nil, log.With("component", "ocr"))

	facts, err := extract.New(extract.DefaultPatterns())
	if err != nil {
		return nil, fmt.Errorf("fact patterns: %w", err)
	}
	an := analyzer.New(AnalyzerConfig(cfg), analyzer.DefaultTables(), log.With("component", "analyzer"))
	ex := strategy.NewExtractor(StrategyConfig(cfg), a.Engine,
		postprocess.New(postprocess.DefaultTables()), log.With("component", "strategy"))
	a.Agent = pipeline.NewAgent(an, ex, facts, log)

	client, err := llm.NewClient(llm.Config{
		Host:        cfg.LLM.Host,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		Temperature: cfg.LLM.Temperature,
	}, llm.NewLLMStats(time.Hour), log.With("component", "llm"))
	if err != nil {
		return nil, err
	}
	a.LLM = client
	a.Answerer = llm.NewAnswerer(client, log)
	return a, nil
}

func AnalyzerConfig(cfg config.Config) analyzer.Config {
	c := analyzer.DefaultConfig()
	ac := cfg.Analyzer
	c.KeywordComplexMin = ac.KeywordComplexMin
	c.KeywordFinancialMin = ac.KeywordFinancialMin
	c.TableBlockRatio = ac.TableBlockRatio
	c.AlignedDistinctRatio = ac.AlignedDistinctRatio
	c.StructuredMinBlocks = ac.StructuredMinBlocks
	c.StructuredMinFontVariance = ac.StructuredMinFontVariance
	c.PlainTextMinChars = ac.PlainTextMinChars
	c.ComplexityDensityMin = ac.ComplexityDensityMin
	c.ComplexityFontVarianceMin = ac.ComplexityFontVarianceMin
	c.ComplexityLineCountMin = ac.ComplexityLineCountMin
	c.ComplexityHighScore = ac.ComplexityHighScore
	c.ComplexityMediumScore = ac.ComplexityMediumScore
	c.RenderScale = ac.RenderScale
	if ac.LineSegmentsMin > 0 {
		c.Vision.MinSegments = ac.LineSegmentsMin
	}
	if ac.DarkPixelLevel > 0 && ac.DarkPixelLevel < 256 {
		c.Vision.DarkLevel = uint8(ac.DarkPixelLevel)
	}
	return c
}

func StrategyConfig(cfg config.Config) strategy.Config {
	c := strategy.DefaultConfig()
	sc := cfg.Strategy
	c.MinSuccessChars = sc.MinSuccessChars
	c.SectionMinChars = sc.SectionMinChars
	c.HybridMinTotal = sc.HybridMinTotal
	c.RecognitionMinChars = sc.RecognitionMinChars
	c.RenderScale = cfg.OCR.RenderScale
	c.Enhance = vision.DefaultEnhanceOptions()
	return c
}

func RetrievalConfig(cfg config.Config) retrieval.Config {
	c := retrieval.DefaultConfig()
	rc := cfg.Retrieval
	c.MaxFeatures = rc.MaxFeatures
	c.TopK = rc.TopK
	c.Threshold = rc.Threshold
	c.Candidates = rc.Candidates
	c.FallbackTop = rc.FallbackTop
	c.Budget = rc.ContextBudget
	c.TruncateMin = rc.TruncateMin
	return c
}

func ChunkConfig(cfg config.Config) chunker.Config {
	return chunker.Config{ChunkSize: cfg.Chunk.Size}
}

func (a *App) PDFOptions() parser.PDFOptions {
	return parser.PDFOptions{
		FallbackPdftotext: true,
		Layout:            layout.DefaultOptions(),
		Log:               a.Log.With("component", "parser"),
	}
}

// Opener opens uploaded PDFs for the ingest queue.
func (a *App) Opener() pipeline.DocumentOpener {
	return pipeline.PDFOpener(a.PDFOptions())
}

// IngestFile runs the agent over the PDF at path.
func (a *App) IngestFile(ctx context.Context, path string) (*report.Report, report.Meta, error) {
	meta := report.Meta{
		Title:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source:    filepath.Base(path),
		Generated: time.Now(),
	}
	doc, err := parser.OpenPDF(ctx, path, a.PDFOptions())
	if err != nil {
		return nil, meta, fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()

	rep, err := a.Agent.Process(ctx, doc, pipeline.Options{PageWorkers: a.Config.PageWorkers})
	if err != nil {
		return nil, meta, err
	}
	return rep, meta, nil
}

// LoadTree reads path as a retrieval document labeled id. PDFs are
// ingested; .txt and .md files are read as saved reports.
func (a *App) LoadTree(ctx context.Context, id, path string) (*doctree.DocTree, error) {
	if parser.IsPDF(path) {
		rep, meta, err := a.IngestFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return report.Tree(id, meta, rep), nil
	}
	p, err := parser.ForReport(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReport(p, f, id, filepath.Base(path))
}

// ParseReport reads a saved report and labels it id.
func ParseReport(p parser.Parser, r io.Reader, id, filename string) (*doctree.DocTree, error) {
	tree, err := p.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("parse report %s: %w", filename, err)
	}
	tree.ID = id
	return tree, nil
}

// NewSession indexes trees for context selection.
func (a *App) NewSession(trees []*doctree.DocTree) *retrieval.Session {
	return retrieval.NewSession(trees, ChunkConfig(a.Config), RetrievalConfig(a.Config), a.Synonyms, a.Segmenter, a.Log)
}

// ErrNoDetail means a cached document has only its text report.
var ErrNoDetail = errors.New("report detail not stored")

// RenderStored writes a cached document's report in format f. Text is the
// stored report as written; other formats are rendered from the detail.
func RenderStored(w io.Writer, doc store.Document, f report.Format) error {
	if f == report.FormatText {
		_, err := io.WriteString(w, doc.Report)
		return err
	}
	if len(doc.Detail) == 0 {
		return fmt.Errorf("%w: %s", ErrNoDetail, doc.ID)
	}
	var rep report.Report
	if err := json.Unmarshal(doc.Detail, &rep); err != nil {
		return fmt.Errorf("decode stored report %s: %w", doc.ID, err)
	}
	meta := report.Meta{Title: doc.Title, Source: doc.Filename, Generated: doc.CreatedAt}
	return report.Write(w, f, meta, &rep)
}
