package strategy

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/layout"
	"github.com/dgallion1/fingest/internal/ocr"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/postprocess"
	"github.com/dgallion1/fingest/internal/vision"
)

// Method records what actually produced a page's content. It differs from
// the chosen Kind when recognition falls back to the text layer.
type Method string

const (
	MethodBasic       Method = "basic"
	MethodStructured  Method = "structured"
	MethodRecognition Method = "recognition"
	MethodHybrid      Method = "hybrid"
	MethodFailed      Method = "failed"
)

// Result is the outcome of extracting one page.
type Result struct {
	Content          string `json:"content"`
	Method           Method `json:"method"`
	Strategy         Kind   `json:"strategy"`
	Profile          string `json:"profile,omitempty"` // winning recognition profile
	IsFinancialTable bool   `json:"is_financial_table"`
	Success          bool   `json:"success"`
}

// Section labels used by Hybrid.
const (
	LabelText        = "[文字層]"
	LabelLayout      = "[版面結構]"
	LabelRecognition = "[影像辨識]"
)

type Config struct {
	MinSuccessChars     int // content shorter than this is not a success
	SectionMinChars     int // hybrid sections must be longer than this
	HybridMinTotal      int // below this hybrid adds a recognition pass
	RecognitionMinChars int // recognition output must be longer than this
	RenderScale         float64
	Enhance             vision.EnhanceOptions
	Layout              layout.Options
}

func DefaultConfig() Config {
	return Config{
		MinSuccessChars:     50,
		SectionMinChars:     100,
		HybridMinTotal:      500,
		RecognitionMinChars: 100,
		RenderScale:         3,
		Enhance:             vision.DefaultEnhanceOptions(),
		Layout:              layout.DefaultOptions(),
	}
}

// Extractor runs strategies against pages. The engine may be nil.
type Extractor struct {
	cfg    Config
	engine ocr.Engine
	post   *postprocess.Processor
	log    *slog.Logger
}

func NewExtractor(cfg Config, engine ocr.Engine, post *postprocess.Processor, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	if post == nil {
		post = postprocess.New(postprocess.DefaultTables())
	}
	if cfg.RenderScale < 3 {
		cfg.RenderScale = 3
	}
	return &Extractor{cfg: cfg, engine: engine, post: post, log: log}
}

// EngineAvailable reports whether recognition can run.
func (e *Extractor) EngineAvailable() bool {
	return e.engine != nil && e.engine.Available()
}

// Extract runs kind on page. Failures inside a strategy produce empty
// content, never an error.
func (e *Extractor) Extract(ctx context.Context, page parser.Page, kind Kind, an analyzer.Analysis) (res Result) {
	res = Result{
		Strategy:         kind,
		IsFinancialTable: an.ContentType == analyzer.ComplexFinancialTable,
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("extraction panicked", "page", page.Number(), "strategy", kind.String(), "panic", r)
			res.Content = ""
		}
		res.Success = utf8.RuneCountInString(res.Content) >= e.cfg.MinSuccessChars
	}()

	switch kind {
	case Structured:
		res.Method = MethodStructured
		res.Content = e.structured(page)
	case Recognition:
		res.Method = MethodRecognition
		text, profile := e.recognize(ctx, page)
		if text == "" {
			res.Method = MethodBasic
			res.Content = e.basic(page)
			return res
		}
		res.Profile = profile
		res.Content = e.post.CleanRecognized(text)
	case Hybrid:
		res.Method = MethodHybrid
		res.Content = e.hybrid(ctx, page)
	default:
		res.Method = MethodBasic
		res.Content = e.basic(page)
	}
	return res
}

func (e *Extractor) basic(page parser.Page) string {
	text, err := page.Text()
	if err != nil {
		e.log.Debug("text layer unavailable", "page", page.Number(), "error", err)
		return ""
	}
	return strings.TrimSpace(e.post.CleanText(text))
}

func (e *Extractor) structured(page parser.Page) string {
	spans, err := page.Spans()
	if err != nil {
		e.log.Debug("spans unavailable", "page", page.Number(), "error", err)
		return ""
	}
	lines := layout.GroupLines(spans, e.cfg.Layout)
	return strings.TrimSpace(e.post.CleanText(layout.Render(lines, columnSeparator)))
}

// columnSeparator sizes the gap between spans; wide gaps become column
// delimiters.
func columnSeparator(gap float64) string {
	switch {
	case gap > 60:
		return " | "
	case gap > 20:
		return "  "
	case gap > 8:
		return " "
	default:
		return ""
	}
}

// recognize renders and enhances the page, runs every profile and keeps the
// longest trimmed output above RecognitionMinChars.
func (e *Extractor) recognize(ctx context.Context, page parser.Page) (string, string) {
	if !e.EngineAvailable() {
		return "", ""
	}
	img, err := e.enhanced(page)
	if err != nil {
		return "", ""
	}

	var best, bestProfile string
	bestLen := e.cfg.RecognitionMinChars
	for _, p := range ocr.Profiles() {
		if ctx.Err() != nil {
			break
		}
		out, err := e.engine.Recognize(ctx, img, p)
		if err != nil {
			e.log.Debug("recognition profile failed", "page", page.Number(), "profile", p.Name, "error", err)
			continue
		}
		out = strings.TrimSpace(out)
		if n := utf8.RuneCountInString(out); n > bestLen {
			best, bestProfile, bestLen = out, p.Name, n
		}
	}
	return best, bestProfile
}

func (e *Extractor) enhanced(page parser.Page) (*image.Gray, error) {
	img, err := page.Render(e.cfg.RenderScale)
	if err != nil {
		e.log.Debug("render for recognition failed", "page", page.Number(), "error", err)
		return nil, err
	}
	return vision.Enhance(img, e.cfg.Enhance), nil
}

// hybrid labels each usable source so provenance stays visible.
func (e *Extractor) hybrid(ctx context.Context, page parser.Page) string {
	var sections []string
	total := 0
	add := func(label, text string) {
		sections = append(sections, label+"\n"+text)
		total += utf8.RuneCountInString(text)
	}

	if text := e.basic(page); utf8.RuneCountInString(text) > e.cfg.SectionMinChars {
		add(LabelText, text)
	}
	if text := e.structured(page); utf8.RuneCountInString(text) > e.cfg.SectionMinChars {
		add(LabelLayout, text)
	}
	if total < e.cfg.HybridMinTotal && e.EngineAvailable() {
		if text := e.recognizeOnce(ctx, page, ocr.DenseText); text != "" {
			add(LabelRecognition, e.post.CleanRecognized(text))
		}
	}
	return strings.Join(sections, "\n\n")
}

func (e *Extractor) recognizeOnce(ctx context.Context, page parser.Page, p ocr.Profile) string {
	img, err := e.enhanced(page)
	if err != nil {
		return ""
	}
	out, err := e.engine.Recognize(ctx, img, p)
	if err != nil {
		e.log.Debug("recognition failed", "page", page.Number(), "profile", p.Name, "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}
