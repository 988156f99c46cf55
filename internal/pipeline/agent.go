package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/extract"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/strategy"
)

// Options tune a single run.
type Options struct {
	PageWorkers int
	// OnPage is called after each page is aggregated. It may be called
	// from several goroutines.
	OnPage func(rec report.Page, done, total int)
}

// Agent drives a document through analysis, extraction and fact mining.
type Agent struct {
	analyzer  *analyzer.Analyzer
	extractor *strategy.Extractor
	facts     *extract.Extractor
	log       *slog.Logger
}

func NewAgent(an *analyzer.Analyzer, ex *strategy.Extractor, facts *extract.Extractor, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.Default()
	}
	return &Agent{analyzer: an, extractor: ex, facts: facts, log: log}
}

// Process runs every page of doc. Page failures are recorded in the
// result; only a document without pages or a cancelled context returns
// an error.
func (a *Agent) Process(ctx context.Context, doc parser.Document, opts Options) (*report.Report, error) {
	total := doc.NumPages()
	if total <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", parser.ErrUnreadable)
	}
	workers := opts.PageWorkers
	if workers <= 0 {
		workers = 1
	}
	recognition := a.extractor.EngineAvailable()
	a.log.Info("processing document", "pages", total, "page_workers", workers, "recognition", recognition)

	records := make([]report.Page, total)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range total {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = a.processPage(gctx, doc, i+1, recognition)
			n := int(done.Add(1))
			if opts.OnPage != nil {
				opts.OnPage(records[i], n, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("process document: %w", err)
	}

	res := &report.Report{Pages: records, Stats: report.Stats{Methods: map[strategy.Method]int{}}}
	for _, rec := range records {
		res.Stats.PagesProcessed++
		res.Stats.Methods[rec.Result.Method]++
		if rec.Result.Success {
			res.Stats.Successful++
		}
		if rec.Result.IsFinancialTable {
			res.Stats.FinancialTablesFound++
		}
		res.Facts = append(res.Facts, rec.Facts...)
	}
	a.log.Info("document processed",
		"pages", res.Stats.PagesProcessed,
		"successful", res.Stats.Successful,
		"financial_tables", res.Stats.FinancialTablesFound,
		"facts", len(res.Facts),
	)
	return res, nil
}

func (a *Agent) processPage(ctx context.Context, doc parser.Document, num int, recognition bool) (rec report.Page) {
	log := a.log.With("page", num)
	rec = report.Page{Number: num, State: report.PagePending, Analysis: analyzer.Degraded(num)}
	defer func() {
		if r := recover(); r != nil {
			log.Error("page panicked", "state", rec.State, "panic", r)
			rec.Result = strategy.Result{Method: strategy.MethodFailed}
			rec.Facts = nil
			rec.Error = fmt.Sprintf("panic during %s: %v", rec.State, r)
		}
		rec.State = report.PageAggregated
	}()

	page, err := doc.Page(num)
	if err != nil {
		log.Warn("page load failed", "error", err)
		rec.Result = strategy.Result{Method: strategy.MethodFailed}
		rec.Error = err.Error()
		return rec
	}

	rec.State = report.PageAnalyzing
	rec.Analysis = a.analyzer.Analyze(ctx, page)

	rec.State = report.PageExtracting
	kind := strategy.Recommend(rec.Analysis, recognition)
	rec.Result = a.extractor.Extract(ctx, page, kind, rec.Analysis)

	rec.State = report.PageFactExtracting
	rec.Facts = a.facts.Extract(rec.Result.Content, num)

	log.Debug("page done",
		"content_type", rec.Analysis.ContentType,
		"strategy", rec.Result.Strategy.String(),
		"method", rec.Result.Method,
		"chars", len([]rune(rec.Result.Content)),
		"facts", len(rec.Facts),
	)
	return rec
}
