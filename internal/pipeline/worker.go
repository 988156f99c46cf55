package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/store"
)

// DocumentOpener turns uploaded bytes into a paged document.
// The context bounds work the document does after opening.
type DocumentOpener func(ctx context.Context, r io.Reader) (parser.Document, error)

// PDFOpener opens uploads as PDFs.
func PDFOpener(opts parser.PDFOptions) DocumentOpener {
	return func(ctx context.Context, r io.Reader) (parser.Document, error) {
		doc, err := parser.ReadPDF(ctx, r, opts)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Worker processes a single document job.
type Worker struct {
	agent       *Agent
	store       *store.Store
	open        DocumentOpener
	pageWorkers int
	log         *slog.Logger
}

func NewWorker(agent *Agent, st *store.Store, open DocumentOpener, pageWorkers int, log *slog.Logger) *Worker {
	return &Worker{
		agent:       agent,
		store:       st,
		open:        open,
		pageWorkers: pageWorkers,
		log:         log,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	// Phase 1: Dedup check
	if !job.Force {
		job.SetStatus(StatusParsing, "dedup")
		existing, err := w.store.FindByHash(ctx, job.ContentHash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
			job.SetDocID(existing.ID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Open
	job.SetStatus(StatusParsing, "opening document")
	doc, err := w.open(ctx, bytes.NewReader(job.FileData()))
	if err != nil {
		log.Error("open failed", "error", err)
		job.AddError(fmt.Sprintf("open: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	defer doc.Close()
	job.SetTotalPages(doc.NumPages())
	log.Info("document opened", "pages", doc.NumPages())

	// Phase 3: Pages
	job.SetStatus(StatusProcessing, "processing pages")
	rep, err := w.agent.Process(ctx, doc, Options{
		PageWorkers: w.pageWorkers,
		OnPage: func(p report.Page, done, total int) {
			job.PageDone(len(p.Facts))
			if p.Error != "" {
				job.AddError(fmt.Sprintf("page %d: %s", p.Number, p.Error))
			}
		},
	})
	if err != nil {
		log.Error("processing failed", "error", err)
		job.AddError(fmt.Sprintf("process: %s", err))
		job.SetStatus(StatusFailed, "processing")
		return
	}
	job.SetStats(rep.Stats)

	// Phase 4: Report and store
	job.SetStatus(StatusStoring, "storing")
	title := job.Title
	if title == "" {
		title = strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	}
	var buf bytes.Buffer
	meta := report.Meta{Title: title, Source: job.Filename, Generated: time.Now()}
	if err := report.WriteText(&buf, meta, rep); err != nil {
		log.Error("report failed", "error", err)
		job.AddError(fmt.Sprintf("report: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	detail, err := json.Marshal(rep)
	if err != nil {
		log.Error("encode report failed", "error", err)
		job.AddError(fmt.Sprintf("report: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	record := store.Document{
		ID:              job.DocID,
		Filename:        job.Filename,
		Title:           title,
		ContentHash:     job.ContentHash,
		Pages:           rep.Stats.PagesProcessed,
		Successful:      rep.Stats.Successful,
		FinancialTables: rep.Stats.FinancialTablesFound,
		SuccessRate:     rep.Stats.SuccessRate(),
		CreatedAt:       job.CreatedAt,
		Report:          buf.String(),
		Detail:          detail,
		Facts:           rep.Facts,
	}
	if err := w.store.Put(ctx, record); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	log.Info("ingest complete",
		"pages", rep.Stats.PagesProcessed,
		"success_rate", rep.Stats.SuccessRate(),
		"facts", len(rep.Facts),
	)
	job.SetStatus(StatusCompleted, "done")
}
