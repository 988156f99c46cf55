package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/fingest/internal/app"
	"github.com/dgallion1/fingest/internal/parser"
	"github.com/dgallion1/fingest/internal/pipeline"
	"github.com/dgallion1/fingest/internal/report"
	"github.com/dgallion1/fingest/internal/store"
)

var (
	ingestOutput string
	ingestFormat string
	ingestTitle  string
	ingestForce  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pdf>",
	Short: "Extract a financial report PDF into a text report",
	Long: `Extract every page of a PDF and write the extraction report.

The report lists run statistics, the key figures found, extraction
diagnostics, and one framed section per page with its content. With --db
set, reports are cached by content hash and a repeated file is served from
the cache unless --force is given.

Examples:
  fingest ingest annual-2024.pdf                   # writes outputs/annual-2024.txt
  fingest ingest annual-2024.pdf -o -              # report to stdout
  fingest ingest annual-2024.pdf --format html -o report.html
  fingest ingest annual-2024.pdf --db fingest.db --force`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVarP(&ingestOutput, "output", "o", "", `output path, "-" for stdout (default: <output_dir>/<name><ext>)`)
	f.StringVar(&ingestFormat, "format", "text", "report format: text, markdown or html")
	f.StringVar(&ingestTitle, "title", "", "report title (default: file name)")
	f.BoolVar(&ingestForce, "force", false, "re-extract even if the file is cached")
	f.String("db", "", "SQLite cache path (default: no cache)")
	f.Bool("ocr", true, "use image recognition for complex tables when available")
	f.String("tesseract", "tesseract", "tesseract binary")
	f.Int("page-workers", 1, "pages extracted concurrently")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cliLogger(cfg)

	format, err := report.ParseFormat(ingestFormat)
	if err != nil {
		return err
	}
	path := args[0]
	if !parser.IsPDF(path) {
		return fmt.Errorf("%s: not a PDF", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	// An empty DBPath is a private in-memory cache for this run.
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	job := pipeline.NewJob(filepath.Base(path), ingestTitle, data)
	job.Force = ingestForce
	pipeline.NewWorker(a.Agent, st, a.Opener(), cfg.PageWorkers, log).Process(ctx, job)

	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted, pipeline.StatusDupSkipped:
	default:
		return fmt.Errorf("ingest %s failed during %s: %s", path, snap.Phase, strings.Join(snap.Progress.Errors, "; "))
	}

	doc, err := st.Get(ctx, snap.DocID)
	if err != nil {
		return err
	}

	out, dest, err := openOutput(cmd.OutOrStdout(), ingestOutput, cfg.OutputDir, path, format)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := app.RenderStored(out, doc, format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	log.Info("report written",
		"output", dest,
		"cached", snap.Status == pipeline.StatusDupSkipped,
		"pages", doc.Pages,
		"success_rate", fmt.Sprintf("%.1f%%", doc.SuccessRate*100),
		"financial_tables", doc.FinancialTables,
		"facts", len(doc.Facts),
	)
	for _, e := range snap.Progress.Errors {
		log.Warn("page failed", "error", e)
	}
	return nil
}

// openOutput resolves the report destination. "-" is stdout.
func openOutput(stdout io.Writer, output, dir, src string, f report.Format) (io.WriteCloser, string, error) {
	if output == "-" {
		return nopCloser{stdout}, "stdout", nil
	}
	if output == "" {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		output = filepath.Join(dir, name+f.Ext())
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, "", err
	}
	fh, err := os.Create(output)
	if err != nil {
		return nil, "", err
	}
	return fh, output, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
