// Package ocr wraps the optical character recognition engine. The only
// engine shipped is the Tesseract command-line tool.
package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
)

// Profile is one page-segmentation configuration of the engine.
type Profile struct {
	Name string
	PSM  int
}

var (
	DenseText    = Profile{Name: "dense_text", PSM: 3}
	SparseText   = Profile{Name: "sparse_text", PSM: 11}
	UniformBlock = Profile{Name: "uniform_block", PSM: 6}
	TableColumns = Profile{Name: "table_columns", PSM: 4}
)

// Profiles returns the profiles a recognition pass tries, in order.
func Profiles() []Profile {
	return []Profile{DenseText, SparseText, UniformBlock, TableColumns}
}

// Engine recognizes text in a page image. Availability is a capability
// check; callers skip recognition when it reports false.
type Engine interface {
	Available() bool
	Recognize(ctx context.Context, img image.Image, p Profile) (string, error)
}

type Config struct {
	Enabled     bool
	Binary      string // executable name or path, default "tesseract"
	Lang        string // default "chi_tra+eng"
	TessdataDir string
	OEM         int // default 3 (LSTM + legacy)
}

// Tesseract runs the tesseract CLI on a PNG written to a temp file.
type Tesseract struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	log      *slog.Logger

	once  sync.Once
	avail bool
}

// NewTesseract returns an engine using runner, or an ExecRunner when runner
// is nil.
func NewTesseract(cfg Config, runner Runner, log *slog.Logger) *Tesseract {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_tra+eng"
	}
	if cfg.OEM == 0 {
		cfg.OEM = 3
	}
	if runner == nil {
		runner = ExecRunner{Log: log}
	}
	return &Tesseract{cfg: cfg, runner: runner, lookPath: exec.LookPath, log: log}
}

// Available reports whether recognition is enabled and the binary resolves.
// The lookup runs once.
func (t *Tesseract) Available() bool {
	t.once.Do(func() {
		if !t.cfg.Enabled {
			return
		}
		path, err := t.lookPath(t.cfg.Binary)
		if err != nil {
			t.log.Info("recognition engine not found, recognition disabled", "binary", t.cfg.Binary)
			return
		}
		t.cfg.Binary = path
		t.avail = true
	})
	return t.avail
}

func (t *Tesseract) Recognize(ctx context.Context, img image.Image, p Profile) (string, error) {
	if !t.Available() {
		return "", fmt.Errorf("tesseract: not available")
	}
	dir, err := os.MkdirTemp("", "fingest-ocr-*")
	if err != nil {
		return "", fmt.Errorf("tesseract: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "page.png")
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return "", fmt.Errorf("tesseract: write image: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path, p)...)
	if err != nil {
		return "", fmt.Errorf("tesseract %s: %w: %s", p.Name, err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// tesseract <file> stdout -l <lang> --oem N --psm N [--tessdata-dir D]
func (t *Tesseract) args(path string, p Profile) []string {
	args := []string{path, "stdout", "-l", t.cfg.Lang,
		"--oem", strconv.Itoa(t.cfg.OEM),
		"--psm", strconv.Itoa(p.PSM),
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}
