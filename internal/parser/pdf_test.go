package parser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPdftotext_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &PDFDocument{
		ctx:  ctx,
		path: "missing.pdf",
		opts: PDFOptions{FallbackPdftotext: true, PdftotextTimeout: time.Second},
	}

	start := time.Now()
	_, err := (&pdfPage{doc: d, num: 1}).pdftotext()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("expected cancelled fallback to return immediately")
	}
}

func TestPdftotext_Disabled(t *testing.T) {
	d := &PDFDocument{ctx: context.Background(), path: "missing.pdf"}
	if _, err := (&pdfPage{doc: d, num: 1}).pdftotext(); err == nil {
		t.Error("expected error when fallback is disabled")
	}
}
