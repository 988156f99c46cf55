package report

import (
	"strings"

	"github.com/dgallion1/fingest/internal/analyzer"
	"github.com/dgallion1/fingest/internal/extract"
	"github.com/dgallion1/fingest/internal/strategy"
)

// PageState is the lifecycle of one page inside a document run.
type PageState string

const (
	PagePending        PageState = "pending"
	PageAnalyzing      PageState = "analyzing"
	PageExtracting     PageState = "extracting"
	PageFactExtracting PageState = "fact_extracting"
	PageAggregated     PageState = "aggregated"
)

// Page is everything produced for one page.
type Page struct {
	Number   int               `json:"page_number"`
	State    PageState         `json:"state"`
	Analysis analyzer.Analysis `json:"analysis"`
	Result   strategy.Result   `json:"result"`
	Facts    []extract.Fact    `json:"facts,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Stats are computed once all pages are aggregated.
type Stats struct {
	PagesProcessed       int                     `json:"pages_processed"`
	Successful           int                     `json:"successful"`
	FinancialTablesFound int                     `json:"financial_tables_found"`
	Methods              map[strategy.Method]int `json:"methods"`
}

// SuccessRate is successful pages over processed pages, 0 for an empty run.
func (s Stats) SuccessRate() float64 {
	if s.PagesProcessed == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.PagesProcessed)
}

// Report is the outcome of one document run. Pages are in page order.
type Report struct {
	Pages []Page         `json:"pages"`
	Facts []extract.Fact `json:"facts"`
	Stats Stats          `json:"stats"`
}

// Text joins the content of every page, in page order.
func (r *Report) Text() string {
	var sb strings.Builder
	for _, p := range r.Pages {
		if p.Result.Content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Result.Content)
	}
	return sb.String()
}

