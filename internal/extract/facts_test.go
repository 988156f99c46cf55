package extract

import (
	"testing"
)

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultPatterns())
	if err != nil {
		t.Fatalf("compile default patterns: %v", err)
	}
	return e
}

func TestExtract_RevenueWithThousandsSeparators(t *testing.T) {
	facts := newExtractor(t).Extract("營業收入：1,234,567", 4)

	if len(facts) != 1 {
		t.Fatalf("expected 1 fact, got %d: %+v", len(facts), facts)
	}
	f := facts[0]
	if f.Category != Revenue {
		t.Errorf("expected revenue, got %s", f.Category)
	}
	if f.Value != 1234567.0 {
		t.Errorf("expected 1234567, got %v", f.Value)
	}
	if f.Page != 4 {
		t.Errorf("expected page 4, got %d", f.Page)
	}
	if f.Context != "營業收入：1,234,567" {
		t.Errorf("unexpected context %q", f.Context)
	}
}

func TestExtract_Categories(t *testing.T) {
	text := "本期淨利 (單位：千元) 88,000\n資產總額 5,000,000\n營業利益 12.5\n營業毛利 300\nEPS 3.21\nTotal Assets: 42"
	got := map[Category][]float64{}
	for _, f := range newExtractor(t).Extract(text, 1) {
		got[f.Category] = append(got[f.Category], f.Value)
	}

	want := map[Category][]float64{
		NetIncome:       {88000},
		TotalAssets:     {5000000, 42},
		OperatingIncome: {12.5},
		GrossProfit:     {300},
		EPS:             {3.21},
	}
	for cat, vals := range want {
		if len(got[cat]) != len(vals) {
			t.Errorf("%s: expected %v, got %v", cat, vals, got[cat])
			continue
		}
		for i := range vals {
			if got[cat][i] != vals[i] {
				t.Errorf("%s[%d]: expected %v, got %v", cat, i, vals[i], got[cat][i])
			}
		}
	}
}

func TestExtract_RatiosAreNotAmounts(t *testing.T) {
	facts := newExtractor(t).Extract("毛利率 45%\n淨利率：12%", 1)
	if len(facts) != 0 {
		t.Errorf("expected no facts from ratios, got %+v", facts)
	}
}

func TestExtract_UnparseableNumberSkipped(t *testing.T) {
	facts := newExtractor(t).Extract("營收 ,, 不詳", 1)
	if len(facts) != 0 {
		t.Errorf("expected comma-only capture to be skipped, got %+v", facts)
	}
}

func TestExtract_KeywordTooFarFromNumber(t *testing.T) {
	facts := newExtractor(t).Extract("營業收入"+"說明文字說明文字說明文字說明文字說明文字說明"+"100", 1)
	if len(facts) != 0 {
		t.Errorf("expected no fact past the 20 rune gap, got %+v", facts)
	}
}

func TestExtract_DuplicatesKept(t *testing.T) {
	facts := newExtractor(t).Extract("營收 100\n營收 100", 2)
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
}

func TestNew_RejectsBadPattern(t *testing.T) {
	if _, err := New([]Pattern{{Revenue, []string{`營收(`}}}); err == nil {
		t.Error("expected compile error")
	}
	if _, err := New([]Pattern{{Revenue, []string{`營收\d+`}}}); err == nil {
		t.Error("expected missing capture group error")
	}
}

func TestSummarize(t *testing.T) {
	facts := []Fact{
		{Category: Revenue, Value: 100},
		{Category: Revenue, Value: 100},
		{Category: Revenue, Value: 200},
		{Category: EPS, Value: 1.5},
	}
	s := Summarize(facts)
	if s[Revenue].Count != 3 || s[Revenue].Distinct != 2 {
		t.Errorf("unexpected revenue summary %+v", s[Revenue])
	}
	if s[EPS].Count != 1 || s[EPS].Distinct != 1 {
		t.Errorf("unexpected eps summary %+v", s[EPS])
	}
	if _, ok := s[NetIncome]; ok {
		t.Error("expected no entry for absent category")
	}
}

func TestExtract_CustomCategory(t *testing.T) {
	const dividend Category = "dividend"
	e, err := New([]Pattern{{dividend, []string{`股利[^\d\n]{0,5}?([\d,]+)`}}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	facts := e.Extract("現金股利 3，股票股利 3", 2)
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d: %+v", len(facts), facts)
	}
	if facts[0].Category != dividend || facts[0].Value != 3 || facts[0].Page != 2 {
		t.Errorf("unexpected fact %+v", facts[0])
	}
	s := Summarize(facts)
	if s[dividend].Count != 2 || s[dividend].Distinct != 1 {
		t.Errorf("unexpected dividend summary %+v", s[dividend])
	}
}
