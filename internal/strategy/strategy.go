// Package strategy chooses and runs the text extraction strategy for a page.
package strategy

import (
	"fmt"

	"github.com/dgallion1/fingest/internal/analyzer"
)

// Kind is an extraction strategy.
type Kind int

const (
	Basic Kind = iota
	Structured
	Recognition
	Hybrid
)

func (k Kind) String() string {
	switch k {
	case Basic:
		return "basic"
	case Structured:
		return "structured"
	case Recognition:
		return "recognition"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "basic":
		*k = Basic
	case "structured":
		*k = Structured
	case "recognition":
		*k = Recognition
	case "hybrid":
		*k = Hybrid
	default:
		return fmt.Errorf("unknown strategy %q", b)
	}
	return nil
}

// Select maps a page classification to a strategy. It is total and has no
// side effects.
func Select(ct analyzer.ContentType, cx analyzer.Complexity, recognitionAvailable bool) Kind {
	switch ct {
	case analyzer.ComplexFinancialTable:
		if recognitionAvailable {
			return Recognition
		}
		return Hybrid
	case analyzer.FinancialContent:
		if cx == analyzer.High {
			return Hybrid
		}
		return Basic
	case analyzer.StructuredText:
		return Structured
	case analyzer.PlainText, analyzer.MinimalContent, analyzer.Unknown:
		return Basic
	default:
		return Basic
	}
}

// Recommend is Select for a full analysis. Degraded analyses always get
// Basic.
func Recommend(a analyzer.Analysis, recognitionAvailable bool) Kind {
	if a.Fallback {
		return Basic
	}
	return Select(a.ContentType, a.Complexity, recognitionAvailable)
}
