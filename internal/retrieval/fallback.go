package retrieval

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/go-ego/gse"
)

// Segmenter splits a query into words for keyword scoring.
type Segmenter interface {
	Cut(text string) []string
}

// GSESegmenter uses the gse dictionary segmenter. The dictionary loads on
// first use; if it cannot load, Cut falls back to SimpleSegmenter.
type GSESegmenter struct {
	log  *slog.Logger
	once sync.Once
	seg  *gse.Segmenter
}

func NewGSESegmenter(log *slog.Logger) *GSESegmenter {
	if log == nil {
		log = slog.Default()
	}
	return &GSESegmenter{log: log}
}

func (g *GSESegmenter) Cut(text string) []string {
	g.once.Do(func() {
		seg, err := gse.New()
		if err != nil {
			g.log.Warn("gse dictionary load failed, using simple segmenter", "error", err)
			return
		}
		g.seg = &seg
	})
	if g.seg == nil {
		return SimpleSegmenter{}.Cut(text)
	}
	return g.seg.Cut(text, true)
}

// SimpleSegmenter cuts with Tokenize: latin words and CJK bigrams.
type SimpleSegmenter struct{}

func (SimpleSegmenter) Cut(text string) []string { return Tokenize(text) }

// NewSegmenter returns the segmenter named by kind ("gse" or "simple").
func NewSegmenter(kind string, log *slog.Logger) Segmenter {
	if kind == "simple" {
		return SimpleSegmenter{}
	}
	return NewGSESegmenter(log)
}

var digitsRe = regexp.MustCompile(`\d+`)

// KeywordSearch scores each chunk by twice the occurrences of every query
// word longer than one rune plus 0.1 per number in the chunk. Scores are
// divided by 10; chunks scoring zero are dropped; the top n are returned.
func KeywordSearch(chunks []doctree.Chunk, query string, seg Segmenter, n int) []Result {
	var words []string
	for _, w := range seg.Cut(query) {
		w = strings.ToLower(strings.TrimSpace(w))
		if utf8.RuneCountInString(w) > 1 {
			words = append(words, w)
		}
	}

	var out []Result
	for _, c := range chunks {
		lower := strings.ToLower(c.Text)
		score := 0.0
		for _, w := range words {
			score += float64(strings.Count(lower, w)) * 2
		}
		score += float64(len(digitsRe.FindAllStringIndex(c.Text, -1))) * 0.1
		if score > 0 {
			out = append(out, newResult(c, score/10))
		}
	}
	slices.SortStableFunc(out, func(a, b Result) int { return cmp.Compare(b.Score, a.Score) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
