package retrieval

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Separator joins packed chunks.
const Separator = "\n\n"

// Ellipsis ends a truncated chunk.
const Ellipsis = "..."

type Config struct {
	MaxFeatures    int
	TopK           int // results returned by Search
	Threshold      float64
	Candidates     int // vector search depth for Select
	FallbackTop    int
	Budget         int // rune budget for the packed context, labels included
	TruncateMin    int // truncate only when more than this many runes remain
	TruncateMargin int // runes given up when truncating
}

func DefaultConfig() Config {
	return Config{
		MaxFeatures:    5000,
		TopK:           5,
		Threshold:      0.1,
		Candidates:     15,
		FallbackTop:    10,
		Budget:         15000,
		TruncateMin:    200,
		TruncateMargin: 50,
	}
}

// Selection is the packed context for one query.
type Selection struct {
	Context  string   `json:"context"`
	Chunks   []Result `json:"chunks"`
	Fallback bool     `json:"fallback"` // keyword scoring was used
}

// Selector ranks and packs chunks from one index.
type Selector struct {
	idx *Index
	seg Segmenter
	cfg Config
	log *slog.Logger
}

func NewSelector(idx *Index, seg Segmenter, cfg Config, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	if seg == nil {
		seg = SimpleSegmenter{}
	}
	return &Selector{idx: idx, seg: seg, cfg: cfg, log: log}
}

// Label is the heading written above a chunk from document id.
func Label(id string) string { return "報告" + id }

// Search returns the TopK chunks scoring at least Threshold for query,
// without keyword fallback or packing.
func (s *Selector) Search(query string) []Result {
	return s.idx.Search(query, s.cfg.TopK, s.cfg.Threshold)
}

// Select ranks chunks for query and packs them in rank order into at most
// Budget runes. When the next chunk does not fit and more than TruncateMin
// runes remain, it is cut to fit and ends with Ellipsis; packing then stops.
func (s *Selector) Select(query string) Selection {
	results := s.idx.Search(query, s.cfg.Candidates, s.cfg.Threshold)
	sel := Selection{}
	if len(results) == 0 {
		results = KeywordSearch(s.idx.Chunks(), query, s.seg, s.cfg.FallbackTop)
		sel.Fallback = true
	}

	var sb strings.Builder
	used := 0
	for _, r := range results {
		head := Label(r.DocumentID) + "\n"
		overhead := utf8.RuneCountInString(head)
		if used > 0 {
			overhead += utf8.RuneCountInString(Separator)
		}
		if used+overhead+r.Length <= s.cfg.Budget {
			used += s.write(&sb, used > 0, head, r.Text)
			sel.Chunks = append(sel.Chunks, r)
			continue
		}
		remaining := s.cfg.Budget - used - overhead
		if remaining > s.cfg.TruncateMin {
			r.Text = truncateRunes(r.Text, remaining-s.cfg.TruncateMargin) + Ellipsis
			r.Length = utf8.RuneCountInString(r.Text)
			used += s.write(&sb, used > 0, head, r.Text)
			sel.Chunks = append(sel.Chunks, r)
		}
		break
	}
	sel.Context = sb.String()

	s.log.Debug("context selected",
		"query_len", utf8.RuneCountInString(query),
		"candidates", len(results),
		"selected", len(sel.Chunks),
		"runes", used,
		"fallback", sel.Fallback,
	)
	return sel
}

func (s *Selector) write(sb *strings.Builder, sep bool, head, text string) int {
	n := 0
	if sep {
		sb.WriteString(Separator)
		n += utf8.RuneCountInString(Separator)
	}
	sb.WriteString(head)
	sb.WriteString(text)
	return n + utf8.RuneCountInString(head) + utf8.RuneCountInString(text)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Describe summarizes a selection for logs and the CLI.
func (sel Selection) Describe() string {
	mode := "tf-idf"
	if sel.Fallback {
		mode = "keyword"
	}
	return fmt.Sprintf("%d chunks, %d runes, %s ranking", len(sel.Chunks), utf8.RuneCountInString(sel.Context), mode)
}
