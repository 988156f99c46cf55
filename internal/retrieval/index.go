// Package retrieval ranks report chunks against a question and packs the
// best ones into a bounded context.
package retrieval

import (
	"cmp"
	"math"
	"slices"

	"github.com/dgallion1/fingest/internal/doctree"
)

// Result is a ranked chunk.
type Result struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	ChunkID    int     `json:"chunk_id"`
	Score      float64 `json:"similarity_score"` // cosine in [0,1]; unbounded for keyword fallback
	Length     int     `json:"length"`
}

type entry struct {
	col int
	w   float64
}

// Index is a fitted TF-IDF model over a fixed chunk list. Row i of the
// matrix belongs to chunks[i]; a different chunk list needs a new Index.
type Index struct {
	chunks   []doctree.Chunk
	synonyms Synonyms
	vocab    map[string]int
	idf      []float64
	rows     [][]entry
}

// BuildIndex fits the vocabulary and weights. maxFeatures caps the
// vocabulary to the most frequent terms across the corpus.
func BuildIndex(chunks []doctree.Chunk, synonyms Synonyms, maxFeatures int) *Index {
	idx := &Index{
		chunks:   slices.Clone(chunks),
		synonyms: synonyms,
		vocab:    map[string]int{},
	}
	if len(chunks) == 0 {
		return idx
	}

	docs := make([]map[string]int, len(chunks))
	total := map[string]int{}
	df := map[string]int{}
	for i, c := range chunks {
		counts := map[string]int{}
		for _, f := range features(synonyms.Expand(c.Text)) {
			counts[f]++
		}
		for f, n := range counts {
			total[f] += n
			df[f]++
		}
		docs[i] = counts
	}

	terms := make([]string, 0, len(total))
	for f := range total {
		terms = append(terms, f)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(total[b], total[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	slices.Sort(terms)

	n := float64(len(chunks))
	idx.idf = make([]float64, len(terms))
	for i, t := range terms {
		idx.vocab[t] = i
		idx.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	idx.rows = make([][]entry, len(chunks))
	for i, counts := range docs {
		idx.rows[i] = idx.weigh(counts)
	}
	return idx
}

// Len is the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Chunks returns the indexed chunks in row order.
func (idx *Index) Chunks() []doctree.Chunk { return idx.chunks }

// weigh turns raw counts into an L2-normalized tf-idf row over the vocabulary.
func (idx *Index) weigh(counts map[string]int) []entry {
	var row []entry
	norm := 0.0
	for f, n := range counts {
		col, ok := idx.vocab[f]
		if !ok {
			continue
		}
		w := float64(n) * idx.idf[col]
		row = append(row, entry{col: col, w: w})
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for i := range row {
		row[i].w /= norm
	}
	slices.SortFunc(row, func(a, b entry) int { return cmp.Compare(a.col, b.col) })
	return row
}

// Search returns up to k chunks with cosine similarity at least threshold,
// best first. Ties keep chunk order. It never fails; an empty index or a
// query with no known terms gives nil.
func (idx *Index) Search(query string, k int, threshold float64) []Result {
	if len(idx.chunks) == 0 || k <= 0 {
		return nil
	}
	counts := map[string]int{}
	for _, f := range features(idx.synonyms.Expand(query)) {
		counts[f]++
	}
	q := idx.weigh(counts)
	if len(q) == 0 {
		return nil
	}
	qv := make(map[int]float64, len(q))
	for _, e := range q {
		qv[e.col] = e.w
	}

	type scored struct {
		i     int
		score float64
	}
	all := make([]scored, len(idx.rows))
	for i, row := range idx.rows {
		s := 0.0
		for _, e := range row {
			s += e.w * qv[e.col]
		}
		all[i] = scored{i: i, score: s}
	}
	slices.SortStableFunc(all, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	var out []Result
	for _, s := range all[:min(k, len(all))] {
		if s.score < threshold {
			continue
		}
		out = append(out, newResult(idx.chunks[s.i], s.score))
	}
	return out
}

func newResult(c doctree.Chunk, score float64) Result {
	return Result{
		Text:       c.Text,
		DocumentID: c.DocumentID,
		ChunkID:    c.ChunkID,
		Score:      score,
		Length:     runeLen(c.Text),
	}
}
