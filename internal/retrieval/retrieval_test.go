package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/fingest/internal/chunker"
	"github.com/dgallion1/fingest/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(doc string, id int, text string) doctree.Chunk {
	return doctree.Chunk{Text: text, DocumentID: doc, ChunkID: id}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("營業收入 Revenue, 2023 a 成")
	assert.Equal(t, []string{"營業", "業收", "收入", "revenue", "2023", "成"}, got)
}

func TestSynonymsExpand(t *testing.T) {
	s := DefaultSynonyms()
	assert.Equal(t, "Revenue growth 營收 成長", s.Expand("Revenue growth"))
	assert.Equal(t, "營業收入 收入 營收", s.Expand("營業收入 收入"))
	assert.Equal(t, "董事會", s.Expand("董事會"))
}

func TestSearch_VerbatimSubstringRanksFirst(t *testing.T) {
	chunks := []doctree.Chunk{
		chunk("A", 0, "公司治理與董事會運作情形說明"),
		chunk("A", 1, "本年度營業收入為新台幣一百億元，較去年成長"),
		chunk("A", 2, "資本支出主要用於新廠房建置與設備採購"),
		chunk("B", 0, "員工福利與退休金制度"),
	}
	idx := BuildIndex(chunks, DefaultSynonyms(), 5000)

	res := idx.Search("新廠房建置與設備採購", 5, 0.1)
	require.NotEmpty(t, res)
	assert.Equal(t, "A", res[0].DocumentID)
	assert.Equal(t, 2, res[0].ChunkID)
	assert.LessOrEqual(t, res[0].Score, 1.0+1e-9)
	assert.Equal(t, utf8.RuneCountInString(chunks[2].Text), res[0].Length)
}

func TestSearch_SynonymVariantMatchesCanonicalQuery(t *testing.T) {
	chunks := []doctree.Chunk{
		chunk("A", 0, "Total revenue rose sharply"),
		chunk("A", 1, "董事會組成"),
		chunk("B", 0, "員工人數"),
	}
	idx := BuildIndex(chunks, DefaultSynonyms(), 5000)

	res := idx.Search("營收", 5, 0.1)
	require.Len(t, res, 1)
	assert.Equal(t, 0, res[0].ChunkID)
	assert.Equal(t, "A", res[0].DocumentID)
}

func TestSearch_EmptyIndexAndUnknownQuery(t *testing.T) {
	assert.Empty(t, BuildIndex(nil, DefaultSynonyms(), 5000).Search("營收", 5, 0.1))

	idx := BuildIndex([]doctree.Chunk{chunk("A", 0, "董事會")}, DefaultSynonyms(), 5000)
	assert.Empty(t, idx.Search("dividend policy", 5, 0.1))
	assert.Empty(t, idx.Search("", 5, 0.1))
}

func TestBuildIndex_CapsVocabulary(t *testing.T) {
	chunks := []doctree.Chunk{chunk("A", 0, "alpha beta gamma delta alpha alpha beta beta")}
	idx := BuildIndex(chunks, nil, 2)
	assert.Len(t, idx.vocab, 2)
	assert.Contains(t, idx.vocab, "alpha")
	assert.Contains(t, idx.vocab, "beta")
}

func TestKeywordSearch(t *testing.T) {
	chunks := []doctree.Chunk{
		chunk("A", 0, "營收成長 營收"),
		chunk("A", 1, "董事會"),
		chunk("B", 0, "營收 2023"),
	}
	res := KeywordSearch(chunks, "營收", SimpleSegmenter{}, 10)
	require.Len(t, res, 2)
	assert.Equal(t, "A", res[0].DocumentID)
	assert.InDelta(t, 0.4, res[0].Score, 1e-9)
	assert.Equal(t, "B", res[1].DocumentID)
	assert.InDelta(t, 0.21, res[1].Score, 1e-9)
}

func TestSelect_FallsBackToKeywords(t *testing.T) {
	chunks := []doctree.Chunk{
		chunk("A", 0, "董事會說明"),
		chunk("A", 1, "營收 100 200 300"),
		chunk("B", 0, "獲利 50"),
	}
	idx := BuildIndex(chunks, DefaultSynonyms(), 5000)
	sel := NewSelector(idx, SimpleSegmenter{}, DefaultConfig(), nil).Select("股利政策")

	require.True(t, sel.Fallback)
	require.Len(t, sel.Chunks, 2)
	assert.Equal(t, 1, sel.Chunks[0].ChunkID)
	assert.InDelta(t, 0.03, sel.Chunks[0].Score, 1e-9)
	assert.Equal(t, "B", sel.Chunks[1].DocumentID)
	assert.Equal(t, "報告A\n營收 100 200 300\n\n報告B\n獲利 50", sel.Context)
}

func equalChunks(n, size int) []doctree.Chunk {
	var out []doctree.Chunk
	for i := range n {
		out = append(out, chunk("A", i, strings.Repeat("營收成長", size/4)))
	}
	return out
}

func TestSelectorSearch_HonorsTopK(t *testing.T) {
	idx := BuildIndex(equalChunks(6, 300), DefaultSynonyms(), 5000)
	cfg := DefaultConfig()
	cfg.TopK = 2

	sel := NewSelector(idx, nil, cfg, nil)
	res := sel.Search("營收成長")
	require.Len(t, res, 2)
	for _, r := range res {
		assert.GreaterOrEqual(t, r.Score, cfg.Threshold)
	}
	assert.Len(t, sel.Select("營收成長").Chunks, 6, "Select searches Candidates deep")

	cfg.TopK = 1
	assert.Len(t, NewSelector(idx, nil, cfg, nil).Search("營收成長"), 1)
	assert.Empty(t, NewSelector(idx, nil, cfg, nil).Search("董事會"))
}

func TestSelect_TruncatesLastChunk(t *testing.T) {
	idx := BuildIndex(equalChunks(3, 300), DefaultSynonyms(), 5000)
	cfg := DefaultConfig()
	cfg.Budget = 1000

	sel := NewSelector(idx, nil, cfg, nil).Select("營收成長")

	require.False(t, sel.Fallback)
	require.Len(t, sel.Chunks, 3)
	last := sel.Chunks[2]
	assert.True(t, strings.HasSuffix(last.Text, Ellipsis))
	// 1000 - (304 + 306) - 6 = 384 remaining, less the 50 rune margin
	assert.Equal(t, 334+len(Ellipsis), utf8.RuneCountInString(last.Text))
	assert.LessOrEqual(t, utf8.RuneCountInString(sel.Context), cfg.Budget)
}

func TestSelect_StopsWhenLittleRoomLeft(t *testing.T) {
	idx := BuildIndex(equalChunks(3, 300), DefaultSynonyms(), 5000)
	cfg := DefaultConfig()
	cfg.Budget = 700

	sel := NewSelector(idx, nil, cfg, nil).Select("營收成長")
	assert.Len(t, sel.Chunks, 2)
	for _, c := range sel.Chunks {
		assert.False(t, strings.HasSuffix(c.Text, Ellipsis))
	}
}

func TestSelect_NeverExceedsBudget(t *testing.T) {
	idx := BuildIndex(equalChunks(6, 300), DefaultSynonyms(), 5000)
	for _, budget := range []int{1, 50, 250, 305, 611, 700, 1000, 1333, 5000} {
		cfg := DefaultConfig()
		cfg.Budget = budget
		sel := NewSelector(idx, nil, cfg, nil).Select("營收成長")
		assert.LessOrEqual(t, utf8.RuneCountInString(sel.Context), budget, "budget %d", budget)
		for i, c := range sel.Chunks {
			if strings.HasSuffix(c.Text, Ellipsis) {
				assert.Equal(t, len(sel.Chunks)-1, i, "only the last chunk may be truncated")
			}
		}
	}
}

func TestSelect_EmptySession(t *testing.T) {
	sel := NewSelector(BuildIndex(nil, DefaultSynonyms(), 5000), nil, DefaultConfig(), nil).Select("營收")
	assert.True(t, sel.Fallback)
	assert.Empty(t, sel.Context)
	assert.Empty(t, sel.Chunks)
}

func TestNewSession_ChunksEachTree(t *testing.T) {
	trees := []*doctree.DocTree{
		{ID: "A", Children: []*doctree.DocNode{{Title: "Page 1", Text: strings.Repeat("甲", 300)}, {Title: "Page 2", Text: strings.Repeat("乙", 300)}}},
		nil,
		{ID: "B", Children: []*doctree.DocNode{{Text: "營收 100"}}},
	}
	s := NewSession(trees, chunker.Config{ChunkSize: 400}, DefaultConfig(), DefaultSynonyms(), SimpleSegmenter{}, nil)

	var ids []string
	for _, c := range s.Chunks {
		ids = append(ids, c.DocumentID)
	}
	assert.Equal(t, []string{"A", "A", "B"}, ids)
	assert.Equal(t, 1, s.Chunks[1].ChunkID)
	assert.Equal(t, 0, s.Chunks[2].ChunkID)
	assert.Equal(t, 3, s.Index.Len())

	sel := s.Selector.Select("營收")
	require.NotEmpty(t, sel.Chunks)
	assert.Equal(t, "B", sel.Chunks[0].DocumentID)
}

func TestGSESegmenter_CoversInput(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the gse dictionary")
	}
	in := "營業收入成長"
	got := NewGSESegmenter(nil).Cut(in)
	assert.Equal(t, in, strings.Join(got, ""))
}
