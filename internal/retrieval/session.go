package retrieval

import (
	"log/slog"

	"github.com/dgallion1/fingest/internal/chunker"
	"github.com/dgallion1/fingest/internal/doctree"
)

// Session holds the chunks, index and selector for one set of reports.
// Nothing is shared between sessions.
type Session struct {
	Chunks   []doctree.Chunk
	Index    *Index
	Selector *Selector
}

// NewSession chunks every tree under its own ID and fits one index over
// all of them.
func NewSession(trees []*doctree.DocTree, chunkCfg chunker.Config, cfg Config, synonyms Synonyms, seg Segmenter, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	var chunks []doctree.Chunk
	for _, t := range trees {
		if t == nil {
			continue
		}
		c := chunker.ChunkTree(t, chunkCfg)
		log.Debug("chunked report", "doc_id", t.ID, "chunks", len(c))
		chunks = append(chunks, c...)
	}
	idx := BuildIndex(chunks, synonyms, cfg.MaxFeatures)
	log.Info("retrieval index built", "chunks", idx.Len(), "vocabulary", len(idx.vocab))
	return &Session{
		Chunks:   chunks,
		Index:    idx,
		Selector: NewSelector(idx, seg, cfg, log),
	}
}
