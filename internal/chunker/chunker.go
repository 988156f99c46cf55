package chunker

import (
	"regexp"
	"strings"

	"github.com/dgallion1/fingest/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize int // Soft ceiling in characters (runes).
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: 500}
}

const paragraphSep = "\n\n"

// ChunkTree flattens a DocTree and splits it, labeling chunks with tree.ID.
func ChunkTree(tree *doctree.DocTree, cfg Config) []doctree.Chunk {
	return Split(tree.Text(), tree.ID, cfg)
}

// Split breaks text into paragraph-aligned chunks. Paragraphs are accumulated
// greedily while the chunk stays within cfg.ChunkSize; a paragraph that alone
// exceeds the ceiling becomes its own chunk. Chunk IDs are dense from 0.
func Split(text, documentID string, cfg Config) []doctree.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}

	var chunks []doctree.Chunk
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, doctree.Chunk{
			Text:       current.String(),
			DocumentID: documentID,
			ChunkID:    len(chunks),
		})
		current.Reset()
		currentLen = 0
	}

	for _, para := range splitByParagraphs(text) {
		paraLen := Length(para)
		if currentLen > 0 && currentLen+len(paragraphSep)+paraLen > cfg.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(paragraphSep)
			currentLen += len(paragraphSep)
		}
		current.WriteString(para)
		currentLen += paraLen
	}
	flush()

	return chunks
}

var blankLineRe = regexp.MustCompile(`\n[ \t\r\f]*\n`)

// splitByParagraphs splits on blank lines and drops empty paragraphs.
func splitByParagraphs(text string) []string {
	parts := blankLineRe.Split(text, -1)
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
