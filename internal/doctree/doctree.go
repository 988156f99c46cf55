package doctree

import "strings"

// DocTree is the root of an ingested report.
type DocTree struct {
	ID       string     // Document label used in retrieval ("A", "B", or a cache ID)
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // One node per page section
}

// DocNode is one page section of the report.
type DocNode struct {
	Title    string // Section header line (page, content type, strategy, status)
	Text     string // Extracted page content
	Page     int    // Source page, 1-based (0 if N/A)
	Children []*DocNode
}

// Chunk is a bounded text segment ready for indexing.
type Chunk struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	ChunkID    int    `json:"chunk_id"` // dense from 0 within DocumentID
}

// Text flattens the tree into a single string, sections separated by blank lines.
func (t *DocTree) Text() string {
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			for _, s := range []string{n.Title, n.Text} {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}
