package model

// Document is one retrievable unit of knowledge. Content is expected to be
// pre-chunked at ingestion; metadata is carried through retrieval for citation
// and filtering, never for ranking.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetrievedSnippet is a document projected through one similarity query.
// Distance is backend-defined (lower is closer); Similarity is a monotonic
// inverse of it, used for display and ranking tie-breaks only.
type RetrievedSnippet struct {
	DocumentID string         `json:"document_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}
