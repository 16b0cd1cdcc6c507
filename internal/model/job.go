package model

// JobKind tags the payload variant of a queued job. Only document embedding
// exists today; new kinds get new variants instead of loosening the payload.
type JobKind string

const (
	JobKindDocumentEmbedding JobKind = "document_embedding"
)

type DocumentEmbeddingPayload struct {
	DocumentID int64  `json:"document_id"`
	UserID     string `json:"user_id"`
	Force      bool   `json:"force"`
	// Claimed marks a payload whose enqueue already won the processing
	// claim; the worker honors it on first delivery instead of claiming
	// again.
	Claimed bool `json:"claimed"`
}

type EmbeddingJob struct {
	ID                string                    `json:"id"`
	Kind              JobKind                   `json:"kind"`
	DocumentEmbedding *DocumentEmbeddingPayload `json:"document_embedding,omitempty"`
}
