package model

// DocumentChunk is one bounded segment of a document's content together with
// its embedding vector. All chunk rows of a document carry the same model;
// re-embeds replace the full set in one transaction.
type DocumentChunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	UserID     string    `json:"user_id"`
	Position   int       `json:"position"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"-"`
	Model      string    `json:"model"`
	Ctime      int64     `json:"ctime"`
}
