package model

// EmbeddingStatus is the lifecycle state of a document's vector index.
// Transitions are restricted to the table below; the repo claim operation
// enforces them with a conditional update rather than read-then-write.
type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusCompleted  EmbeddingStatus = "completed"
	EmbeddingStatusFailed     EmbeddingStatus = "failed"
)

// processing may fall back to pending on a content edit or a stale-claim
// reclaim; completed leaves terminality through a force re-embed (processing)
// or a content edit (pending).
var embeddingTransitions = map[EmbeddingStatus][]EmbeddingStatus{
	EmbeddingStatusPending:    {EmbeddingStatusProcessing},
	EmbeddingStatusProcessing: {EmbeddingStatusCompleted, EmbeddingStatusFailed, EmbeddingStatusPending},
	EmbeddingStatusFailed:     {EmbeddingStatusPending, EmbeddingStatusProcessing},
	EmbeddingStatusCompleted:  {EmbeddingStatusPending, EmbeddingStatusProcessing},
}

func (s EmbeddingStatus) Valid() bool {
	switch s {
	case EmbeddingStatusPending, EmbeddingStatusProcessing, EmbeddingStatusCompleted, EmbeddingStatusFailed:
		return true
	}
	return false
}

func (s EmbeddingStatus) CanTransition(to EmbeddingStatus) bool {
	for _, next := range embeddingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ClaimableStatuses lists the states a claim may move to processing from,
// derived from the transition table. processing itself is never claimable,
// force or not: a second claim on an in-flight document is the race the
// claim exists to close. force additionally admits completed for a re-embed.
func ClaimableStatuses(force bool) []EmbeddingStatus {
	all := []EmbeddingStatus{EmbeddingStatusPending, EmbeddingStatusProcessing, EmbeddingStatusCompleted, EmbeddingStatusFailed}
	var out []EmbeddingStatus
	for _, s := range all {
		if !s.CanTransition(EmbeddingStatusProcessing) {
			continue
		}
		if s == EmbeddingStatusCompleted && !force {
			continue
		}
		out = append(out, s)
	}
	return out
}

type Category string

const (
	CategoryNote       Category = "note"
	CategoryArticle    Category = "article"
	CategoryReference  Category = "reference"
	CategoryTranscript Category = "transcript"
	CategoryOther      Category = "other"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryNote, CategoryArticle, CategoryReference, CategoryTranscript, CategoryOther:
		return true
	}
	return false
}

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

type Document struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	Category        Category        `json:"category"`
	FileType        string          `json:"file_type"`
	StorageKey      string          `json:"storage_key,omitempty"`
	StorageProvider string          `json:"storage_provider,omitempty"`
	Embedded        bool            `json:"embedded"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	EmbeddingModel  string          `json:"embedding_model,omitempty"`
	EmbeddingProg   int             `json:"embedding_progress"`
	ChunksCount     int             `json:"chunks_count"`
	LastEmbeddedAt  int64           `json:"last_embedded_at,omitempty"`
	State           int             `json:"-"`
	Ctime           int64           `json:"ctime"`
	Mtime           int64           `json:"mtime"`
}
