package service

import (
	"context"
	"strings"

	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/repo"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID string, docID int64) (*model.Document, error)
	UpdateContent(ctx context.Context, userID string, docID int64, patch repo.DocumentPatch, now int64) error
	List(ctx context.Context, userID string, q repo.ListDocumentsQuery) ([]model.Document, int, error)
}

type ChunkCounter interface {
	CountByDocuments(ctx context.Context, userID string, docIDs []int64) (map[int64]int, error)
}

type CreateDocumentArgs struct {
	Title           string
	Content         string
	Category        model.Category
	FileType        string
	StorageKey      string
	StorageProvider string
}

type DocumentService struct {
	docs   DocumentStore
	counts ChunkCounter
}

func NewDocumentService(docs DocumentStore, counts ChunkCounter) *DocumentService {
	return &DocumentService{docs: docs, counts: counts}
}

func (s *DocumentService) Create(ctx context.Context, userID string, args CreateDocumentArgs) (*model.Document, error) {
	if strings.TrimSpace(args.Title) == "" {
		return nil, appErr.ErrInvalid
	}
	if args.Category == "" {
		args.Category = model.CategoryOther
	}
	if !model.ValidCategory(args.Category) {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		UserID:          userID,
		Title:           args.Title,
		Content:         args.Content,
		Category:        args.Category,
		FileType:        args.FileType,
		StorageKey:      args.StorageKey,
		StorageProvider: args.StorageProvider,
		Embedded:        false,
		EmbeddingStatus: model.EmbeddingStatusPending,
		State:           model.DocumentStateNormal,
		Ctime:           now,
		Mtime:           now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID string, docID int64) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

// Update applies a partial edit. When title or content change, stored chunks
// and the embedding state are invalidated in the same transaction, so a stale
// "completed" can never describe the new content.
func (s *DocumentService) Update(ctx context.Context, userID string, docID int64, patch repo.DocumentPatch) (*model.Document, error) {
	if patch.Category != nil && !model.ValidCategory(*patch.Category) {
		return nil, appErr.ErrInvalid
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, appErr.ErrInvalid
	}
	if patch.ContentChanged() {
		cur, err := s.docs.GetByID(ctx, userID, docID)
		if err != nil {
			return nil, err
		}
		// the reset to pending must be a legal transition from the current
		// state; in-flight documents permit it, edits are not blocked by a
		// running embed
		if cur.EmbeddingStatus != model.EmbeddingStatusPending &&
			!cur.EmbeddingStatus.CanTransition(model.EmbeddingStatusPending) {
			return nil, appErr.ErrConflict
		}
	}
	if err := s.docs.UpdateContent(ctx, userID, docID, patch, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, userID, docID)
}

type DocumentPage struct {
	Items []model.Document `json:"items"`
	Total int              `json:"total"`
}

// List returns one page of documents with chunk counts read from the chunk
// table, not the denormalized counter, so callers see the authoritative value
// even mid-embed.
func (s *DocumentService) List(ctx context.Context, userID string, q repo.ListDocumentsQuery) (*DocumentPage, error) {
	docs, total, err := s.docs.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		ids := make([]int64, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		counts, err := s.counts.CountByDocuments(ctx, userID, ids)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			docs[i].ChunksCount = counts[docs[i].ID]
		}
	}
	return &DocumentPage{Items: docs, Total: total}, nil
}
