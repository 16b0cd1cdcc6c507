package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/queue"
)

type EmbeddingDocumentStore interface {
	GetByID(ctx context.Context, userID string, docID int64) (*model.Document, error)
	ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error)
}

type EmbeddingStatusInfo struct {
	DocumentID     int64                 `json:"document_id"`
	Status         model.EmbeddingStatus `json:"status"`
	Progress       int                   `json:"progress"`
	ChunksCount    int                   `json:"chunks_count"`
	Model          string                `json:"model,omitempty"`
	LastEmbeddedAt int64                 `json:"last_embedded_at,omitempty"`
}

type EmbeddingService struct {
	docs  EmbeddingDocumentStore
	queue queue.Queue
}

func NewEmbeddingService(docs EmbeddingDocumentStore, q queue.Queue) *EmbeddingService {
	return &EmbeddingService{docs: docs, queue: q}
}

// Submit claims the document for embedding and enqueues a job. The claim is a
// single conditional update, so concurrent submits for the same document
// resolve to exactly one enqueued job; the losers observe the in-flight state.
// An in-flight document is never claimable, even with force: a force re-embed
// while one is running is rejected rather than admitted alongside it.
func (s *EmbeddingService) Submit(ctx context.Context, userID string, docID int64, force bool) (string, error) {
	claimed, err := s.docs.ClaimEmbedding(ctx, userID, docID, model.ClaimableStatuses(force), timeutil.NowUnix())
	if err != nil {
		return "", err
	}
	if !claimed {
		doc, err := s.docs.GetByID(ctx, userID, docID)
		if err != nil {
			return "", err
		}
		if doc.EmbeddingStatus == model.EmbeddingStatusProcessing {
			return "", appErr.ErrAlreadyInFlight
		}
		// already completed and the caller did not ask to redo it
		return "", appErr.ErrConflict
	}

	job := &model.EmbeddingJob{
		ID:   uuid.NewString(),
		Kind: model.JobKindDocumentEmbedding,
		DocumentEmbedding: &model.DocumentEmbeddingPayload{
			DocumentID: docID,
			UserID:     userID,
			Force:      force,
			Claimed:    true,
		},
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logutil.GetLogger(ctx).Error("enqueue embedding job failed",
			zap.Int64("doc_id", docID), zap.Error(err))
		return "", err
	}
	logutil.GetLogger(ctx).Info("embedding job submitted",
		zap.String("job_id", job.ID), zap.Int64("doc_id", docID), zap.Bool("force", force))
	return job.ID, nil
}

func (s *EmbeddingService) GetStatus(ctx context.Context, userID string, docID int64) (*EmbeddingStatusInfo, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return &EmbeddingStatusInfo{
		DocumentID:     doc.ID,
		Status:         doc.EmbeddingStatus,
		Progress:       doc.EmbeddingProg,
		ChunksCount:    doc.ChunksCount,
		Model:          doc.EmbeddingModel,
		LastEmbeddedAt: doc.LastEmbeddedAt,
	}, nil
}
