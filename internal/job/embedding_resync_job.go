package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/yikoni/docbase/internal/model"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/queue"
)

const resyncBatchLimit = 200

type resyncDocumentStore interface {
	ListPendingEmbedding(ctx context.Context, maxMtime int64, limit int) ([]model.Document, error)
	ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error)
}

// EmbeddingResyncJob re-enqueues documents that stayed pending past the
// grace window. Jobs lost to a full queue or a crash are recovered here.
// Each document is claimed before its job is enqueued, so two overlapping
// runs over the same backlog cannot produce duplicate in-flight jobs.
type EmbeddingResyncJob struct {
	docs         resyncDocumentStore
	queue        queue.Queue
	delaySeconds int64
}

func NewEmbeddingResyncJob(docs resyncDocumentStore, q queue.Queue, delaySeconds int64) *EmbeddingResyncJob {
	if delaySeconds <= 0 {
		delaySeconds = 60
	}
	return &EmbeddingResyncJob{docs: docs, queue: q, delaySeconds: delaySeconds}
}

func (j *EmbeddingResyncJob) Name() string {
	return "embedding_resync"
}

func (j *EmbeddingResyncJob) Run(ctx context.Context) error {
	now := timeutil.NowUnix()
	docs, err := j.docs.ListPendingEmbedding(ctx, now-j.delaySeconds, resyncBatchLimit)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, doc := range docs {
		claimed, err := j.docs.ClaimEmbedding(ctx, doc.UserID, doc.ID,
			[]model.EmbeddingStatus{model.EmbeddingStatusPending}, now)
		if err != nil {
			logutil.GetLogger(ctx).Warn("resync claim failed",
				zap.Int64("doc_id", doc.ID), zap.Error(err))
			continue
		}
		if !claimed {
			// someone else took it since the listing
			continue
		}
		job := &model.EmbeddingJob{
			ID:   uuid.NewString(),
			Kind: model.JobKindDocumentEmbedding,
			DocumentEmbedding: &model.DocumentEmbeddingPayload{
				DocumentID: doc.ID,
				UserID:     doc.UserID,
				Claimed:    true,
			},
		}
		if err := j.queue.Enqueue(ctx, job); err != nil {
			// the claim strands the row in processing; the reclaim job
			// frees it after the deadline
			logutil.GetLogger(ctx).Warn("resync enqueue failed",
				zap.Int64("doc_id", doc.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		logutil.GetLogger(ctx).Info("resynced pending documents", zap.Int("count", enqueued))
	}
	return nil
}
