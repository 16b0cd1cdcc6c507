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

const reclaimBatchLimit = 200

type reclaimDocumentStore interface {
	ReclaimStuckProcessing(ctx context.Context, deadline int64, now int64, limit int) ([]model.Document, error)
	ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error)
}

// EmbeddingReclaimJob resets documents stuck in processing, typically after
// a worker crash, and feeds them back into the queue. The reset lands in
// pending; the re-enqueue then claims each document the same way a submit
// does, so a racing submit and this job resolve to one job, not two.
type EmbeddingReclaimJob struct {
	docs            reclaimDocumentStore
	queue           queue.Queue
	deadlineSeconds int64
}

func NewEmbeddingReclaimJob(docs reclaimDocumentStore, q queue.Queue, deadlineSeconds int64) *EmbeddingReclaimJob {
	if deadlineSeconds <= 0 {
		deadlineSeconds = 600
	}
	return &EmbeddingReclaimJob{docs: docs, queue: q, deadlineSeconds: deadlineSeconds}
}

func (j *EmbeddingReclaimJob) Name() string {
	return "embedding_reclaim"
}

func (j *EmbeddingReclaimJob) Run(ctx context.Context) error {
	now := timeutil.NowUnix()
	docs, err := j.docs.ReclaimStuckProcessing(ctx, now-j.deadlineSeconds, now, reclaimBatchLimit)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		logutil.GetLogger(ctx).Warn("reclaimed stuck embedding", zap.Int64("doc_id", doc.ID))
		claimed, err := j.docs.ClaimEmbedding(ctx, doc.UserID, doc.ID,
			[]model.EmbeddingStatus{model.EmbeddingStatusPending}, now)
		if err != nil {
			logutil.GetLogger(ctx).Warn("reclaim claim failed",
				zap.Int64("doc_id", doc.ID), zap.Error(err))
			continue
		}
		if !claimed {
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
			logutil.GetLogger(ctx).Warn("reclaim enqueue failed",
				zap.Int64("doc_id", doc.ID), zap.Error(err))
		}
	}
	return nil
}
