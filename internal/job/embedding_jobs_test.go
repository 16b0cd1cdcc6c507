package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yikoni/docbase/internal/model"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/queue"
)

type fakeJobDocs struct {
	mu   sync.Mutex
	docs map[int64]*model.Document
}

func newFakeJobDocs(docs ...*model.Document) *fakeJobDocs {
	f := &fakeJobDocs{docs: map[int64]*model.Document{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeJobDocs) status(docID int64) model.EmbeddingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[docID].EmbeddingStatus
}

func (f *fakeJobDocs) ListPendingEmbedding(ctx context.Context, maxMtime int64, limit int) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, doc := range f.docs {
		if doc.EmbeddingStatus == model.EmbeddingStatusPending && doc.Mtime < maxMtime {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeJobDocs) ReclaimStuckProcessing(ctx context.Context, deadline int64, now int64, limit int) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, doc := range f.docs {
		if doc.EmbeddingStatus == model.EmbeddingStatusProcessing && doc.Mtime < deadline {
			doc.EmbeddingStatus = model.EmbeddingStatusPending
			doc.Mtime = now
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeJobDocs) ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.UserID != userID {
		return false, nil
	}
	for _, status := range from {
		if doc.EmbeddingStatus == status {
			doc.EmbeddingStatus = model.EmbeddingStatusProcessing
			doc.Mtime = now
			return true, nil
		}
	}
	return false, nil
}

type captureQueue struct {
	mu   sync.Mutex
	jobs []*model.EmbeddingJob
}

func (q *captureQueue) Enqueue(ctx context.Context, job *model.EmbeddingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	return nil, queue.ErrQueueClosed
}

func (q *captureQueue) Ack(ctx context.Context, d *queue.Delivery) error { return nil }

func (q *captureQueue) Nack(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	return nil
}

func (q *captureQueue) captured() []*model.EmbeddingJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.EmbeddingJob(nil), q.jobs...)
}

func stalePendingDoc(id int64, age int64) *model.Document {
	return &model.Document{
		ID:              id,
		UserID:          "user-1",
		EmbeddingStatus: model.EmbeddingStatusPending,
		State:           model.DocumentStateNormal,
		Mtime:           timeutil.NowUnix() - age,
	}
}

func TestResyncClaimsBeforeEnqueue(t *testing.T) {
	docs := newFakeJobDocs(stalePendingDoc(1, 120), stalePendingDoc(2, 120))
	q := &captureQueue{}
	j := NewEmbeddingResyncJob(docs, q, 60)

	require.NoError(t, j.Run(context.Background()))

	jobs := q.captured()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.True(t, job.DocumentEmbedding.Claimed)
	}
	require.Equal(t, model.EmbeddingStatusProcessing, docs.status(1))
	require.Equal(t, model.EmbeddingStatusProcessing, docs.status(2))

	// the claim moved both out of pending, so a second pass over the same
	// backlog enqueues nothing
	require.NoError(t, j.Run(context.Background()))
	require.Len(t, q.captured(), 2)
}

func TestResyncSkipsFreshPending(t *testing.T) {
	docs := newFakeJobDocs(stalePendingDoc(1, 0))
	q := &captureQueue{}
	j := NewEmbeddingResyncJob(docs, q, 60)

	require.NoError(t, j.Run(context.Background()))
	require.Empty(t, q.captured())
	require.Equal(t, model.EmbeddingStatusPending, docs.status(1))
}

func TestReclaimRequeuesStuckProcessing(t *testing.T) {
	stuck := stalePendingDoc(1, 1200)
	stuck.EmbeddingStatus = model.EmbeddingStatusProcessing
	fresh := stalePendingDoc(2, 0)
	fresh.EmbeddingStatus = model.EmbeddingStatusProcessing
	docs := newFakeJobDocs(stuck, fresh)
	q := &captureQueue{}
	j := NewEmbeddingReclaimJob(docs, q, 600)

	require.NoError(t, j.Run(context.Background()))

	jobs := q.captured()
	require.Len(t, jobs, 1)
	require.Equal(t, int64(1), jobs[0].DocumentEmbedding.DocumentID)
	require.True(t, jobs[0].DocumentEmbedding.Claimed)
	// the stuck document got re-claimed for its new job, the live one was
	// left alone
	require.Equal(t, model.EmbeddingStatusProcessing, docs.status(1))
	require.Equal(t, model.EmbeddingStatusProcessing, docs.status(2))
}
