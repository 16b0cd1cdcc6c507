package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yikoni/docbase/internal/ai"
	"github.com/yikoni/docbase/internal/chunker"
	"github.com/yikoni/docbase/internal/model"
	appErr "github.com/yikoni/docbase/internal/pkg/errors"
	"github.com/yikoni/docbase/internal/pkg/timeutil"
	"github.com/yikoni/docbase/internal/queue"
)

type DocumentStore interface {
	GetByID(ctx context.Context, userID string, docID int64) (*model.Document, error)
	ClaimEmbedding(ctx context.Context, userID string, docID int64, from []model.EmbeddingStatus, now int64) (bool, error)
	UpdateEmbeddingProgress(ctx context.Context, docID int64, progress int, now int64) error
	FinalizeEmbedding(ctx context.Context, userID string, docID int64, chunksCount int, modelName string, now int64) (bool, error)
	FailEmbedding(ctx context.Context, docID int64, now int64) error
}

type ChunkStore interface {
	ReplaceForDocument(ctx context.Context, docID int64, userID string, chunks []*model.DocumentChunk) error
	DeleteByDocument(ctx context.Context, docID int64) error
}

type Config struct {
	PoolSize     int
	BatchSize    int
	MaxAttempts  int
	RetryBase    time.Duration
	EmbedTimeout time.Duration
}

func (c *Config) fill() {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 30 * time.Second
	}
}

// Pool consumes embedding jobs from the queue and drives each document
// through the pending → processing → completed/failed state machine.
type Pool struct {
	docs     DocumentStore
	chunks   ChunkStore
	embedder ai.IEmbedder
	splitter *chunker.Chunker
	queue    queue.Queue
	cfg      Config

	executors *ants.Pool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(docs DocumentStore, chunks ChunkStore, embedder ai.IEmbedder, splitter *chunker.Chunker, q queue.Queue, cfg Config) (*Pool, error) {
	cfg.fill()
	executors, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Pool{
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		splitter:  splitter,
		queue:     q,
		cfg:       cfg,
		executors: executors,
	}, nil
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.dispatch(ctx)
}

func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.executors.Release()
}

func (p *Pool) dispatch(ctx context.Context) {
	defer p.wg.Done()
	logger := logutil.GetLogger(ctx)
	for {
		delivery, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, queue.ErrQueueClosed) {
				logger.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		p.wg.Add(1)
		submitErr := p.executors.Submit(func() {
			defer p.wg.Done()
			p.handle(ctx, delivery)
		})
		if submitErr != nil {
			p.wg.Done()
			logger.Error("submit to executor pool failed", zap.Error(submitErr))
			_ = p.queue.Nack(ctx, delivery, p.cfg.RetryBase)
		}
	}
}

func (p *Pool) handle(ctx context.Context, d *queue.Delivery) {
	job := d.Job
	if job == nil || job.Kind != model.JobKindDocumentEmbedding || job.DocumentEmbedding == nil {
		logutil.GetLogger(ctx).Warn("dropping job with unknown payload")
		_ = p.queue.Ack(ctx, d)
		return
	}
	payload := job.DocumentEmbedding
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", job.ID),
		zap.Int64("doc_id", payload.DocumentID),
		zap.Int("attempt", d.Attempt),
	)

	err := p.process(ctx, payload, d.Attempt)
	switch {
	case err == nil:
		_ = p.queue.Ack(ctx, d)
	case appErr.IsNotFound(err):
		logger.Info("document gone, dropping job")
		_ = p.queue.Ack(ctx, d)
	case appErr.IsAlreadyInFlight(err):
		logger.Info("claim not available, dropping job")
		_ = p.queue.Ack(ctx, d)
	case !retryable(err):
		logger.Error("embedding failed permanently", zap.Error(err))
		_ = p.queue.Ack(ctx, d)
	case d.Attempt >= p.cfg.MaxAttempts:
		logger.Error("embedding failed, attempts exhausted", zap.Error(err))
		_ = p.queue.Ack(ctx, d)
	default:
		delay := p.cfg.RetryBase << (d.Attempt - 1)
		logger.Warn("embedding failed, will retry", zap.Error(err), zap.Duration("delay", delay))
		_ = p.queue.Nack(ctx, d, delay)
	}
}

func (p *Pool) process(ctx context.Context, payload *model.DocumentEmbeddingPayload, attempt int) error {
	claimed, err := p.docs.ClaimEmbedding(ctx, payload.UserID, payload.DocumentID, model.ClaimableStatuses(false), timeutil.NowUnix())
	if err != nil {
		return err
	}
	doc, err := p.docs.GetByID(ctx, payload.UserID, payload.DocumentID)
	if err != nil {
		return err
	}
	if !claimed {
		// the first delivery rides the claim its enqueue won; any other
		// job finding the document in flight is a duplicate and is dropped
		if !payload.Claimed || attempt > 1 || doc.EmbeddingStatus != model.EmbeddingStatusProcessing {
			return appErr.ErrAlreadyInFlight
		}
	}

	chunks := p.splitter.Split(doc.Content)
	if len(chunks) == 0 {
		// whitespace-only content is a successful completion with zero
		// chunks, not a failure
		if err := p.chunks.ReplaceForDocument(ctx, doc.ID, doc.UserID, nil); err != nil {
			return p.fail(ctx, doc.ID, err)
		}
		_, err := p.docs.FinalizeEmbedding(ctx, doc.UserID, doc.ID, 0, p.embedder.ModelName(), timeutil.NowUnix())
		if err != nil {
			return p.fail(ctx, doc.ID, err)
		}
		return nil
	}

	rows, err := p.embedChunks(ctx, doc, chunks)
	if err != nil {
		return p.fail(ctx, doc.ID, err)
	}
	if err := p.chunks.ReplaceForDocument(ctx, doc.ID, doc.UserID, rows); err != nil {
		return p.fail(ctx, doc.ID, err)
	}
	finalized, err := p.docs.FinalizeEmbedding(ctx, doc.UserID, doc.ID, len(rows), p.embedder.ModelName(), timeutil.NowUnix())
	if err != nil {
		return p.fail(ctx, doc.ID, err)
	}
	if !finalized {
		// the document was deleted while we were embedding; drop the
		// rows we just wrote instead of resurrecting its state
		logutil.GetLogger(ctx).Warn("document deleted mid-embed, discarding result", zap.Int64("doc_id", doc.ID))
		_ = p.chunks.DeleteByDocument(ctx, doc.ID)
	}
	return nil
}

func (p *Pool) embedChunks(ctx context.Context, doc *model.Document, chunks []chunker.Chunk) ([]*model.DocumentChunk, error) {
	rows := make([]*model.DocumentChunk, len(chunks))
	modelName := p.embedder.ModelName()
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, p.cfg.EmbedTimeout)
				defer cancel()
				vec, err := p.embedder.Embed(callCtx, chunks[i].Content, "RETRIEVAL_DOCUMENT")
				if err != nil {
					return err
				}
				rows[i] = &model.DocumentChunk{
					DocumentID: doc.ID,
					UserID:     doc.UserID,
					Position:   chunks[i].Position,
					Content:    chunks[i].Content,
					TokenCount: chunks[i].TokenCount,
					Embedding:  vec,
					Model:      modelName,
					Ctime:      timeutil.NowUnix(),
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		progress := end * 100 / len(chunks)
		if progress >= 100 {
			progress = 99 // finalize owns the jump to 100
		}
		// fire-and-forget so a slow status write never blocks the next batch
		go func(prog int) {
			if err := p.docs.UpdateEmbeddingProgress(context.Background(), doc.ID, prog, timeutil.NowUnix()); err != nil {
				logutil.GetLogger(context.Background()).Warn("progress update failed",
					zap.Int64("doc_id", doc.ID), zap.Error(err))
			}
		}(progress)
	}
	return rows, nil
}

func (p *Pool) fail(ctx context.Context, docID int64, cause error) error {
	if err := p.docs.FailEmbedding(ctx, docID, timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Error("record embedding failure failed",
			zap.Int64("doc_id", docID), zap.Error(err))
	}
	return cause
}

func retryable(err error) bool {
	if errors.Is(err, ai.ErrContentRejected) || errors.Is(err, appErr.ErrPermanentContent) {
		return false
	}
	return true
}
