package queue

import (
	"context"
	"time"

	"github.com/yikoni/docbase/internal/model"
)

// Delivery is one dequeued job attempt. Attempt starts at 1 and increases
// on every redelivery.
type Delivery struct {
	Job     *model.EmbeddingJob
	Attempt int
}

// Queue is the durable job transport the pipeline is written against. The
// in-memory implementation below serves single-process deployments and
// tests; a broker-backed implementation can be swapped in without touching
// the worker.
type Queue interface {
	Enqueue(ctx context.Context, job *model.EmbeddingJob) error
	// Dequeue blocks until a delivery is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)
	// Ack marks the delivery finished; it will not be redelivered.
	Ack(ctx context.Context, d *Delivery) error
	// Nack schedules the delivery again after delay with Attempt+1.
	Nack(ctx context.Context, d *Delivery, delay time.Duration) error
}
