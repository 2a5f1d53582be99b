package engine

import (
	"context"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
	"github.com/untron/untron-v3-engine/internal/metrics"
)

// Dispatcher fans committed event batches out to the sinks. Sinks run concurrently
// for one batch; batches are handed over one at a time so each sink sees commit order.
type Dispatcher struct {
	pool  pond.Pool
	sinks []EventSink
}

// NewDispatcher creates a dispatcher backed by a worker pool
func NewDispatcher(poolSize, queueSize int, sinks ...EventSink) *Dispatcher {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Dispatcher{
		pool:  pond.NewPool(poolSize, pond.WithQueueSize(queueSize)),
		sinks: sinks,
	}
}

// AddSink registers a sink for subsequent batches
func (d *Dispatcher) AddSink(sink EventSink) {
	d.sinks = append(d.sinks, sink)
}

// Dispatch delivers a batch to every sink and waits for them. Sink failures are logged;
// the operation that produced the batch is already committed.
func (d *Dispatcher) Dispatch(ctx context.Context, records []*domain.EventRecord) {
	if d == nil || len(records) == 0 || len(d.sinks) == 0 {
		return
	}

	tasks := make([]pond.Task, len(d.sinks))
	for i, sink := range d.sinks {
		tasks[i] = d.pool.SubmitErr(func() error {
			return sink.HandleEvents(ctx, records)
		})
	}

	for i, task := range tasks {
		sink := d.sinks[i]
		if err := task.Wait(); err != nil {
			metrics.EventsDispatched.WithLabelValues(sink.Name(), "error").Inc()
			logger.ErrorCtx(ctx, err,
				zap.String("sink", sink.Name()),
				zap.Int("records", len(records)),
			)
			continue
		}
		metrics.EventsDispatched.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

// Close stops the pool after in-flight batches finish
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.pool.StopAndWait()
}
