package dispatch

import (
	"container/list"

	"github.com/jerinphilip/transdispatch/metrics"
)

// AggregateBatchingPool round-robins batch production across the
// per-model BatchingPools of every model that currently has pending
// sentences. A single Batch is always homogeneous, produced by exactly one
// model's pool, because the inference backend is itself per-model.
//
// Fairness is round-robin at batch granularity: after a model yields a
// batch, it is moved to the back of the queue (if it still has pending
// sentences) so a single heavy model cannot monopolize the workers.
type AggregateBatchingPool struct {
	queue  *list.List
	queued map[ModelID]*list.Element
}

// NewAggregateBatchingPool constructs an empty aggregate pool.
func NewAggregateBatchingPool() *AggregateBatchingPool {
	return &AggregateBatchingPool{
		queue:  list.New(),
		queued: make(map[ModelID]*list.Element),
	}
}

// EnqueueRequest enqueues req's sentences into model's pool and marks model
// as having pending work.
func (a *AggregateBatchingPool) EnqueueRequest(model *TranslationModel, req *Request, indices []int) (int, error) {
	n, err := model.pool.EnqueueRequest(req, indices)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.markPending(model)
		metrics.QueueDepth.WithLabelValues(string(model.id)).Set(float64(model.pool.Pending()))
	}
	return n, nil
}

func (a *AggregateBatchingPool) markPending(model *TranslationModel) {
	if _, ok := a.queued[model.id]; ok {
		return
	}
	el := a.queue.PushBack(model)
	a.queued[model.id] = el
}

// GenerateBatch pops models off the queue until one produces a non-empty
// batch, or the queue is exhausted. A model found to have no remaining
// sentences is dropped; a model that did produce a batch is requeued at the
// back if it still has pending sentences.
func (a *AggregateBatchingPool) GenerateBatch(batch *Batch) (*TranslationModel, int) {
	for a.queue.Len() > 0 {
		front := a.queue.Front()
		model := front.Value.(*TranslationModel)
		a.queue.Remove(front)
		delete(a.queued, model.id)

		n := model.pool.GenerateBatch(batch)
		if n > 0 {
			metrics.QueueDepth.WithLabelValues(string(model.id)).Set(float64(model.pool.Pending()))
			metrics.RecordBatch(string(model.id), batch.Size(), batch.PaddedSize())
			if model.pool.HasPending() {
				a.markPending(model)
			}
			return model, n
		}
		// Model's pool drained in the interval since it was marked
		// pending (e.g. another caller already drained it); move on.
	}
	return nil, 0
}
