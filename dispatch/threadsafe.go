package dispatch

import "sync"

// ThreadsafeBatchingPool wraps an AggregateBatchingPool with a mutex and
// condition variable so a single instance can be shared by the producer
// (client API) and every worker goroutine. Cancellation is cooperative:
// Shutdown wakes every waiter; after it, GenerateBatch keeps handing out
// batches while queued sentences remain and returns (nil, false) only once
// the pool is empty, so work queued before Shutdown is still drained.
type ThreadsafeBatchingPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pool     *AggregateBatchingPool
	shutdown bool
}

// NewThreadsafeBatchingPool wraps a fresh AggregateBatchingPool.
func NewThreadsafeBatchingPool() *ThreadsafeBatchingPool {
	t := &ThreadsafeBatchingPool{pool: NewAggregateBatchingPool()}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// EnqueueRequest enqueues req under lock and wakes any worker waiting for
// work.
func (t *ThreadsafeBatchingPool) EnqueueRequest(model *TranslationModel, req *Request, indices []int) (int, error) {
	t.mu.Lock()
	n, err := t.pool.EnqueueRequest(model, req, indices)
	t.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.cond.Broadcast()
	}
	return n, nil
}

// GenerateBatch blocks until either a batch can be produced or Shutdown has
// been called with no work remaining, in which case it returns
// (nil, false). Any in-flight call that is already holding a produced
// batch when Shutdown fires returns normally with that batch.
func (t *ThreadsafeBatchingPool) GenerateBatch(batch *Batch) (*TranslationModel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		model, n := t.pool.GenerateBatch(batch)
		if n > 0 {
			return model, true
		}
		if t.shutdown {
			return nil, false
		}
		t.cond.Wait()
	}
}

// Shutdown sets the shutdown flag and wakes every waiter. Workers blocked
// in GenerateBatch with no work left return (nil, false) and exit.
func (t *ThreadsafeBatchingPool) Shutdown() {
	t.mu.Lock()
	t.shutdown = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// IsShutdown reports whether Shutdown has been called.
func (t *ThreadsafeBatchingPool) IsShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}
