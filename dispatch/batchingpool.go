package dispatch

import "container/list"

// PoolConfig configures a single-model BatchingPool.
type PoolConfig struct {
	// MiniBatchWords bounds size * maxLength for any batch produced: a
	// candidate is admitted only while (current size + 1) * its length
	// stays within it.
	MiniBatchWords int
	// MaxLengthBreak is the upper bound on tokens per sentence that the
	// text processor is expected to enforce upstream.
	MaxLengthBreak int
	// PivotSlack adds headroom to the bucket count for the rare sentence
	// that overflows MaxLengthBreak slightly (see bergamot's PIVOT_SLACK).
	PivotSlack int
}

// BatchingPool is a length-bucketed, single-model, single-threaded batch
// assembler. It is not safe for concurrent use; ThreadsafeBatchingPool
// supplies the locking needed to share one across goroutines.
type BatchingPool struct {
	miniBatchWords int
	buckets        []*list.List
	highWatermark  int
	pending        int
}

// NewBatchingPool constructs a BatchingPool sized for cfg. The bucket count
// is MaxLengthBreak + PivotSlack + 1, matching the capacity policy in the
// batching contract: an enqueue whose bucket id falls outside this range
// indicates a tokenization/splitter contract violation and is rejected by
// EnqueueRequest rather than silently truncated.
//
// cfg.MiniBatchWords must be at least MaxLengthBreak + PivotSlack: that is
// the bucket cost of the single longest sentence GenerateBatch can ever be
// asked to admit (batch.Size()==0, so padded == length on the first
// candidate). A smaller MiniBatchWords would let a sentence land in a
// bucket GenerateBatch can never drain, hanging every caller waiting on
// it, so this is rejected here rather than discovered at batch time.
func NewBatchingPool(cfg PoolConfig) (*BatchingPool, error) {
	maxLength := cfg.MaxLengthBreak + cfg.PivotSlack
	if cfg.MiniBatchWords < maxLength {
		return nil, contractErrorf("NewBatchingPool", "miniBatchWords %d is smaller than maxLengthBreak+pivotSlack %d; no batch could ever admit the longest sentence", cfg.MiniBatchWords, maxLength)
	}
	bucketCount := maxLength + 1
	if bucketCount < 1 {
		bucketCount = 1
	}
	return &BatchingPool{
		miniBatchWords: cfg.MiniBatchWords,
		buckets:        make([]*list.List, bucketCount),
	}, nil
}

// HasPending reports whether any sentence is still waiting in a bucket.
func (p *BatchingPool) HasPending() bool { return p.pending > 0 }

// Pending returns the number of sentences currently waiting in a bucket.
func (p *BatchingPool) Pending() int { return p.pending }

// EnqueueRequest places every sentence named by indices into its length
// bucket. Passing nil enqueues every segment of the request. Returns the
// number of sentences enqueued.
func (p *BatchingPool) EnqueueRequest(req *Request, indices []int) (int, error) {
	if indices == nil {
		indices = allIndices(len(req.Segments))
	}
	for _, idx := range indices {
		rs := RequestSentence{Index: idx, Req: req}
		bucketID := rs.NumTokens()
		if bucketID < 0 || bucketID >= len(p.buckets) {
			return 0, contractErrorf("BatchingPool.EnqueueRequest", "sentence length %d exceeds bucket capacity %d", bucketID, len(p.buckets))
		}
		if p.buckets[bucketID] == nil {
			p.buckets[bucketID] = list.New()
		}
		p.buckets[bucketID].PushBack(rs)
		if bucketID > p.highWatermark {
			p.highWatermark = bucketID
		}
	}
	p.pending += len(indices)
	return len(indices), nil
}

// GenerateBatch drains sentences into batch in ascending bucket (length)
// order, shortest first, FIFO within a bucket, up to MiniBatchWords. It
// returns as soon as accepting the next candidate sentence would push
// (size+1)*length over MiniBatchWords, so MaxLength always equals the
// longest accepted sentence and padding waste never exceeds
// MiniBatchWords - numTokens of the batch actually produced.
func (p *BatchingPool) GenerateBatch(batch *Batch) int {
	batch.Reset()
	for length := 0; length <= p.highWatermark; length++ {
		bucket := p.buckets[length]
		if bucket == nil || bucket.Len() == 0 {
			continue
		}
		for e := bucket.Front(); e != nil; {
			padded := (batch.Size() + 1) * length
			if padded > p.miniBatchWords {
				return batch.Size()
			}
			next := e.Next()
			rs := e.Value.(RequestSentence)
			batch.add(rs, length)
			bucket.Remove(e)
			p.pending--
			e = next
		}
	}
	return batch.Size()
}
