package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jerinphilip/transdispatch/metrics"
	"github.com/jerinphilip/transdispatch/tracing"
)

// AuditEntry summarizes one completed request for an off-hot-path audit
// sink. Duration runs from when Translate/TranslateMultiple has split the
// input into sentences to when the request completes; it is taken before the
// caller's callback is invoked.
type AuditEntry struct {
	RequestID    string
	ModelID      ModelID
	NumSentences int
	Failed       bool
	Duration     time.Duration
}

// AuditHook receives one AuditEntry per completed request. Implementations
// must not block: both AsyncService and BlockingService call it inline on
// the goroutine that completes the request.
type AuditHook func(AuditEntry)

// Config holds the tunables shared by both services.
type Config struct {
	MiniBatchWords int
	MaxLengthBreak int
	PivotSlack     int
	NumWorkers     int
	CacheSizeBytes int
	AvgEntryBytes  int
	CacheShards    int
	// AdmissionRPS, if positive, rate-limits AsyncService.Translate calls
	// as a backpressure valve instead of letting the aggregate pool queue
	// grow without bound. Zero disables admission limiting.
	AdmissionRPS   float64
	AdmissionBurst int
}

func (c Config) poolConfig() PoolConfig {
	return PoolConfig{MiniBatchWords: c.MiniBatchWords, MaxLengthBreak: c.MaxLengthBreak, PivotSlack: c.PivotSlack}
}

func (c Config) newCache() Cache {
	if c.CacheSizeBytes <= 0 {
		return NopCache{}
	}
	shards := c.CacheShards
	if shards <= 0 {
		shards = 64
	}
	avg := c.AvgEntryBytes
	if avg <= 0 {
		avg = 256
	}
	return NewTranslationCache(c.CacheSizeBytes, avg, shards)
}

// BackendFactory constructs one Backend instance; AsyncService calls it
// once per worker so each worker owns a private backend (graph plus
// workspace) and there is no cross-worker contention on inference state.
type BackendFactory func() Backend

// AsyncService is the non-blocking translation API: Translate and Pivot
// enqueue work and return immediately; N worker goroutines drain the
// shared ThreadsafeBatchingPool and invoke callbacks as requests complete.
type AsyncService struct {
	cfg     Config
	pool    *ThreadsafeBatchingPool
	cache   Cache
	logger  *zap.Logger
	limiter *rate.Limiter
	audit   AuditHook

	wg sync.WaitGroup
}

// SetAudit installs an AuditHook called once per completed request. Passing
// nil disables auditing.
func (s *AsyncService) SetAudit(hook AuditHook) { s.audit = hook }

// NewAsyncService validates cfg and starts cfg.NumWorkers worker
// goroutines, each backed by its own Backend from newBackend. NumWorkers
// must be positive; use BlockingService for the synchronous, zero-worker
// case.
func NewAsyncService(cfg Config, newBackend BackendFactory, logger *zap.Logger) (*AsyncService, error) {
	if cfg.NumWorkers <= 0 {
		return nil, validationErrorf("NewAsyncService", "numWorkers must be > 0, got %d", cfg.NumWorkers)
	}
	if newBackend == nil {
		return nil, validationErrorf("NewAsyncService", "newBackend must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &AsyncService{
		cfg:    cfg,
		pool:   NewThreadsafeBatchingPool(),
		cache:  cfg.newCache(),
		logger: logger,
	}
	if cfg.AdmissionRPS > 0 {
		burst := cfg.AdmissionBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AdmissionRPS), burst)
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		backend := newBackend()
		s.wg.Add(1)
		go s.workerLoop(i, backend)
	}
	return s, nil
}

// NewModel builds a TranslationModel façade sized with this service's pool
// config, ready to be passed to Translate/Pivot.
func (s *AsyncService) NewModel(handle ModelHandle, tp TextProcessor) (*TranslationModel, error) {
	return NewTranslationModel(handle, tp, s.cfg.poolConfig())
}

// CacheStats returns the aggregate sentence cache's hit/miss counters.
func (s *AsyncService) CacheStats() CacheStats { return s.cache.Stats() }

func (s *AsyncService) workerLoop(id int, backend Backend) {
	defer s.wg.Done()
	var batch Batch
	ctx := context.Background()
	for {
		model, ok := s.pool.GenerateBatch(&batch)
		if !ok {
			return
		}
		metrics.WorkersBusy.Inc()
		batchCtx, span := tracing.StartSpan(ctx, "dispatch.batch")
		results, err := backend.TranslateBatch(batchCtx, model, &batch)
		span.End()
		if err != nil {
			metrics.BackendErrors.WithLabelValues(string(model.ID())).Inc()
			s.logger.Error("backend translate failed; synthesizing empty results to unblock callers",
				zap.Int("worker", id), zap.String("model", string(model.ID())), zap.Error(err))
			results = make([]SentenceResult, batch.Size())
		}
		s.completeBatch(model, &batch, results, err == nil)
		metrics.WorkersBusy.Dec()
	}
}

// completeBatch records each sentence's result and, once a Request's last
// sentence lands, finishes it. cached gates whether results are written back
// to the shared cache: a batch that failed at the backend produces zero-value
// results that must never be cached, or every future request for the same
// sentence would cache-hit an empty translation until evicted.
func (s *AsyncService) completeBatch(model *TranslationModel, batch *Batch, results []SentenceResult, cached bool) {
	for i, rs := range batch.Sentences {
		var res SentenceResult
		if i < len(results) {
			res = results[i]
		}
		if cached {
			key := NewCacheKey(model.ID(), rs.Segment())
			s.cache.Store(key, res)
		}
		if rs.Req.SetResult(rs.Index, res) {
			rs.Req.Finish()
		}
	}
}

// Translate processes text with model and invokes callback exactly once
// with the final Response. Sentences already present in the cache are
// filled in immediately; only cache misses are handed to the worker pool.
func (s *AsyncService) Translate(model *TranslationModel, text []byte, opts ResponseOptions, callback func(Response, error)) error {
	if s.limiter != nil && !s.limiter.Allow() {
		metrics.AdmissionRejected.Inc()
		return validationErrorf("Translate", "admission limit exceeded")
	}

	source, segments, err := model.Process(text)
	if err != nil {
		return err
	}

	start := time.Now()
	modelID := model.ID()
	numSentences := len(segments)
	var req *Request
	wrapped := func(resp Response, cbErr error) {
		metrics.RecordRequestDuration(string(modelID), "translate", time.Since(start))
		if s.audit != nil {
			s.audit(AuditEntry{
				RequestID:    req.ID,
				ModelID:      modelID,
				NumSentences: numSentences,
				Failed:       cbErr != nil,
				Duration:     time.Since(start),
			})
		}
		callback(resp, cbErr)
	}

	req = NewRequest(model, source, segments, opts, wrapped)

	if len(segments) == 0 {
		go req.Finish()
		return nil
	}

	var misses []int
	for i, seg := range segments {
		key := NewCacheKey(model.ID(), seg)
		res, ok := s.cache.Fetch(key)
		metrics.RecordCacheLookup(ok)
		if ok {
			if req.SetResult(i, res) {
				go req.Finish()
				return nil
			}
		} else {
			misses = append(misses, i)
		}
	}
	if len(misses) == 0 {
		return nil
	}
	_, err = s.pool.EnqueueRequest(model, req, misses)
	return err
}

// Shutdown signals the workers to stop and blocks until all worker
// goroutines have exited. Workers first drain every sentence already queued,
// so requests enqueued before Shutdown still complete; each worker returns
// once the pool is empty.
func (s *AsyncService) Shutdown() {
	s.pool.Shutdown()
	s.wg.Wait()
}
