package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jerinphilip/transdispatch/metrics"
)

// BlockingService is the synchronous translation API: translateMultiple
// drives the batch loop inline on the calling goroutine until every
// submitted text has a Response, using no background workers at all. This
// is the only case Config.NumWorkers == 0 is valid for.
type BlockingService struct {
	cfg     Config
	pool    *AggregateBatchingPool
	cache   Cache
	backend Backend
	logger  *zap.Logger
	audit   AuditHook

	mu sync.Mutex
}

// SetAudit installs an AuditHook called once per completed request. Passing
// nil disables auditing.
func (s *BlockingService) SetAudit(hook AuditHook) { s.audit = hook }

// NewBlockingService builds a BlockingService around a single Backend
// instance, driven entirely by the calling goroutine.
func NewBlockingService(cfg Config, backend Backend, logger *zap.Logger) *BlockingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockingService{
		cfg:     cfg,
		pool:    NewAggregateBatchingPool(),
		cache:   cfg.newCache(),
		backend: backend,
		logger:  logger,
	}
}

// NewModel builds a TranslationModel façade sized with this service's pool
// config.
func (s *BlockingService) NewModel(handle ModelHandle, tp TextProcessor) (*TranslationModel, error) {
	return NewTranslationModel(handle, tp, s.cfg.poolConfig())
}

// CacheStats returns the aggregate sentence cache's hit/miss counters.
func (s *BlockingService) CacheStats() CacheStats { return s.cache.Stats() }

// TranslateMultiple translates every text with model and returns one
// Response per input, indexed 1-to-1. Concurrent callers are serialized;
// BlockingService has no worker pool to share fairly across them.
func (s *BlockingService) TranslateMultiple(model *TranslationModel, texts [][]byte, opts ResponseOptions) ([]Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	responses := make([]Response, len(texts))
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for i, text := range texts {
		source, segments, err := model.Process(text)
		if err != nil {
			return nil, err
		}
		idx := i
		start := time.Now()
		modelID := model.ID()
		numSentences := len(segments)
		wg.Add(1)
		var req *Request
		req = NewRequest(model, source, segments, opts, func(resp Response, err error) {
			defer wg.Done()
			metrics.RecordRequestDuration(string(modelID), "translate", time.Since(start))
			if s.audit != nil {
				s.audit(AuditEntry{
					RequestID:    req.ID,
					ModelID:      modelID,
					NumSentences: numSentences,
					Failed:       err != nil,
					Duration:     time.Since(start),
				})
			}
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			responses[idx] = resp
		})

		if len(segments) == 0 {
			req.Finish()
			continue
		}

		var misses []int
		complete := false
		for si, seg := range segments {
			key := NewCacheKey(model.ID(), seg)
			res, ok := s.cache.Fetch(key)
			metrics.RecordCacheLookup(ok)
			if ok {
				if req.SetResult(si, res) {
					req.Finish()
					complete = true
				}
			} else {
				misses = append(misses, si)
			}
		}
		if complete {
			continue
		}
		if len(misses) == 0 {
			continue
		}
		if _, err := s.pool.EnqueueRequest(model, req, misses); err != nil {
			wg.Done()
			return nil, err
		}
	}

	s.drain()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return responses, nil
}

// drain runs the batch loop inline until the aggregate pool has no more
// work, translating each batch synchronously through the single backend
// instance.
func (s *BlockingService) drain() {
	var batch Batch
	ctx := context.Background()
	for {
		model, n := s.pool.GenerateBatch(&batch)
		if n == 0 {
			return
		}
		results, err := s.backend.TranslateBatch(ctx, model, &batch)
		if err != nil {
			metrics.BackendErrors.WithLabelValues(string(model.ID())).Inc()
			s.logger.Error("backend translate failed; synthesizing empty results to unblock callers", zap.String("model", string(model.ID())), zap.Error(err))
			results = make([]SentenceResult, batch.Size())
		}
		cached := err == nil
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
}

// PivotMultiple is TranslateMultiple chained through two models: all
// sources are translated to the pivot language first, then every
// intermediate result is translated to the target language, then the two
// halves are combined sentence by sentence.
func (s *BlockingService) PivotMultiple(first, second *TranslationModel, texts [][]byte, opts ResponseOptions) ([]Response, error) {
	firstHalves, err := s.TranslateMultiple(first, texts, opts)
	if err != nil {
		return nil, err
	}

	pivotTexts := make([][]byte, len(firstHalves))
	for i, r := range firstHalves {
		pivotTexts[i] = r.Target.Text
	}

	secondHalves, err := s.TranslateMultiple(second, pivotTexts, opts)
	if err != nil {
		return nil, err
	}

	out := make([]Response, len(texts))
	for i := range texts {
		combined, cerr := CombineResponses(firstHalves[i], secondHalves[i])
		if cerr != nil {
			return nil, cerr
		}
		out[i] = combined
	}
	return out, nil
}
