// Command translated is a minimal end-to-end wiring example: a toy
// whitespace TextProcessor and an upper-casing Backend stand in for a real
// tokenizer and inference kernel, exercising AsyncService.Translate through
// the same config/metrics/tracing/audit stack a real deployment would use.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jerinphilip/transdispatch/audit"
	"github.com/jerinphilip/transdispatch/config"
	"github.com/jerinphilip/transdispatch/dispatch"
	"github.com/jerinphilip/transdispatch/modelconfig"
	"github.com/jerinphilip/transdispatch/tracing"
)

// toyHandle is a ModelHandle backed by nothing more than a name.
type toyHandle struct{ id dispatch.ModelID }

func (h toyHandle) ModelID() dispatch.ModelID { return h.id }

// toyProcessor splits text on ". " into sentences and on spaces into words,
// building the byte-range annotation as it goes and mapping each word to a
// token id by its position in a tiny fixed vocabulary it grows on demand.
type toyProcessor struct {
	mu      sync.Mutex
	vocab   map[string]int32
	reverse map[int32]string
}

func newToyProcessor() *toyProcessor {
	return &toyProcessor{vocab: make(map[string]int32), reverse: make(map[int32]string)}
}

func (p *toyProcessor) tokenID(word string) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.vocab[word]; ok {
		return id
	}
	id := int32(len(p.vocab) + 1)
	p.vocab[word] = id
	p.reverse[id] = word
	return id
}

func (p *toyProcessor) word(id int32) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reverse[id]
}

func (p *toyProcessor) Process(text []byte) (*dispatch.AnnotatedText, [][]int32, error) {
	source := dispatch.NewAnnotatedText()
	var segments [][]int32

	sentences := strings.Split(string(text), ". ")
	for i, sentence := range sentences {
		sentence = strings.TrimSuffix(sentence, ".")
		words := strings.Fields(sentence)

		tokens := make([][]byte, len(words))
		ids := make([]int32, len(words))
		for j, w := range words {
			tokens[j] = []byte(w)
			ids[j] = p.tokenID(w)
		}

		var prefix []byte
		if i > 0 {
			prefix = []byte(". ")
		}
		source.AppendSentence(prefix, tokens)
		segments = append(segments, ids)
	}
	source.AppendEndingWhitespace(nil)
	return source, segments, nil
}

// toyBackend "translates" by upper-casing the surface form of each token,
// keyed back to its word via the processor's vocabulary.
type toyBackend struct {
	processor *toyProcessor
}

func (b *toyBackend) TranslateBatch(ctx context.Context, model *dispatch.TranslationModel, batch *dispatch.Batch) ([]dispatch.SentenceResult, error) {
	out := make([]dispatch.SentenceResult, batch.Size())
	for i, rs := range batch.Sentences {
		seg := rs.Segment()
		words := make([]string, len(seg))
		for j, id := range seg {
			words[j] = strings.ToUpper(b.processor.word(id))
		}
		out[i] = dispatch.SentenceResult{Words: words}
	}
	return out, nil
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load service config, using defaults", zap.Error(err))
		cfg = &config.Service{NumWorkers: 2}
	}

	models, err := modelconfig.Load()
	if err != nil {
		logger.Warn("failed to load model overrides", zap.Error(err))
	} else if stop, err := models.Watch(); err == nil {
		defer stop()
	}

	if err := tracing.Initialize(tracing.Config{Enabled: false, ServiceName: "translated-demo"}, logger); err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	}

	sink, err := audit.Open(os.TempDir()+"/translated-demo-audit.db", 10, 50*time.Millisecond, logger)
	if err != nil {
		logger.Fatal("failed to open audit sink", zap.Error(err))
	}
	defer sink.Close()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":9095", nil)
	}()

	processor := newToyProcessor()
	backend := &toyBackend{processor: processor}

	dcfg := dispatch.Config{
		MiniBatchWords: cfg.Batching.MiniBatchWords,
		MaxLengthBreak: cfg.Batching.MaxLengthBreak,
		PivotSlack:     cfg.Batching.PivotSlack,
		NumWorkers:     cfg.NumWorkers,
		CacheSizeBytes: cfg.Cache.SizeBytes,
		AvgEntryBytes:  cfg.Cache.AvgEntry,
		CacheShards:    cfg.Cache.Shards,
		AdmissionRPS:   cfg.Admission.RPS,
		AdmissionBurst: cfg.Admission.Burst,
	}

	svc, err := dispatch.NewAsyncService(dcfg, func() dispatch.Backend { return backend }, logger)
	if err != nil {
		logger.Fatal("failed to start async service", zap.Error(err))
	}
	defer svc.Shutdown()
	svc.SetAudit(func(e dispatch.AuditEntry) {
		sink.Record(audit.Entry{
			RequestID:      e.RequestID,
			ModelID:        string(e.ModelID),
			NumSentences:   e.NumSentences,
			Failed:         e.Failed,
			DurationMicros: e.Duration.Microseconds(),
			CompletedAt:    time.Now(),
		})
	})

	enModel, err := svc.NewModel(toyHandle{id: "en-toy"}, processor)
	if err != nil {
		logger.Fatal("failed to build model", zap.Error(err))
	}

	done := make(chan struct{})
	text := []byte("hello world. this is a toy translator")

	err = svc.Translate(enModel, text, dispatch.ResponseOptions{ConcatStrategy: dispatch.Space}, func(resp dispatch.Response, err error) {
		defer close(done)
		if err != nil {
			logger.Error("translate failed", zap.Error(err))
			return
		}
		fmt.Printf("translated: %q\n", string(resp.Target.Text))
	})
	if err != nil {
		logger.Fatal("translate call failed", zap.Error(err))
	}
	<-done
}
