package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wordProcessor splits on spaces, one sentence per non-empty call (empty
// text yields no sentences), mapping each word to a stable token id by
// position in a shared vocabulary. Every token after the first carries the
// space that preceded it, so the annotated source reproduces the input.
type wordProcessor struct {
	mu    sync.Mutex
	vocab map[string]int32
}

func newWordProcessor() *wordProcessor { return &wordProcessor{vocab: map[string]int32{}} }

func (p *wordProcessor) id(w string) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.vocab[w]; ok {
		return v
	}
	v := int32(len(p.vocab) + 1)
	p.vocab[w] = v
	return v
}

func (p *wordProcessor) Process(text []byte) (*AnnotatedText, [][]int32, error) {
	words := strings.Fields(string(text))
	a := NewAnnotatedText()
	if len(words) == 0 {
		a.AppendEndingWhitespace(nil)
		return a, nil, nil
	}
	ids := make([]int32, len(words))
	tokens := make([][]byte, len(words))
	for i, w := range words {
		tokens[i] = []byte(w)
		if i > 0 {
			tokens[i] = []byte(" " + w)
		}
		ids[i] = p.id(w)
	}
	a.AppendSentence(nil, tokens)
	a.AppendEndingWhitespace(nil)
	return a, [][]int32{ids}, nil
}

// upperBackend upper-cases each token's surface form and, like
// wordProcessor, prefixes every token after the first with a space.
type upperBackend struct{ proc *wordProcessor }

func (b *upperBackend) TranslateBatch(ctx context.Context, model *TranslationModel, batch *Batch) ([]SentenceResult, error) {
	out := make([]SentenceResult, batch.Size())
	rev := make(map[int32]string)
	b.proc.mu.Lock()
	for w, id := range b.proc.vocab {
		rev[id] = w
	}
	b.proc.mu.Unlock()

	for i, rs := range batch.Sentences {
		seg := rs.Segment()
		words := make([]string, len(seg))
		for j, id := range seg {
			words[j] = strings.ToUpper(rev[id])
			if j > 0 {
				words[j] = " " + words[j]
			}
		}
		out[i] = SentenceResult{Words: words}
	}
	return out, nil
}

func TestAsyncService_TranslateEndToEnd(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc, err := NewAsyncService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, NumWorkers: 2}, func() Backend { return backend }, zap.NewNop())
	require.NoError(t, err)
	defer svc.Shutdown()

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	done := make(chan Response, 1)
	err = svc.Translate(model, []byte("hello world"), ResponseOptions{ConcatStrategy: Space}, func(resp Response, err error) {
		require.NoError(t, err)
		done <- resp
	})
	require.NoError(t, err)

	select {
	case resp := <-done:
		assert.Equal(t, "HELLO WORLD", string(resp.Target.Text))
	case <-time.After(time.Second):
		t.Fatal("translate did not complete")
	}
}

func TestAsyncService_CacheHitSkipsBackend(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc, err := NewAsyncService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, NumWorkers: 1, CacheSizeBytes: 1 << 16}, func() Backend { return backend }, zap.NewNop())
	require.NoError(t, err)
	defer svc.Shutdown()

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	first := make(chan struct{})
	err = svc.Translate(model, []byte("cacheme"), ResponseOptions{}, func(Response, error) { close(first) })
	require.NoError(t, err)
	<-first

	stats := svc.CacheStats()
	assert.Equal(t, uint64(1), stats.Misses)

	second := make(chan Response, 1)
	err = svc.Translate(model, []byte("cacheme"), ResponseOptions{ConcatStrategy: Space}, func(resp Response, err error) {
		require.NoError(t, err)
		second <- resp
	})
	require.NoError(t, err)

	select {
	case resp := <-second:
		assert.Equal(t, "CACHEME", string(resp.Target.Text))
	case <-time.After(time.Second):
		t.Fatal("cached translate did not complete")
	}

	stats = svc.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestAsyncService_EmptyInputCompletesImmediately(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc, err := NewAsyncService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, NumWorkers: 1}, func() Backend { return backend }, zap.NewNop())
	require.NoError(t, err)
	defer svc.Shutdown()

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	done := make(chan Response, 1)
	err = svc.Translate(model, []byte(""), ResponseOptions{}, func(resp Response, err error) {
		require.NoError(t, err)
		done <- resp
	})
	require.NoError(t, err)

	select {
	case resp := <-done:
		assert.Equal(t, 0, resp.Size())
	case <-time.After(time.Second):
		t.Fatal("empty-input translate did not complete")
	}
}

func TestNewAsyncService_RejectsZeroWorkers(t *testing.T) {
	_, err := NewAsyncService(Config{NumWorkers: 0}, func() Backend { return nil }, nil)
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAsyncService_AdmissionLimiterRejects(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc, err := NewAsyncService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, NumWorkers: 1, AdmissionRPS: 1, AdmissionBurst: 1}, func() Backend { return backend }, zap.NewNop())
	require.NoError(t, err)
	defer svc.Shutdown()

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	err = svc.Translate(model, []byte("one"), ResponseOptions{}, func(Response, error) {})
	require.NoError(t, err)

	err = svc.Translate(model, []byte("two"), ResponseOptions{}, func(Response, error) {})
	assert.Error(t, err)
}

func TestAsyncService_ShutdownStopsWorkers(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc, err := NewAsyncService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, NumWorkers: 2}, func() Backend { return backend }, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return in time")
	}
}
