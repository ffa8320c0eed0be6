package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBlockingService_TranslateMultiple(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc := NewBlockingService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4}, backend, zap.NewNop())

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	resps, err := svc.TranslateMultiple(model, [][]byte{[]byte("hello world"), []byte("goodbye")}, ResponseOptions{ConcatStrategy: Space})
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, "HELLO WORLD", string(resps[0].Target.Text))
	assert.Equal(t, "GOODBYE", string(resps[1].Target.Text))
}

func TestBlockingService_TranslateMultipleUsesCacheOnRepeat(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc := NewBlockingService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4, CacheSizeBytes: 1 << 16}, backend, zap.NewNop())

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	_, err = svc.TranslateMultiple(model, [][]byte{[]byte("repeatme")}, ResponseOptions{})
	require.NoError(t, err)
	stats := svc.CacheStats()
	assert.Equal(t, uint64(1), stats.Misses)

	resps, err := svc.TranslateMultiple(model, [][]byte{[]byte("repeatme")}, ResponseOptions{ConcatStrategy: Space})
	require.NoError(t, err)
	assert.Equal(t, "REPEATME", string(resps[0].Target.Text))

	stats = svc.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestBlockingService_TranslateMultipleEmptyTextYieldsEmptyResponse(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc := NewBlockingService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4}, backend, zap.NewNop())

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	resps, err := svc.TranslateMultiple(model, [][]byte{[]byte("")}, ResponseOptions{})
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, 0, resps[0].Size())
}

func TestBlockingService_PivotMultiple(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc := NewBlockingService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4}, backend, zap.NewNop())

	first, err := svc.NewModel(fakeHandle{id: "en-fr"}, proc)
	require.NoError(t, err)
	second, err := svc.NewModel(fakeHandle{id: "fr-de"}, proc)
	require.NoError(t, err)

	resps, err := svc.PivotMultiple(first, second, [][]byte{[]byte("one two")}, ResponseOptions{ConcatStrategy: Space})
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "ONE TWO", string(resps[0].Target.Text))
}

func TestBlockingService_AuditHookFiresPerRequest(t *testing.T) {
	proc := newWordProcessor()
	backend := &upperBackend{proc: proc}
	svc := NewBlockingService(Config{MiniBatchWords: 1000, MaxLengthBreak: 64, PivotSlack: 4}, backend, zap.NewNop())

	model, err := svc.NewModel(fakeHandle{id: "m1"}, proc)
	require.NoError(t, err)

	var entries []AuditEntry
	svc.SetAudit(func(e AuditEntry) { entries = append(entries, e) })

	_, err = svc.TranslateMultiple(model, [][]byte{[]byte("a"), []byte("b c")}, ResponseOptions{})
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, ModelID("m1"), entries[0].ModelID)
	assert.False(t, entries[0].Failed)
}
