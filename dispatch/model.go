package dispatch

import "context"

// ModelID identifies a loaded model; it is stable for the model's lifetime
// and is part of the cache key so two models never collide in the cache.
type ModelID string

// ModelHandle is the opaque handle a ModelLoader collaborator hands back.
// dispatch never inspects it beyond asking for its ID.
type ModelHandle interface {
	ModelID() ModelID
}

// TextProcessor is the token-aware sentence splitter and tokenizer
// collaborator. It turns raw input text into an AnnotatedText (byte-range
// bookkeeping for reconstruction) and the parallel sequence of per-sentence
// token-id segments the backend consumes.
type TextProcessor interface {
	Process(text []byte) (*AnnotatedText, [][]int32, error)
}

// Backend is the inference kernel collaborator: it runs the neural network
// over a homogeneous Batch and returns one SentenceResult per sentence, in
// the same order as batch.Sentences. dispatch owns cache population and
// Request completion; Backend only does inference.
type Backend interface {
	TranslateBatch(ctx context.Context, model *TranslationModel, batch *Batch) ([]SentenceResult, error)
}

// TranslationModel is the façade the service interacts with: it pairs a
// loaded model handle and its TextProcessor with the model's own
// BatchingPool, and is shared by the service and every in-flight Request
// that names it.
type TranslationModel struct {
	id            ModelID
	handle        ModelHandle
	textProcessor TextProcessor
	pool          *BatchingPool
}

// NewTranslationModel builds a façade around handle, backed by a fresh
// BatchingPool sized per cfg.
func NewTranslationModel(handle ModelHandle, tp TextProcessor, cfg PoolConfig) (*TranslationModel, error) {
	pool, err := NewBatchingPool(cfg)
	if err != nil {
		return nil, err
	}
	return &TranslationModel{
		id:            handle.ModelID(),
		handle:        handle,
		textProcessor: tp,
		pool:          pool,
	}, nil
}

// ID returns the model's stable identifier.
func (m *TranslationModel) ID() ModelID { return m.id }

// Handle returns the underlying opaque model handle.
func (m *TranslationModel) Handle() ModelHandle { return m.handle }

// Process delegates to the model's TextProcessor.
func (m *TranslationModel) Process(text []byte) (*AnnotatedText, [][]int32, error) {
	return m.textProcessor.Process(text)
}
