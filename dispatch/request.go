package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// RequestState is the lifecycle state of a Request.
type RequestState int32

const (
	StateCreated RequestState = iota
	StateSegmented
	StatePartiallyDone
	StateDone
)

func (s RequestState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSegmented:
		return "segmented"
	case StatePartiallyDone:
		return "partially_done"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// SentenceResult is the per-sentence output of the inference backend.
type SentenceResult struct {
	// Words holds the decoded output tokens in order, each with its own
	// surface whitespace: BuildResponse concatenates them verbatim. Any
	// forced end-of-sequence marker has already been stripped.
	Words []string
	// Unknown holds the indices, into Words, of output tokens that were
	// substituted for vocabulary the model did not recognize.
	Unknown []int
	// SoftAlignment is a dense len(Words) x numSourceWords matrix; row t
	// sums to approximately 1 and gives the attention distribution of
	// output word t over the source sentence's words.
	SoftAlignment [][]float64
	WordScores    []float64
	SentenceScore float64
}

// Clone returns a deep copy, so cache fetches never alias interior slices.
func (r SentenceResult) Clone() SentenceResult {
	out := r
	out.Words = append([]string(nil), r.Words...)
	out.Unknown = append([]int(nil), r.Unknown...)
	out.WordScores = append([]float64(nil), r.WordScores...)
	if r.SoftAlignment != nil {
		out.SoftAlignment = make([][]float64, len(r.SoftAlignment))
		for i, row := range r.SoftAlignment {
			out.SoftAlignment[i] = append([]float64(nil), row...)
		}
	}
	return out
}

// Request tracks sentence-level completion of one user input. It is shared
// by every RequestSentence that refers to it (via buckets and batches); the
// goroutine that performs the last SetResult call fires the callback
// exactly once.
type Request struct {
	ID       string
	seq      int64
	Model    *TranslationModel
	Segments [][]int32
	Source   *AnnotatedText
	Options  ResponseOptions

	callback func(Response, error)

	mu      sync.Mutex
	results []SentenceResult
	counter int32
	state   int32
}

var requestSeq int64

// NewRequest creates a Request in StateSegmented: the text has already been
// split into segments by the TextProcessor collaborator.
func NewRequest(model *TranslationModel, source *AnnotatedText, segments [][]int32, opts ResponseOptions, callback func(Response, error)) *Request {
	return &Request{
		ID:       uuid.NewString(),
		seq:      atomic.AddInt64(&requestSeq, 1),
		Model:    model,
		Segments: segments,
		Source:   source,
		Options:  opts,
		callback: callback,
		results:  make([]SentenceResult, len(segments)),
		counter:  int32(len(segments)),
		state:    int32(StateSegmented),
	}
}

// NumSentences returns the number of sentences (segments) in this request.
func (r *Request) NumSentences() int { return len(r.Segments) }

// State returns the request's current lifecycle state.
func (r *Request) State() RequestState { return RequestState(atomic.LoadInt32(&r.state)) }

// SetResult records the result for sentence index and returns true if this
// call observed the last outstanding sentence, i.e. the caller is
// responsible for building the Response and invoking the callback.
func (r *Request) SetResult(index int, result SentenceResult) bool {
	r.mu.Lock()
	r.results[index] = result
	r.mu.Unlock()

	atomic.CompareAndSwapInt32(&r.state, int32(StateSegmented), int32(StatePartiallyDone))

	remaining := atomic.AddInt32(&r.counter, -1)
	if remaining == 0 {
		atomic.StoreInt32(&r.state, int32(StateDone))
		return true
	}
	if remaining < 0 {
		panic("dispatch: Request.SetResult called more times than it has segments")
	}
	return false
}

// Result returns the currently recorded result for sentence index. Safe to
// call only once the request is done, or for sentences already marked done
// via SetResult.
func (r *Request) Result(index int) SentenceResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[index]
}

// Finish builds the final Response and invokes the callback. Called exactly
// once, by whichever goroutine's SetResult observed the counter reach zero,
// or directly by the services for a request with no sentences.
func (r *Request) Finish() Response {
	resp := BuildResponse(r)
	r.callback(resp, nil)
	return resp
}

// Fail invokes the callback with an error instead of a Response. Neither
// service calls it; empty input completes through Finish with an empty
// Response.
func (r *Request) Fail(err error) {
	r.callback(Response{}, err)
}

// RequestSentence is a non-owning reference to one sentence of a Request:
// an index plus the Request it belongs to. Copied freely into bucket and
// batch containers.
type RequestSentence struct {
	Index int
	Req   *Request
}

// NumTokens returns the token count of this sentence's segment, the
// BatchingPool's bucket key.
func (rs RequestSentence) NumTokens() int {
	return len(rs.Req.Segments[rs.Index])
}

// Segment returns the token-id sequence for this sentence.
func (rs RequestSentence) Segment() []int32 {
	return rs.Req.Segments[rs.Index]
}

// RequestSeq returns the monotonic sequence number assigned to the request
// when it was created. BatchingPool does not consult it: a bucket is drained
// in the order its sentences were enqueued.
func (rs RequestSentence) RequestSeq() int64 { return rs.Req.seq }

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
