package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCompletedRequest(t *testing.T, opts ResponseOptions) *Request {
	t.Helper()
	model := newTestModel("m1")
	source := NewAnnotatedText()
	source.AppendSentence(nil, [][]byte{[]byte("hello")})
	source.AppendSentence([]byte("  "), [][]byte{[]byte("world")})
	source.AppendEndingWhitespace([]byte("!"))

	req := NewRequest(model, source, [][]int32{{1}, {2}}, opts, func(Response, error) {})
	req.SetResult(0, SentenceResult{Words: []string{"bonjour"}, SoftAlignment: [][]float64{{1}}, WordScores: []float64{0.9}, SentenceScore: 0.9})
	req.SetResult(1, SentenceResult{Words: []string{"monde"}, Unknown: []int{0}, SoftAlignment: [][]float64{{1}}, WordScores: []float64{0.8}, SentenceScore: 0.8})
	return req
}

func TestBuildResponse_FaithfulPreservesOriginalGaps(t *testing.T) {
	req := buildCompletedRequest(t, ResponseOptions{ConcatStrategy: Faithful, Alignment: true, QualityScores: true})
	resp := BuildResponse(req)

	assert.Equal(t, "bonjour  monde!", string(resp.Target.Text))
	assert.Equal(t, 2, resp.Target.NumSentences())
	require.Len(t, resp.Alignments, 2)
	require.Len(t, resp.QualityScores, 2)
	assert.Equal(t, 0.9, resp.QualityScores[0].Sentence)
	assert.True(t, resp.Target.IsUnknown(1, 0))
}

func TestBuildResponse_SpaceJoinsWithSingleSpace(t *testing.T) {
	req := buildCompletedRequest(t, ResponseOptions{ConcatStrategy: Space})
	resp := BuildResponse(req)

	assert.Equal(t, "bonjour monde", string(resp.Target.Text))
	assert.Nil(t, resp.Alignments)
	assert.Nil(t, resp.QualityScores)
}

func TestBuildResponse_SizeMatchesSentenceCount(t *testing.T) {
	req := buildCompletedRequest(t, ResponseOptions{})
	resp := BuildResponse(req)
	assert.Equal(t, 2, resp.Size())
}
