package dispatch

// Batch is a collection of RequestSentences sharing one model, bounded by a
// miniBatchWords budget. MaxLength is the token count of the longest
// sentence in the batch, which also determines the padded width every
// sentence in the batch is computed at.
type Batch struct {
	Sentences []RequestSentence
	NumTokens int
	MaxLength int
}

// Size returns the number of sentences currently in the batch.
func (b *Batch) Size() int { return len(b.Sentences) }

// Reset empties the batch for reuse, avoiding an allocation per call to
// BatchingPool.GenerateBatch.
func (b *Batch) Reset() {
	b.Sentences = b.Sentences[:0]
	b.NumTokens = 0
	b.MaxLength = 0
}

func (b *Batch) add(rs RequestSentence, length int) {
	b.Sentences = append(b.Sentences, rs)
	b.NumTokens += length
	if length > b.MaxLength {
		b.MaxLength = length
	}
}

// PaddedSize returns size * MaxLength, the word count of the batch once every
// sentence is padded to MaxLength. BatchingPool keeps it at or below
// miniBatchWords.
func (b *Batch) PaddedSize() int {
	return b.Size() * b.MaxLength
}
