package dispatch

// ByteRange is a half-open byte range [Begin, End) into some AnnotatedText's
// Text buffer.
type ByteRange struct {
	Begin int
	End   int
}

// Len returns the number of bytes the range spans.
func (r ByteRange) Len() int { return r.End - r.Begin }

// AnnotatedText owns a text blob and the byte-range annotations of its
// tokens and sentences. The text is tiled by an alternating sequence
// gap, sentence, gap, sentence, ..., gap: there is always one more gap
// than there are sentences. Tokens may themselves contain whitespace, so a
// sentence's bounds are not simply whitespace-delimited.
//
// tokenBegin holds byte offsets, one per token boundary (so it has
// numTokens+1 entries; token i spans [tokenBegin[i], tokenBegin[i+1])). gap
// holds, for every gap, the index into tokenBegin at which that gap's token
// begins. Sentence s occupies the tokens strictly between gap[s] and
// gap[s+1].
type AnnotatedText struct {
	Text       []byte
	tokenBegin []int
	gap        []int
	unknown    map[[2]int]struct{}
}

// NewAnnotatedText returns an empty AnnotatedText ready to be populated with
// AppendSentence/AppendEndingWhitespace.
func NewAnnotatedText() *AnnotatedText {
	return &AnnotatedText{
		tokenBegin: []int{0, 0},
		gap:        []int{0},
	}
}

// NumSentences returns the number of sentences recorded so far.
func (a *AnnotatedText) NumSentences() int { return len(a.gap) - 1 }

// NumWords returns the number of tokens in sentence s.
func (a *AnnotatedText) NumWords(s int) int { return a.gap[s+1] - a.gap[s] - 1 }

// Word returns the byte range of token w in sentence s.
func (a *AnnotatedText) Word(s, w int) ByteRange {
	tok := a.gap[s] + 1 + w
	return ByteRange{a.tokenBegin[tok], a.tokenBegin[tok+1]}
}

// Sentence returns the byte range spanning all tokens of sentence s,
// excluding the surrounding gaps.
func (a *AnnotatedText) Sentence(s int) ByteRange {
	return ByteRange{a.tokenBegin[a.gap[s]+1], a.tokenBegin[a.gap[s+1]]}
}

// Gap returns the byte range of gap g. g ranges over [0, NumSentences()].
func (a *AnnotatedText) Gap(g int) ByteRange {
	tok := a.gap[g]
	return ByteRange{a.tokenBegin[tok], a.tokenBegin[tok+1]}
}

// WordText, SentenceText and GapText are convenience wrappers that slice
// Text directly instead of returning a ByteRange.
func (a *AnnotatedText) WordText(s, w int) []byte {
	r := a.Word(s, w)
	return a.Text[r.Begin:r.End]
}

func (a *AnnotatedText) SentenceText(s int) []byte {
	r := a.Sentence(s)
	return a.Text[r.Begin:r.End]
}

func (a *AnnotatedText) GapText(g int) []byte {
	r := a.Gap(g)
	return a.Text[r.Begin:r.End]
}

// AppendSentence appends prefixGap (the whitespace preceding the sentence)
// and then tokens (the sentence's own tokens, which may themselves contain
// whitespace) to the text blob, recording annotation for the new sentence.
// Callers must call this in sentence order and finish with exactly one
// AppendEndingWhitespace call. Returns the new sentence's index.
func (a *AnnotatedText) AppendSentence(prefixGap []byte, tokens [][]byte) int {
	a.Text = append(a.Text, prefixGap...)
	a.tokenBegin[len(a.tokenBegin)-1] = len(a.Text)

	for _, tok := range tokens {
		a.Text = append(a.Text, tok...)
		a.tokenBegin = append(a.tokenBegin, len(a.Text))
	}

	// Open a new, zero-width trailing gap token; the next AppendSentence or
	// AppendEndingWhitespace call extends it.
	a.tokenBegin = append(a.tokenBegin, len(a.Text))
	placeholder := len(a.tokenBegin) - 2
	a.gap = append(a.gap, placeholder)
	return len(a.gap) - 2
}

// AppendEndingWhitespace appends the trailing gap after the last sentence.
// Callers must call this exactly once, after all sentences have been added.
func (a *AnnotatedText) AppendEndingWhitespace(gap []byte) {
	a.Text = append(a.Text, gap...)
	a.tokenBegin[len(a.tokenBegin)-1] = len(a.Text)
}

// MarkUnknown records that token w of sentence s was foreign to the model's
// vocabulary and was passed through via a reserved substitution token.
func (a *AnnotatedText) MarkUnknown(s, w int) {
	if a.unknown == nil {
		a.unknown = make(map[[2]int]struct{})
	}
	a.unknown[[2]int{s, w}] = struct{}{}
}

// IsUnknown reports whether token w of sentence s was marked unknown.
func (a *AnnotatedText) IsUnknown(s, w int) bool {
	if a.unknown == nil {
		return false
	}
	_, ok := a.unknown[[2]int{s, w}]
	return ok
}

func wordRanges(a *AnnotatedText, s int) []ByteRange {
	n := a.NumWords(s)
	out := make([]ByteRange, n)
	for w := 0; w < n; w++ {
		out[w] = a.Word(s, w)
	}
	return out
}
