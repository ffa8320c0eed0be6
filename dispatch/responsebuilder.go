package dispatch

// BuildResponse assembles the final Response from a Request whose sentences
// have all completed. It walks sentences in order, decoding each one's
// words into the target AnnotatedText and prefixing it with either the
// source's own gap (Faithful) or a single space (Space, skipped before the
// first sentence). After the last sentence it appends the trailing source
// gap (Faithful) or nothing (Space).
func BuildResponse(req *Request) Response {
	opts := req.Options
	n := req.NumSentences()
	target := NewAnnotatedText()

	var alignments []Alignment
	var qualities []Quality
	if opts.Alignment {
		alignments = make([]Alignment, n)
	}
	if opts.QualityScores {
		qualities = make([]Quality, n)
	}

	for s := 0; s < n; s++ {
		res := req.Result(s)

		var prefix []byte
		if opts.ConcatStrategy == Faithful {
			prefix = req.Source.GapText(s)
		} else if s > 0 {
			prefix = []byte(" ")
		}

		tokens := make([][]byte, len(res.Words))
		for i, w := range res.Words {
			tokens[i] = []byte(w)
		}
		target.AppendSentence(prefix, tokens)

		for _, idx := range res.Unknown {
			target.MarkUnknown(s, idx)
		}

		if opts.Alignment {
			alignments[s] = res.SoftAlignment
		}
		if opts.QualityScores {
			qualities[s] = Quality{Sentence: res.SentenceScore, Word: res.WordScores}
		}
	}

	var trailing []byte
	if opts.ConcatStrategy == Faithful {
		trailing = req.Source.GapText(n)
	}
	target.AppendEndingWhitespace(trailing)

	return Response{
		Source:        req.Source,
		Target:        target,
		Alignments:    alignments,
		QualityScores: qualities,
	}
}
