package dispatch

// Pivot chains two translations: text through first (source to pivot),
// then first's output through second (pivot to target), and delivers a
// single combined Response. Stage 1's completion handler owns stage 1's
// Response until stage 2 finishes, then combines them; this is the
// explicit-state-object equivalent of the callback-chained futures the
// batching core's C++ ancestor used.
func (s *AsyncService) Pivot(first, second *TranslationModel, text []byte, opts ResponseOptions, callback func(Response, error)) error {
	return s.Translate(first, text, opts, func(firstResp Response, err error) {
		if err != nil {
			callback(Response{}, err)
			return
		}
		err = s.Translate(second, firstResp.Target.Text, opts, func(secondResp Response, err2 error) {
			if err2 != nil {
				callback(Response{}, err2)
				return
			}
			combined, cerr := CombineResponses(firstResp, secondResp)
			if cerr != nil {
				callback(Response{}, cerr)
				return
			}
			callback(combined, nil)
		})
		if err != nil {
			callback(Response{}, err)
		}
	})
}

// CombineResponses stitches the two halves of a pivot translation into one
// Response: the final source is stage 1's source, the final target is
// stage 2's target, quality scores come from stage 2, and alignments are
// recomposed across the (possibly differently tokenized) pivot text via
// RemapAlignments.
func CombineResponses(first, second Response) (Response, error) {
	if first.Target.NumSentences() != second.Source.NumSentences() {
		return Response{}, contractErrorf("CombineResponses", "pivot sentence count mismatch: first.target=%d second.source=%d", first.Target.NumSentences(), second.Source.NumSentences())
	}
	var alignments []Alignment
	if len(first.Alignments) > 0 && len(second.Alignments) > 0 {
		var err error
		alignments, err = RemapAlignments(first, second)
		if err != nil {
			return Response{}, err
		}
	}
	return Response{
		Source:        first.Source,
		Target:        second.Target,
		Alignments:    alignments,
		QualityScores: second.QualityScores,
	}, nil
}
