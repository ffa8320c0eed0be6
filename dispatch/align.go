package dispatch

// RemapAlignments composes two pivoted translations' alignment matrices by
// marginalizing the pivot variable q:
//
//	P(s_i | t_k) = sum_j P(s_i | q_j) * P(q_j | t_k)
//
// The pivot text produced as first.Target is the same text consumed as
// second.Source, but the two halves tokenized it independently, so their
// word boundaries need not line up. transferColumns rebuilds P(q|t) in
// first.Target's own tokenization by walking both halves' byte ranges with
// two pointers and distributing probability mass proportionally to byte
// overlap, before the matrix multiply against first's P(s|q).
func RemapAlignments(first, second Response) ([]Alignment, error) {
	n := first.Target.NumSentences()
	if second.Source.NumSentences() != n {
		return nil, contractErrorf("RemapAlignments", "sentence count mismatch: first.target=%d second.source=%d", n, second.Source.NumSentences())
	}
	out := make([]Alignment, n)
	for s := 0; s < n; s++ {
		sQ := wordRanges(first.Target, s)
		qT := wordRanges(second.Source, s)

		var pqt [][]float64
		if s < len(second.Alignments) {
			pqt = transferColumns(sQ, qT, second.Alignments[s])
		}

		var psq [][]float64
		if s < len(first.Alignments) {
			psq = first.Alignments[s]
		}

		out[s] = matMul(pqt, psq)
	}
	return out, nil
}

// transferColumns rebuilds, in sQ's indexing, the column distribution of
// pt (rows = target tokens, cols = qt's pivot tokens). Ranges that match
// exactly transfer probability 1-for-1; otherwise the byte-length overlap
// between an sQ range and a qt range determines what fraction of that qt
// column's probability mass is distributed onto the sQ range, and the
// pointer whose range ends first advances (ties advance both).
func transferColumns(sQ, qt []ByteRange, pt [][]float64) [][]float64 {
	rows := len(pt)
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, len(sQ))
	}

	i, j := 0, 0
	for i < len(sQ) && j < len(qt) {
		a, b := sQ[i], qt[j]
		lo, hi := maxInt(a.Begin, b.Begin), minInt(a.End, b.End)
		overlap := hi - lo
		if overlap > 0 {
			bLen := b.Len()
			frac := 1.0
			if bLen > 0 {
				frac = float64(overlap) / float64(bLen)
			}
			for r := 0; r < rows; r++ {
				out[r][i] += pt[r][j] * frac
			}
		}
		switch {
		case a.End < b.End:
			i++
		case b.End < a.End:
			j++
		default:
			i++
			j++
		}
	}
	return out
}

// matMul multiplies a (T x Q) by b (Q x S), returning a T x S matrix.
// Columns of a beyond b's row count, or rows of b beyond a row's length,
// contribute zero.
func matMul(a, b [][]float64) [][]float64 {
	t := len(a)
	out := make([][]float64, t)
	s := 0
	if len(b) > 0 {
		s = len(b[0])
	}
	for row := 0; row < t; row++ {
		out[row] = make([]float64, s)
		for q := 0; q < len(a[row]) && q < len(b); q++ {
			weight := a[row][q]
			if weight == 0 {
				continue
			}
			for col := 0; col < s; col++ {
				out[row][col] += weight * b[q][col]
			}
		}
	}
	return out
}

// RowSums returns, for a T x S alignment matrix, the sum across each row.
// Used by tests (and optionally by debug builds) to verify that remapping
// preserves probability mass: for every target token t, the sum of
// P(s|t) over all source tokens s should match the sum before remap
// (each of P(s|q) and P(q|t) is itself row-stochastic, so composing them
// should stay row-stochastic within floating point epsilon).
func RowSums(a Alignment) []float64 {
	sums := make([]float64, len(a))
	for r, row := range a {
		for _, v := range row {
			sums[r] += v
		}
	}
	return sums
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
