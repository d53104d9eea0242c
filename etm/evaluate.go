package etm

import (
	"fmt"
	"math"

	"github.com/RolandMax/ETM/corpus"
)

// Perplexity scores document completion: θ is inferred from the first
// halves and the words of the second halves are predicted from θβ. Each
// document's loss is divided by its second-half total, the mean over all
// documents is exponentiated and the result rounded to one decimal. It is
// NaN when there are no documents.
func (m *Model) Perplexity(first, second corpus.TokenCounts, batchSize int, normalize bool) float64 {
	n := first.Len()
	if second.Len() != n {
		panic(fmt.Sprintf("perplexity: %d first halves but %d second halves", n, second.Len()))
	}
	if n == 0 {
		return math.NaN()
	}
	if batchSize <= 0 {
		batchSize = n
	}

	beta := m.Beta()
	total := 0.0
	for _, idx := range batches(first.All(), batchSize) {
		x := first.Batch(idx)
		if normalize {
			x = normalizeRows(x)
		}
		enc := m.encode(x, Eval)
		res := decode(thetaFrom(enc.mu), beta)
		sums := second.Sums(idx)
		for i, l := range reconLoss(res, second.Batch(idx)) {
			total += l / sums[i]
		}
	}
	ppl := math.Exp(total / float64(n))
	return math.Round(ppl*10) / 10
}

// batches cuts idx into consecutive chunks of at most size.
func batches(idx []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(idx); start += size {
		end := start + size
		if end > len(idx) {
			end = len(idx)
		}
		out = append(out, idx[start:end])
	}
	return out
}
