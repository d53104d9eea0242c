package etm

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/corpus"
)

// TermWeight is one entry of a topic's ranked term list.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
	Rank   int     `json:"rank"`
}

// PredictTerms returns the topN heaviest terms of every topic, heaviest
// first. Equal weights keep vocabulary order.
func (m *Model) PredictTerms(topN int) [][]TermWeight {
	beta := m.Beta()
	K, V := beta.Dims()
	if topN <= 0 || topN > V {
		topN = V
	}
	out := make([][]TermWeight, K)
	for k := 0; k < K; k++ {
		row := beta.RawRowView(k)
		order := make([]int, V)
		for v := range order {
			order[v] = v
		}
		sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })
		terms := make([]TermWeight, topN)
		for r := 0; r < topN; r++ {
			terms[r] = TermWeight{Term: m.Vocab[order[r]], Weight: row[order[r]], Rank: r + 1}
		}
		out[k] = terms
	}
	return out
}

// TopicPrediction holds deterministic topic proportions per document and
// their token-weighted average.
type TopicPrediction struct {
	DocIDs      []string
	Theta       *mat.Dense // (N x K)
	WeightedAvg []float64  // (K)
}

// PredictTopics infers θ for every document in evaluation mode. Every
// document must have at least one count; otherwise ErrZeroDocument is
// returned before anything is computed.
func (m *Model) PredictTopics(docs corpus.TokenCounts, batchSize int, normalize bool) (TopicPrediction, error) {
	if docs.V != m.VocabSize() {
		return TopicPrediction{}, fmt.Errorf("%w: documents have %d terms, vocabulary %d", ErrShape, docs.V, m.VocabSize())
	}
	if empty := docs.Empty(); len(empty) > 0 {
		return TopicPrediction{}, fmt.Errorf("%w: %d documents, first is %s", ErrZeroDocument, len(empty), docs.ID(empty[0]))
	}
	n, K := docs.Len(), m.NumTopics()
	if batchSize <= 0 {
		batchSize = n
	}

	pred := TopicPrediction{
		DocIDs:      make([]string, n),
		WeightedAvg: make([]float64, K),
	}
	if n == 0 {
		return pred, nil
	}
	pred.Theta = mat.NewDense(n, K, nil)

	var weight float64
	for _, idx := range batches(docs.All(), batchSize) {
		x := docs.Batch(idx)
		if normalize {
			x = normalizeRows(x)
		}
		theta := thetaFrom(m.encode(x, Eval).mu)
		sums := docs.Sums(idx)
		for i, d := range idx {
			pred.DocIDs[d] = docs.ID(d)
			pred.Theta.SetRow(d, theta.RawRowView(i))
			for k := 0; k < K; k++ {
				pred.WeightedAvg[k] += sums[i] * theta.At(i, k)
			}
			weight += sums[i]
		}
	}
	for k := range pred.WeightedAvg {
		pred.WeightedAvg[k] /= weight
	}
	return pred, nil
}

// PredictTopicsSparse is PredictTopics for a documents x terms sparse matrix.
func (m *Model) PredictTopicsSparse(dtm mat.Matrix, batchSize int, normalize bool) (TopicPrediction, error) {
	docs, err := corpus.FromSparse(dtm)
	if err != nil {
		return TopicPrediction{}, err
	}
	return m.PredictTopics(docs, batchSize, normalize)
}
