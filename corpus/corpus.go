// Package corpus holds bag-of-words documents in sparse token/count form and
// assembles the dense minibatches the model consumes.
package corpus

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/e-gun/sparse"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var ErrNotSparse = errors.New("corpus: document-term matrix must be sparse")

// TokenCounts is a corpus of N documents over a vocabulary of size V.
// Document d holds the distinct term ids Tokens[d] (ascending) with their
// counts Counts[d].
type TokenCounts struct {
	Tokens [][]int
	Counts [][]float64
	V      int
	IDs    []string // optional; row index is used when empty
}

func (tc TokenCounts) Len() int { return len(tc.Tokens) }

// ID returns the label of document i.
func (tc TokenCounts) ID(i int) string {
	if i < len(tc.IDs) && tc.IDs[i] != "" {
		return tc.IDs[i]
	}
	return strconv.Itoa(i)
}

// Batch builds the dense (len(idx) x V) count matrix for the selected
// documents. Absent terms are zero.
func (tc TokenCounts) Batch(idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), tc.V, nil)
	for r, d := range idx {
		if d < 0 || d >= len(tc.Tokens) {
			panic(fmt.Sprintf("corpus: document index %d out of range [0,%d)", d, len(tc.Tokens)))
		}
		for k, w := range tc.Tokens[d] {
			out.Set(r, w, tc.Counts[d][k])
		}
	}
	return out
}

// Sums returns the token total of each selected document.
func (tc TokenCounts) Sums(idx []int) []float64 {
	out := make([]float64, len(idx))
	for r, d := range idx {
		for _, c := range tc.Counts[d] {
			out[r] += c
		}
	}
	return out
}

// All returns 0..N-1.
func (tc TokenCounts) All() []int {
	idx := make([]int, tc.Len())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Subset returns the selected documents in the given order. Row slices are
// shared with tc.
func (tc TokenCounts) Subset(idx []int) TokenCounts {
	out := TokenCounts{
		Tokens: make([][]int, len(idx)),
		Counts: make([][]float64, len(idx)),
		V:      tc.V,
		IDs:    make([]string, len(idx)),
	}
	for r, d := range idx {
		out.Tokens[r] = tc.Tokens[d]
		out.Counts[r] = tc.Counts[d]
		out.IDs[r] = tc.ID(d)
	}
	return out
}

// NonEmpty lists the documents with a positive token total.
func (tc TokenCounts) NonEmpty() []int {
	var idx []int
	for d, s := range tc.Sums(tc.All()) {
		if s > 0 {
			idx = append(idx, d)
		}
	}
	return idx
}

// Empty lists the documents with no tokens.
func (tc TokenCounts) Empty() []int {
	var idx []int
	for d, s := range tc.Sums(tc.All()) {
		if s <= 0 {
			idx = append(idx, d)
		}
	}
	return idx
}

type csrConverter interface {
	ToCSR() *sparse.CSR
}

// FromSparse reads a documents x terms sparse matrix. Any james-bowman/sparse
// format is accepted; dense matrices are rejected with ErrNotSparse.
func FromSparse(m mat.Matrix) (TokenCounts, error) {
	switch s := m.(type) {
	case *sparse.CSR:
		return FromCSR(s), nil
	case csrConverter:
		return FromCSR(s.ToCSR()), nil
	}
	return TokenCounts{}, fmt.Errorf("%w: got %T", ErrNotSparse, m)
}

// FromCSR converts a CSR matrix. Explicit zeros are skipped.
func FromCSR(m *sparse.CSR) TokenCounts {
	r, c := m.Dims()
	tc := TokenCounts{
		Tokens: make([][]int, r),
		Counts: make([][]float64, r),
		V:      c,
	}
	m.DoNonZero(func(i, j int, v float64) {
		if v == 0 {
			return
		}
		tc.Tokens[i] = append(tc.Tokens[i], j)
		tc.Counts[i] = append(tc.Counts[i], v)
	})
	for d := range tc.Tokens {
		sort.Sort(byToken{tc.Tokens[d], tc.Counts[d]})
	}
	return tc
}

// ToCSR is the inverse of FromCSR.
func (tc TokenCounts) ToCSR() *sparse.CSR {
	dok := sparse.NewDOK(tc.Len(), tc.V)
	for d := range tc.Tokens {
		for k, w := range tc.Tokens[d] {
			dok.Set(d, w, tc.Counts[d][k])
		}
	}
	return dok.ToCSR()
}

type byToken struct {
	tokens []int
	counts []float64
}

func (b byToken) Len() int           { return len(b.tokens) }
func (b byToken) Less(i, j int) bool { return b.tokens[i] < b.tokens[j] }
func (b byToken) Swap(i, j int) {
	b.tokens[i], b.tokens[j] = b.tokens[j], b.tokens[i]
	b.counts[i], b.counts[j] = b.counts[j], b.counts[i]
}

// Halve splits every document into two halves for document completion:
// the tokens are expanded, shuffled with rng, and the first floor(n/2) go to
// the first half and the rest to the second. Documents where either half is
// empty are dropped; kept lists the surviving indices of tc.
func Halve(tc TokenCounts, rng *rand.Rand) (first, second TokenCounts, kept []int) {
	first = TokenCounts{V: tc.V}
	second = TokenCounts{V: tc.V}
	var bag []int
	for d := range tc.Tokens {
		bag = bag[:0]
		for k, w := range tc.Tokens[d] {
			for c := int(math.Round(tc.Counts[d][k])); c > 0; c-- {
				bag = append(bag, w)
			}
		}
		take := len(bag) / 2
		if take == 0 {
			continue
		}
		rng.Shuffle(len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })

		t1, c1 := collapse(bag[:take])
		t2, c2 := collapse(bag[take:])
		id := tc.ID(d)
		first.Tokens = append(first.Tokens, t1)
		first.Counts = append(first.Counts, c1)
		first.IDs = append(first.IDs, id)
		second.Tokens = append(second.Tokens, t2)
		second.Counts = append(second.Counts, c2)
		second.IDs = append(second.IDs, id)
		kept = append(kept, d)
	}
	return first, second, kept
}

// collapse turns a bag of term ids back into ascending ids with counts.
func collapse(bag []int) ([]int, []float64) {
	ids := append([]int(nil), bag...)
	sort.Ints(ids)
	var tokens []int
	var counts []float64
	for _, w := range ids {
		if n := len(tokens); n > 0 && tokens[n-1] == w {
			counts[n-1]++
			continue
		}
		tokens = append(tokens, w)
		counts = append(counts, 1)
	}
	return tokens, counts
}

// Columns keeps only the listed term ids, renumbered to their position in
// keep. Documents may become empty.
func (tc TokenCounts) Columns(keep []int) TokenCounts {
	remap := make(map[int]int, len(keep))
	for i, w := range keep {
		remap[w] = i
	}
	out := TokenCounts{
		Tokens: make([][]int, tc.Len()),
		Counts: make([][]float64, tc.Len()),
		V:      len(keep),
		IDs:    tc.IDs,
	}
	for d := range tc.Tokens {
		for k, w := range tc.Tokens[d] {
			if nw, ok := remap[w]; ok {
				out.Tokens[d] = append(out.Tokens[d], nw)
				out.Counts[d] = append(out.Counts[d], tc.Counts[d][k])
			}
		}
		sort.Sort(byToken{out.Tokens[d], out.Counts[d]})
	}
	return out
}
