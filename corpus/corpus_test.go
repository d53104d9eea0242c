package corpus

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/e-gun/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func sample() TokenCounts {
	return TokenCounts{
		Tokens: [][]int{{0, 3}, {1}, {}, {0, 1, 2, 3}},
		Counts: [][]float64{{2, 1}, {4}, {}, {1, 1, 1, 3}},
		V:      5,
	}
}

func TestBatch(t *testing.T) {
	tc := sample()
	b := tc.Batch([]int{3, 0})
	r, c := b.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 5, c)
	assert.Equal(t, []float64{1, 1, 1, 3, 0}, b.RawRowView(0))
	assert.Equal(t, []float64{2, 0, 0, 1, 0}, b.RawRowView(1))

	assert.Equal(t, []float64{6, 3}, tc.Sums([]int{3, 0}))
	assert.Equal(t, mat.Sum(b), 9.0)

	assert.Panics(t, func() { tc.Batch([]int{4}) })
}

func TestEmptyAndSubset(t *testing.T) {
	tc := sample()
	assert.Equal(t, []int{2}, tc.Empty())
	assert.Equal(t, []int{0, 1, 3}, tc.NonEmpty())

	sub := tc.Subset([]int{3, 1})
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []string{"3", "1"}, sub.IDs)
	assert.Equal(t, "3", sub.ID(0))
}

func TestSparseRoundTrip(t *testing.T) {
	tc := sample()
	csr := tc.ToCSR()
	back, err := FromSparse(csr)
	require.NoError(t, err)
	assert.Equal(t, tc.V, back.V)
	for d := range tc.Tokens {
		assert.Equal(t, tc.Sums([]int{d}), back.Sums([]int{d}))
		assert.True(t, mat.Equal(tc.Batch([]int{d}), back.Batch([]int{d})))
	}

	dok := sparse.NewDOK(2, 3)
	dok.Set(0, 2, 5)
	dok.Set(0, 0, 1)
	fromDOK, err := FromSparse(dok)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, fromDOK.Tokens[0])
	assert.Empty(t, fromDOK.Tokens[1])

	_, err = FromSparse(mat.NewDense(2, 2, nil))
	assert.ErrorIs(t, err, ErrNotSparse)
}

func TestHalve(t *testing.T) {
	tc := TokenCounts{
		Tokens: [][]int{{0, 2}, {1}, {0, 1, 2}},
		Counts: [][]float64{{3, 2}, {1}, {1, 1, 1}},
		V:      3,
		IDs:    []string{"a", "b", "c"},
	}
	first, second, kept := Halve(tc, rand.New(rand.NewSource(5)))
	// "b" has a single token, so its first half is empty.
	assert.Equal(t, []int{0, 2}, kept)
	assert.Equal(t, []string{"a", "c"}, first.IDs)
	assert.Equal(t, first.IDs, second.IDs)

	assert.Equal(t, []float64{2}, first.Sums([]int{0}))
	assert.Equal(t, []float64{3}, second.Sums([]int{0}))
	assert.Equal(t, []float64{1}, first.Sums([]int{1}))
	assert.Equal(t, []float64{2}, second.Sums([]int{1}))

	for i, d := range kept {
		assert.Equal(t, perTerm(tc, d), addTerms(perTerm(first, i), perTerm(second, i)))
		assert.True(t, sort.IntsAreSorted(first.Tokens[i]))
		assert.True(t, sort.IntsAreSorted(second.Tokens[i]))
	}
}

func TestHalveMixesTerms(t *testing.T) {
	// 40 tokens over four terms: in term order the first half would hold
	// only terms 0 and 1.
	tc := TokenCounts{
		Tokens: [][]int{{0, 1, 2, 3}},
		Counts: [][]float64{{10, 10, 10, 10}},
		V:      4,
	}
	first, second, _ := Halve(tc, rand.New(rand.NewSource(9)))
	require.Equal(t, 1, first.Len())
	assert.Equal(t, perTerm(tc, 0), addTerms(perTerm(first, 0), perTerm(second, 0)))
	assert.Contains(t, first.Tokens[0], 3)
	assert.Contains(t, second.Tokens[0], 0)

	again, againSecond, _ := Halve(tc, rand.New(rand.NewSource(9)))
	assert.Equal(t, first, again)
	assert.Equal(t, second, againSecond)
}

func perTerm(tc TokenCounts, d int) map[int]float64 {
	out := make(map[int]float64)
	for k, w := range tc.Tokens[d] {
		out[w] += tc.Counts[d][k]
	}
	return out
}

func addTerms(a, b map[int]float64) map[int]float64 {
	out := make(map[int]float64)
	for w, c := range a {
		out[w] += c
	}
	for w, c := range b {
		out[w] += c
	}
	return out
}

func TestNewSplit(t *testing.T) {
	for _, n := range []int{0, 1, 7, 10, 101} {
		s := NewSplit(n, 0.7, rand.New(rand.NewSource(42)))
		all := append(append(append([]int{}, s.Train...), s.Test1...), s.Test2...)
		sort.Ints(all)
		require.Len(t, all, n)
		for i, v := range all {
			assert.Equal(t, i, v)
		}
		diff := len(s.Test1) - len(s.Test2)
		assert.True(t, diff == 0 || diff == 1, "n=%d test sizes %d/%d", n, len(s.Test1), len(s.Test2))
	}

	a := NewSplit(50, 0.7, rand.New(rand.NewSource(1)))
	b := NewSplit(50, 0.7, rand.New(rand.NewSource(1)))
	assert.Equal(t, a, b)
	assert.Len(t, a.Train, 35)
}

func TestReadWrite(t *testing.T) {
	in := "10 3:2 1:1 3:1\n\n11\n12 0:4 bad\n"
	tc, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, tc.Len())
	assert.Equal(t, 4, tc.V)
	assert.Equal(t, []string{"10", "11", "12"}, tc.IDs)
	assert.Equal(t, []int{1, 3}, tc.Tokens[0])
	assert.Equal(t, []float64{1, 3}, tc.Counts[0])
	assert.Empty(t, tc.Tokens[1])
	assert.Equal(t, []int{1}, tc.Empty())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tc))
	assert.Equal(t, "10 1:1 3:3\n11\n12 0:4\n", buf.String())

	_, err = Read(strings.NewReader("1 x:2\n"))
	assert.Error(t, err)
}
