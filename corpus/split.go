package corpus

import (
	"math"

	"golang.org/x/exp/rand"
)

// Split partitions document indices into a training set and two held-out
// sets whose sizes differ by at most one.
type Split struct {
	Train, Test1, Test2 []int
}

// NewSplit draws a seeded random partition of 0..n-1. trainFrac outside
// (0,1] falls back to 0.7.
func NewSplit(n int, trainFrac float64, rng *rand.Rand) Split {
	if trainFrac <= 0 || trainFrac > 1 {
		trainFrac = 0.7
	}
	perm := rng.Perm(n)
	nTrain := int(math.Floor(trainFrac * float64(n)))
	rest := n - nTrain
	nTest1 := (rest + 1) / 2
	return Split{
		Train: perm[:nTrain],
		Test1: perm[nTrain : nTrain+nTest1],
		Test2: perm[nTrain+nTest1:],
	}
}
