package etm

import (
	"math"

	"github.com/RolandMax/ETM/optimizations"
)

const minAnnealLR = 1e-5

// annealer tracks validation perplexity across epochs, records the best
// epoch and cuts the learning rate when progress stalls.
type annealer struct {
	factor  float64 // <= 1 disables annealing
	nonMono int

	history   []float64
	bestEpoch int
	bestPPL   float64
}

func newAnnealer(factor float64, nonMono int) *annealer {
	return &annealer{factor: factor, nonMono: nonMono, bestPPL: math.Inf(1)}
}

// observe handles the validation perplexity v of epoch. It reports whether
// v is a new best and whether the learning rate was divided.
func (a *annealer) observe(epoch int, v float64, opt optimizations.Optimizer) (improved, annealed bool) {
	defer func() { a.history = append(a.history, v) }()

	if v < a.bestPPL {
		a.bestPPL = v
		a.bestEpoch = epoch
		return true, false
	}
	lr := opt.LearningRate()
	if a.factor <= 1 || lr <= minAnnealLR || a.nonMono <= 0 || len(a.history) < a.nonMono {
		return false, false
	}
	window := a.history[len(a.history)-a.nonMono:]
	lowest := window[0]
	for _, h := range window[1:] {
		lowest = math.Min(lowest, h)
	}
	if v > lowest {
		opt.SetLearningRate(lr / a.factor)
		return false, true
	}
	return false, false
}
