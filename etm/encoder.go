package etm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/layers"
	"github.com/RolandMax/ETM/utils"
)

// encoderTape records one pass through the variational encoder.
type encoderTape struct {
	x      *mat.Dense // encoder input, normalised when requested
	a1, a2 *layers.ActivationCache
	h1     *mat.Dense
	mask   *mat.Dense // dropout mask, nil outside training
	hd     *mat.Dense // trunk output after dropout

	mu, logVar *mat.Dense // (B x K)
	kl         float64
}

// normalizeRows divides each bag of words by its token total.
func normalizeRows(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	utils.ScaleRows(out, utils.RowSums(x))
	return out
}

// encode maps a batch (B x V) to the posterior parameters μ and logσ² and
// the batch-mean KL divergence to the standard normal prior.
func (m *Model) encode(x *mat.Dense, mode Mode) *encoderTape {
	t := &encoderTape{x: x}
	var h2 *mat.Dense
	t.h1, t.a1 = m.act.Forward(m.fc1.Forward(x), mode.training(), m.rng)
	h2, t.a2 = m.act.Forward(m.fc2.Forward(t.h1), mode.training(), m.rng)
	t.hd, t.mask = m.drop.Forward(h2, mode.training(), m.rng)

	t.mu = m.mu.Forward(t.hd)
	t.logVar = m.logVar.Forward(t.hd)
	t.kl = klDivergence(t.mu, t.logVar)
	return t
}

// klDivergence is -0.5 * mean_b sum_k (1 + logσ² - μ² - σ²).
func klDivergence(mu, logVar *mat.Dense) float64 {
	r, c := mu.Dims()
	if r == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			u, lv := mu.At(i, j), logVar.At(i, j)
			sum += 1 + lv - u*u - math.Exp(lv)
		}
	}
	return -0.5 * sum / float64(r)
}

// encoderBackward pushes dμ and dlogσ² (which already include the KL terms)
// through the heads and the trunk, accumulating parameter gradients.
func (m *Model) encoderBackward(t *encoderTape, dMu, dLogVar *mat.Dense) {
	dhd := m.mu.Backward(t.hd, dMu)
	dhd.Add(dhd, m.logVar.Backward(t.hd, dLogVar))

	dh2 := m.drop.Backward(dhd, t.mask)
	dh1 := m.fc2.Backward(t.h1, m.act.Backward(dh2, t.a2))
	m.fc1.Backward(t.x, m.act.Backward(dh1, t.a1))
}
