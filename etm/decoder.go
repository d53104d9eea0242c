package etm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/utils"
)

// logFloor keeps log(θβ) finite.
const logFloor = 1e-6

// Beta is the topic-word matrix (K x V): row k is the softmax over the
// vocabulary of ρ·α[:,k].
func (m *Model) Beta() *mat.Dense {
	logits := utils.Dot(m.Rho.W, m.Alpha.W) // (V x K)
	return utils.RowSoftmax(logits.T())
}

// thetaFrom turns the latent z into topic proportions.
func thetaFrom(z *mat.Dense) *mat.Dense {
	return utils.RowSoftmax(z)
}

// reparameterize returns z = μ + ε·exp(½logσ²) in training and μ otherwise.
// eps is used when given; in training a nil eps is drawn from N(0,1).
func (m *Model) reparameterize(mu, logVar *mat.Dense, mode Mode, eps *mat.Dense) (z, usedEps *mat.Dense) {
	if !mode.training() {
		return mu, nil
	}
	r, c := mu.Dims()
	if eps == nil {
		eps = m.sampleNoise(r, c)
	}
	z = mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			z.Set(i, j, mu.At(i, j)+eps.At(i, j)*math.Exp(0.5*logVar.At(i, j)))
		}
	}
	return z, eps
}

// decode returns θβ (B x V), the per-document word distributions.
func decode(theta, beta *mat.Dense) *mat.Dense {
	return utils.ToDense(utils.Dot(theta, beta))
}

// reconLoss is -Σ_v log(res+floor)·counts for each document.
func reconLoss(res, counts *mat.Dense) []float64 {
	r, c := res.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			n := counts.At(i, j)
			if n == 0 {
				continue
			}
			s -= math.Log(res.At(i, j)+logFloor) * n
		}
		out[i] = s
	}
	return out
}
