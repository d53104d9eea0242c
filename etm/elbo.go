package etm

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RolandMax/ETM/utils"
)

// batchTape is everything the backward pass needs from one forward pass.
type batchTape struct {
	counts *mat.Dense // raw counts (B x V)
	enc    *encoderTape
	eps    *mat.Dense // nil in evaluation
	theta  *mat.Dense // (B x K)
	beta   *mat.Dense // (K x V)
	res    *mat.Dense // (B x V)

	docRecon []float64
	recon    float64 // batch mean of docRecon
	kl       float64
}

// loss is the negative ELBO of the batch.
func (t *batchTape) loss() float64 { return t.recon + t.kl }

func (m *Model) sampleNoise(r, c int) *mat.Dense {
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: m.rng}
	eps := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			eps.Set(i, j, n.Rand())
		}
	}
	return eps
}

// forwardBatch runs encoder, reparameterization and decoder over a batch of
// raw counts. The encoder sees row-normalised counts when normalize is set;
// the reconstruction is always scored against the raw counts.
func (m *Model) forwardBatch(counts *mat.Dense, normalize bool, mode Mode, eps *mat.Dense) *batchTape {
	x := counts
	if normalize {
		x = normalizeRows(counts)
	}
	t := &batchTape{counts: counts}
	t.enc = m.encode(x, mode)

	var z *mat.Dense
	z, t.eps = m.reparameterize(t.enc.mu, t.enc.logVar, mode, eps)
	t.theta = thetaFrom(z)
	t.beta = m.Beta()
	t.res = decode(t.theta, t.beta)

	t.docRecon = reconLoss(t.res, counts)
	for _, v := range t.docRecon {
		t.recon += v
	}
	if n := len(t.docRecon); n > 0 {
		t.recon /= float64(n)
	}
	t.kl = t.enc.kl
	return t
}

// backward accumulates d(recon + KL)/dθ for every trainable parameter.
func (m *Model) backward(t *batchTape) {
	B, V := t.counts.Dims()
	if B == 0 {
		return
	}
	inv := 1.0 / float64(B)

	// d loss / d res
	G := mat.NewDense(B, V, nil)
	for i := 0; i < B; i++ {
		for j := 0; j < V; j++ {
			if n := t.counts.At(i, j); n != 0 {
				G.Set(i, j, -n*inv/(t.res.At(i, j)+logFloor))
			}
		}
	}

	dTheta := utils.Dot(G, t.beta.T())               // (B x K)
	dBeta := utils.Dot(t.theta.T(), G)               // (K x V)
	dZ := utils.SoftmaxBackward(dTheta, t.theta)     // (B x K)
	dLogitsT := utils.SoftmaxBackward(dBeta, t.beta) // (K x V)

	m.Alpha.Accumulate(utils.Dot(m.Rho.W.T(), dLogitsT.T()))
	if !m.RhoFrozen {
		m.Rho.Accumulate(utils.Dot(dLogitsT.T(), m.Alpha.W.T()))
	}

	mu, logVar := t.enc.mu, t.enc.logVar
	_, K := mu.Dims()
	dMu := utils.ToDense(utils.Add(dZ, utils.Scale(inv, mu)))
	dLogVar := mat.NewDense(B, K, nil)
	for i := 0; i < B; i++ {
		for j := 0; j < K; j++ {
			lv := logVar.At(i, j)
			dz := dZ.At(i, j)
			g := 0.5 * (math.Exp(lv) - 1) * inv
			if t.eps != nil {
				g += dz * t.eps.At(i, j) * 0.5 * math.Exp(0.5*lv)
			}
			dLogVar.Set(i, j, g)
		}
	}
	m.encoderBackward(t.enc, dMu, dLogVar)
}
