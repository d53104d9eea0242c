package optimizations

import "gonum.org/v1/gonum/mat"

// Param is a trainable matrix together with its gradient buffer. Backward
// passes accumulate into G; optimizers read G and update W in place.
type Param struct {
	Name string
	W    *mat.Dense
	G    *mat.Dense
}

func NewParam(name string, w *mat.Dense) *Param {
	r, c := w.Dims()
	return &Param{Name: name, W: w, G: mat.NewDense(r, c, nil)}
}

func (p *Param) ZeroGrad() {
	p.G.Zero()
}

// Accumulate adds g into the gradient buffer.
func (p *Param) Accumulate(g mat.Matrix) {
	p.G.Add(p.G, g)
}

func ZeroGrads(ps []*Param) {
	for _, p := range ps {
		p.ZeroGrad()
	}
}

// Grads returns the gradient buffers, in parameter order.
func Grads(ps []*Param) []*mat.Dense {
	out := make([]*mat.Dense, len(ps))
	for i, p := range ps {
		out[i] = p.G
	}
	return out
}
