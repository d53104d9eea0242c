package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamUpdateInPlace applies one bias-corrected Adam step to p.
// Weight decay is the classic L2 form: it is added to the gradient before
// the moments are updated.
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	b1t := math.Pow(beta1, float64(t))
	b2t := math.Pow(beta2, float64(t))
	c1 := 1.0 / (1.0 - b1t)
	c2 := 1.0 / (1.0 - b2t)
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			gij := g.At(i, j) + weightDecay*p.At(i, j)
			mij := beta1*m.At(i, j) + (1.0-beta1)*gij
			vij := beta2*v.At(i, j) + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			denom := math.Sqrt(vhat) + eps
			m.Set(i, j, mij)
			v.Set(i, j, vij)
			p.Set(i, j, p.At(i, j)-lr*mhat/denom)
		}
	}
}

type moments struct {
	m, v *mat.Dense
}

// Adam keeps first and second moments per parameter. State is created on
// the first step that sees a parameter.
type Adam struct {
	base
	Beta1, Beta2, Eps, WeightDecay float64

	T     int
	state map[*Param]*moments
}

func NewAdam(lr, beta1, beta2, eps, weightDecay float64) *Adam {
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	if eps == 0 {
		eps = 1e-8
	}
	return &Adam{
		base:        base{lr: lr},
		Beta1:       beta1,
		Beta2:       beta2,
		Eps:         eps,
		WeightDecay: weightDecay,
		state:       make(map[*Param]*moments),
	}
}

func (a *Adam) Step(ps []*Param) {
	a.T++
	for _, p := range ps {
		st, ok := a.state[p]
		if !ok {
			r, c := p.W.Dims()
			st = &moments{m: mat.NewDense(r, c, nil), v: mat.NewDense(r, c, nil)}
			a.state[p] = st
		}
		AdamUpdateInPlace(p.W, p.G, st.m, st.v, a.T, a.lr, a.Beta1, a.Beta2, a.Eps, a.WeightDecay)
	}
}
