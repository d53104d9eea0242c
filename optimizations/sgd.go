package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SGD is plain gradient descent with optional L2 decay.
type SGD struct {
	base
	WeightDecay float64
}

func NewSGD(lr, weightDecay float64) *SGD {
	return &SGD{base: base{lr: lr}, WeightDecay: weightDecay}
}

func (s *SGD) Step(ps []*Param) {
	for _, p := range ps {
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.G.At(i, j) + s.WeightDecay*p.W.At(i, j)
				p.W.Set(i, j, p.W.At(i, j)-s.lr*g)
			}
		}
	}
}

// Adagrad scales each coordinate by the root of its summed squared
// gradients.
type Adagrad struct {
	base
	WeightDecay float64
	Eps         float64

	sum map[*Param]*mat.Dense
}

func NewAdagrad(lr, weightDecay float64) *Adagrad {
	return &Adagrad{base: base{lr: lr}, WeightDecay: weightDecay, Eps: 1e-10, sum: make(map[*Param]*mat.Dense)}
}

func (a *Adagrad) Step(ps []*Param) {
	for _, p := range ps {
		acc, ok := a.sum[p]
		if !ok {
			r, c := p.W.Dims()
			acc = mat.NewDense(r, c, nil)
			a.sum[p] = acc
		}
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.G.At(i, j) + a.WeightDecay*p.W.At(i, j)
				s := acc.At(i, j) + g*g
				acc.Set(i, j, s)
				p.W.Set(i, j, p.W.At(i, j)-a.lr*g/(math.Sqrt(s)+a.Eps))
			}
		}
	}
}

// RMSprop keeps a decaying average of squared gradients.
type RMSprop struct {
	base
	Alpha       float64
	Eps         float64
	WeightDecay float64

	sq map[*Param]*mat.Dense
}

func NewRMSprop(lr, weightDecay float64) *RMSprop {
	return &RMSprop{base: base{lr: lr}, Alpha: 0.99, Eps: 1e-8, WeightDecay: weightDecay, sq: make(map[*Param]*mat.Dense)}
}

func (o *RMSprop) Step(ps []*Param) {
	for _, p := range ps {
		acc, ok := o.sq[p]
		if !ok {
			r, c := p.W.Dims()
			acc = mat.NewDense(r, c, nil)
			o.sq[p] = acc
		}
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				g := p.G.At(i, j) + o.WeightDecay*p.W.At(i, j)
				s := o.Alpha*acc.At(i, j) + (1-o.Alpha)*g*g
				acc.Set(i, j, s)
				p.W.Set(i, j, p.W.At(i, j)-o.lr*g/(math.Sqrt(s)+o.Eps))
			}
		}
	}
}
