package layers

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/optimizations"
	"github.com/RolandMax/ETM/utils"
)

// Linear maps a batch X (n x In) to X·Wᵀ + b (n x Out). The layer keeps
// no forward cache: callers hand the input back to Backward.
type Linear struct {
	In, Out int
	W       *optimizations.Param // (Out x In)
	B       *optimizations.Param // (1 x Out); nil without bias
}

// NewLinear draws weights and bias from U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(name string, in, out int, bias bool, rng *rand.Rand) *Linear {
	l := &Linear{
		In:  in,
		Out: out,
		W:   optimizations.NewParam(name+".weight", mat.NewDense(out, in, utils.RandomArray(out*in, float64(in), rng))),
	}
	if bias {
		l.B = optimizations.NewParam(name+".bias", mat.NewDense(1, out, utils.RandomArray(out, float64(in), rng)))
	}
	return l
}

func (l *Linear) Forward(X *mat.Dense) *mat.Dense {
	_, c := X.Dims()
	if c != l.In {
		panic(fmt.Sprintf("linear %s: input has %d features, want %d", l.W.Name, c, l.In))
	}
	Y := utils.ToDense(utils.Dot(X, l.W.W.T()))
	if l.B != nil {
		Y = utils.AddRowBias(Y, l.B.W)
	}
	return Y
}

// Backward accumulates dW = dYᵀ·X and db = colsum(dY) into the parameter
// gradients and returns dX = dY·W.
func (l *Linear) Backward(X, dY *mat.Dense) *mat.Dense {
	dX, dW, db := l.BackwardGradsOnly(X, dY)
	l.W.Accumulate(dW)
	if l.B != nil {
		l.B.Accumulate(db)
	}
	return dX
}

// BackwardGradsOnly returns dX, dW and db without touching the
// accumulated gradients.
func (l *Linear) BackwardGradsOnly(X, dY *mat.Dense) (dX, dW, db *mat.Dense) {
	dW = utils.ToDense(utils.Dot(dY.T(), X))
	if l.B != nil {
		db = utils.ColSums(dY)
	}
	dX = utils.ToDense(utils.Dot(dY, l.W.W))
	return dX, dW, db
}

func (l *Linear) Params() []*optimizations.Param {
	if l.B == nil {
		return []*optimizations.Param{l.W}
	}
	return []*optimizations.Param{l.W, l.B}
}
