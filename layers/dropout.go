package layers

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/utils"
)

// Dropout zeroes each element with probability P while training and scales
// the survivors by 1/(1-P). It is the identity in evaluation.
type Dropout struct {
	P float64
}

// Forward returns the output and the mask to pass to Backward. The mask
// is nil when dropout is inactive.
func (d Dropout) Forward(X *mat.Dense, training bool, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	if !training || d.P <= 0 {
		return X, nil
	}
	r, c := X.Dims()
	keep := 1.0 / (1.0 - d.P)
	mask := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if rng.Float64() >= d.P {
				mask.Set(i, j, keep)
			}
		}
	}
	return utils.Multiply(X, mask).(*mat.Dense), mask
}

func (d Dropout) Backward(dOut, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return dOut
	}
	return utils.Multiply(dOut, mask).(*mat.Dense)
}
