package utils

import (
	"math"

	"github.com/golang/glog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// RandomArray returns 'size' samples from U(-1/sqrt(v), 1/sqrt(v)), where v
// is the fan-in of the layer being initialised.
func RandomArray(size int, v float64, rng *rand.Rand) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rng.Float64()
	}
	return out
}

func ToDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// MatrixNorm is the Frobenius norm.
func MatrixNorm(m mat.Matrix) float64 {
	r, c := m.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// debugging and clipping.

// Debugf logs at verbosity 1 (-v=1).
func Debugf(format string, args ...any) {
	glog.V(1).Infof(format, args...)
}

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := MatrixNorm(g)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / (gn + 1e-6)
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}

// HasNaN reports whether any element is NaN or infinite.
func HasNaN(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}
