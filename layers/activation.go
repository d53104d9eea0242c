package layers

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RolandMax/ETM/utils"
)

var ErrUnknownActivation = errors.New("layers: unknown activation")

// Activation is one of the nonlinearities the encoder trunk accepts.
type Activation int

const (
	ReLU Activation = iota
	Tanh
	Softplus
	RReLU
	LeakyReLU
	ELU
	SELU
	GLU
)

const (
	leakySlope = 0.01
	rreluLower = 1.0 / 8.0
	rreluUpper = 1.0 / 3.0
	seluAlpha  = 1.6732632423543772848170429916717
	seluScale  = 1.0507009873554804934193349852946
	// softplus falls back to identity above this, as torch does.
	softplusThreshold = 20.0
)

var activationNames = [...]string{"relu", "tanh", "softplus", "rrelu", "leakyrelu", "elu", "selu", "glu"}

func (a Activation) String() string {
	if a < 0 || int(a) >= len(activationNames) {
		return fmt.Sprintf("Activation(%d)", int(a))
	}
	return activationNames[a]
}

// ParseActivation accepts the lower-case names above; "leaky_relu" and
// "leaky-relu" are also understood.
func ParseActivation(s string) (Activation, error) {
	key := strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for i, n := range activationNames {
		if n == key {
			return Activation(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActivation, s)
}

// InputWidth is the number of features the preceding layer must emit so
// that this activation outputs width features. GLU consumes two halves.
func (a Activation) InputWidth(width int) int {
	if a == GLU {
		return 2 * width
	}
	return width
}

// ActivationCache keeps what Backward needs from Forward.
type ActivationCache struct {
	pre    *mat.Dense
	out    *mat.Dense
	slopes *mat.Dense // RReLU negative-side slopes
}

// Forward applies the activation. RReLU draws a slope per negative
// element from U(1/8, 1/3) when training and uses the midpoint otherwise.
func (a Activation) Forward(pre *mat.Dense, training bool, rng *rand.Rand) (*mat.Dense, *ActivationCache) {
	cache := &ActivationCache{pre: pre}
	r, c := pre.Dims()
	switch a {
	case ReLU:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 { return math.Max(x, 0) }, pre).(*mat.Dense)
	case Tanh:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 { return math.Tanh(x) }, pre).(*mat.Dense)
	case Softplus:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 {
			if x > softplusThreshold {
				return x
			}
			return math.Log1p(math.Exp(x))
		}, pre).(*mat.Dense)
	case LeakyReLU:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 {
			if x >= 0 {
				return x
			}
			return leakySlope * x
		}, pre).(*mat.Dense)
	case ELU:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 {
			if x > 0 {
				return x
			}
			return math.Expm1(x)
		}, pre).(*mat.Dense)
	case SELU:
		cache.out = utils.Apply(func(_, _ int, x float64) float64 {
			if x > 0 {
				return seluScale * x
			}
			return seluScale * seluAlpha * math.Expm1(x)
		}, pre).(*mat.Dense)
	case RReLU:
		slopes := mat.NewDense(r, c, nil)
		u := distuv.Uniform{Min: rreluLower, Max: rreluUpper, Src: rng}
		out := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				x := pre.At(i, j)
				s := 1.0
				if x < 0 {
					if training {
						s = u.Rand()
					} else {
						s = (rreluLower + rreluUpper) / 2
					}
				}
				slopes.Set(i, j, s)
				out.Set(i, j, s*x)
			}
		}
		cache.slopes = slopes
		cache.out = out
	case GLU:
		if c%2 != 0 {
			panic(fmt.Sprintf("glu: input width %d is odd", c))
		}
		h := c / 2
		out := mat.NewDense(r, h, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < h; j++ {
				out.Set(i, j, pre.At(i, j)*utils.Sigmoid(pre.At(i, j+h)))
			}
		}
		cache.out = out
	default:
		panic(fmt.Sprintf("activation: unsupported kind %d", int(a)))
	}
	return cache.out, cache
}

// Backward maps the gradient w.r.t. the output to the gradient w.r.t.
// the pre-activation.
func (a Activation) Backward(dOut *mat.Dense, cache *ActivationCache) *mat.Dense {
	pre := cache.pre
	r, c := pre.Dims()
	if a == GLU {
		h := c / 2
		dPre := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < h; j++ {
				x, g := pre.At(i, j), pre.At(i, j+h)
				s := utils.Sigmoid(g)
				d := dOut.At(i, j)
				dPre.Set(i, j, d*s)
				dPre.Set(i, j+h, d*x*s*(1-s))
			}
		}
		return dPre
	}
	dPre := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dPre.Set(i, j, dOut.At(i, j)*a.derivative(pre.At(i, j), cache.out.At(i, j), cache, i, j))
		}
	}
	return dPre
}

func (a Activation) derivative(x, y float64, cache *ActivationCache, i, j int) float64 {
	switch a {
	case ReLU:
		if x > 0 {
			return 1
		}
		return 0
	case Tanh:
		return 1 - y*y
	case Softplus:
		if x > softplusThreshold {
			return 1
		}
		return utils.Sigmoid(x)
	case LeakyReLU:
		if x >= 0 {
			return 1
		}
		return leakySlope
	case ELU:
		if x > 0 {
			return 1
		}
		return math.Exp(x)
	case SELU:
		if x > 0 {
			return seluScale
		}
		return seluScale * seluAlpha * math.Exp(x)
	case RReLU:
		return cache.slopes.At(i, j)
	}
	panic(fmt.Sprintf("activation: unsupported kind %d", int(a)))
}
