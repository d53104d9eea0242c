package layers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/utils"
)

func finiteDiffCheck(t *testing.T, name string, param *mat.Dense, grad mat.Matrix,
	forward func() float64, i, j int) {
	t.Helper()

	eps := 1e-6
	w0 := param.At(i, j)

	param.Set(i, j, w0+eps)
	lp := forward()
	param.Set(i, j, w0-eps)
	lm := forward()
	param.Set(i, j, w0)

	numGrad := (lp - lm) / (2.0 * eps)
	anaGrad := grad.At(i, j)
	if math.Abs(numGrad-anaGrad) > 1e-5*math.Max(1, math.Abs(numGrad)) {
		t.Fatalf("%s[%d,%d] grad mismatch: num=%.8g ana=%.8g", name, i, j, numGrad, anaGrad)
	}
}

// weightedSum is a scalar loss sum(Y ⊙ R) whose gradient w.r.t. Y is R.
func weightedSum(y, r mat.Matrix) float64 {
	return mat.Sum(utils.Multiply(y, r))
}

func TestLinearGradCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	lin := NewLinear("fc", 4, 3, true, rng)
	x := mat.NewDense(5, 4, utils.RandomArray(20, 1, rng))
	r := mat.NewDense(5, 3, utils.RandomArray(15, 1, rng))

	forward := func() float64 { return weightedSum(lin.Forward(x), r) }
	dX, dW, db := lin.BackwardGradsOnly(x, r)

	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			finiteDiffCheck(t, "W", lin.W.W, dW, forward, i, j)
		}
		finiteDiffCheck(t, "b", lin.B.W, db, forward, 0, i)
	}
	finiteDiffCheck(t, "X", x, dX, forward, 2, 1)
}

func TestLinearBackwardAccumulates(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lin := NewLinear("fc", 2, 2, false, rng)
	assert.Len(t, lin.Params(), 1)

	x := mat.NewDense(1, 2, []float64{1, 2})
	dy := mat.NewDense(1, 2, []float64{1, -1})
	lin.Backward(x, dy)
	lin.Backward(x, dy)

	want := mat.NewDense(2, 2, []float64{2, 4, -2, -4})
	assert.True(t, mat.EqualApprox(want, lin.W.G, 1e-12))

	lin.W.ZeroGrad()
	assert.Equal(t, 0.0, mat.Sum(lin.W.G))
}

func TestLinearInitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	lin := NewLinear("fc", 16, 8, true, rng)
	bound := 1 / math.Sqrt(16)
	for _, p := range lin.Params() {
		r, c := p.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.LessOrEqual(t, math.Abs(p.W.At(i, j)), bound)
			}
		}
	}
}

func TestParseActivation(t *testing.T) {
	for _, name := range []string{"relu", "tanh", "softplus", "rrelu", "leakyrelu", "elu", "selu", "glu"} {
		a, err := ParseActivation(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, a.String())
	}
	a, err := ParseActivation("Leaky_ReLU")
	require.NoError(t, err)
	assert.Equal(t, LeakyReLU, a)

	_, err = ParseActivation("swish")
	assert.ErrorIs(t, err, ErrUnknownActivation)
}

func TestActivationValues(t *testing.T) {
	x := mat.NewDense(1, 3, []float64{-1, 0.5, 30})
	cases := []struct {
		act  Activation
		want []float64
	}{
		{ReLU, []float64{0, 0.5, 30}},
		{Tanh, []float64{math.Tanh(-1), math.Tanh(0.5), math.Tanh(30)}},
		{Softplus, []float64{math.Log1p(math.Exp(-1)), math.Log1p(math.Exp(0.5)), 30}},
		{LeakyReLU, []float64{-0.01, 0.5, 30}},
		{ELU, []float64{math.Exp(-1) - 1, 0.5, 30}},
		{SELU, []float64{seluScale * seluAlpha * (math.Exp(-1) - 1), seluScale * 0.5, seluScale * 30}},
		{RReLU, []float64{-(1.0/8 + 1.0/3) / 2, 0.5, 30}},
	}
	for _, tc := range cases {
		y, _ := tc.act.Forward(x, false, nil)
		for j, w := range tc.want {
			assert.InDelta(t, w, y.At(0, j), 1e-12, "%s[%d]", tc.act, j)
		}
	}
}

func TestActivationGradCheck(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, act := range []Activation{ReLU, Tanh, Softplus, RReLU, LeakyReLU, ELU, SELU, GLU} {
		width := act.InputWidth(3)
		x := mat.NewDense(4, width, utils.RandomArray(4*width, 0.25, rng))
		_, outW := act.Forward(x, false, nil)
		r := mat.NewDense(4, 3, utils.RandomArray(12, 1, rng))
		require.Equal(t, 3, outW.out.RawMatrix().Cols, act.String())

		forward := func() float64 {
			y, _ := act.Forward(x, false, nil)
			return weightedSum(y, r)
		}
		_, cache := act.Forward(x, false, nil)
		dx := act.Backward(r, cache)
		for i := 0; i < 4; i++ {
			for j := 0; j < width; j++ {
				finiteDiffCheck(t, act.String(), x, dx, forward, i, j)
			}
		}
	}
}

func TestRReLUTrainSlopes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := mat.NewDense(1, 50, nil)
	for j := 0; j < 50; j++ {
		x.Set(0, j, -1)
	}
	y, cache := RReLU.Forward(x, true, rng)
	for j := 0; j < 50; j++ {
		s := -y.At(0, j)
		assert.GreaterOrEqual(t, s, 1.0/8)
		assert.LessOrEqual(t, s, 1.0/3)
	}
	dx := RReLU.Backward(mat.NewDense(1, 50, onesData(50)), cache)
	assert.True(t, mat.EqualApprox(utils.Scale(-1, y), dx, 1e-12))
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := mat.NewDense(100, 100, onesData(10000))
	d := Dropout{P: 0.5}

	y, mask := d.Forward(x, false, rng)
	assert.Same(t, x, y)
	assert.Nil(t, mask)

	y, mask = d.Forward(x, true, rng)
	require.NotNil(t, mask)
	zeros := 0
	for i := 0; i < 100; i++ {
		for j := 0; j < 100; j++ {
			switch v := y.At(i, j); v {
			case 0:
				zeros++
			default:
				assert.InDelta(t, 2.0, v, 1e-12)
			}
		}
	}
	assert.InDelta(t, 5000, zeros, 300)

	dx := d.Backward(x, mask)
	assert.True(t, mat.Equal(y, dx))
}

func onesData(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
