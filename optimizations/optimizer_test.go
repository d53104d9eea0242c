package optimizations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/params"
)

func TestAdamFirstStep(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 2, []float64{1, -1}))
	p.G.Set(0, 0, 0.5)
	p.G.Set(0, 1, -2)

	opt := NewAdam(0.1, 0, 0, 0, 0)
	opt.Step([]*Param{p})

	// The bias-corrected first step moves each coordinate by lr*sign(g).
	assert.InDelta(t, 0.9, p.W.At(0, 0), 1e-6)
	assert.InDelta(t, -0.9, p.W.At(0, 1), 1e-6)
	assert.Equal(t, 1, opt.T)
}

func TestAdamWeightDecay(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 1, []float64{2}))
	opt := NewAdam(0.01, 0.9, 0.999, 1e-8, 0.5)
	opt.Step([]*Param{p})
	assert.Less(t, p.W.At(0, 0), 2.0)
}

func TestAdamMinimisesQuadratic(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 1, []float64{3}))
	opt := NewAdam(0.1, 0.9, 0.999, 1e-8, 0)
	for i := 0; i < 500; i++ {
		p.ZeroGrad()
		p.G.Set(0, 0, 2*p.W.At(0, 0))
		opt.Step([]*Param{p})
	}
	assert.InDelta(t, 0, p.W.At(0, 0), 0.05)
}

func TestSGDStep(t *testing.T) {
	p := NewParam("w", mat.NewDense(1, 2, []float64{1, 1}))
	p.Accumulate(mat.NewDense(1, 2, []float64{1, 2}))
	opt := NewSGD(0.5, 0)
	opt.Step([]*Param{p})
	assert.InDelta(t, 0.5, p.W.At(0, 0), 1e-12)
	assert.InDelta(t, 0, p.W.At(0, 1), 1e-12)
}

func TestAdagradAndRMSpropMove(t *testing.T) {
	for _, opt := range []Optimizer{NewAdagrad(0.1, 0), NewRMSprop(0.01, 0)} {
		p := NewParam("w", mat.NewDense(1, 1, []float64{1}))
		p.G.Set(0, 0, 1)
		opt.Step([]*Param{p})
		w := p.W.At(0, 0)
		assert.Less(t, w, 1.0)
		assert.False(t, math.IsNaN(w))
	}
}

func TestLearningRateAccessors(t *testing.T) {
	cfg := params.DefaultTrain
	opt, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.LR, opt.LearningRate())
	opt.SetLearningRate(cfg.LR / 4)
	assert.Equal(t, cfg.LR/4, opt.LearningRate())
}

func TestNew(t *testing.T) {
	cfg := params.DefaultTrain
	for _, name := range []string{"adam", "ADAM", "sgd", "adagrad", "rmsprop"} {
		cfg.Optimizer = name
		_, err := New(cfg)
		assert.NoError(t, err, name)
	}

	cfg.Optimizer = "lbfgs"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrUnknownOptimizer)

	cfg.Optimizer = "adam"
	cfg.LR = 0
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestGradsOrder(t *testing.T) {
	a := NewParam("a", mat.NewDense(1, 1, nil))
	b := NewParam("b", mat.NewDense(2, 2, nil))
	gs := Grads([]*Param{a, b})
	require.Len(t, gs, 2)
	assert.Same(t, a.G, gs[0])
	assert.Same(t, b.G, gs[1])

	b.G.Set(1, 1, 3)
	ZeroGrads([]*Param{a, b})
	assert.Equal(t, 0.0, b.G.At(1, 1))
}
