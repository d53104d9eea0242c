package optimizations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RolandMax/ETM/params"
)

var ErrUnknownOptimizer = errors.New("optimizations: unknown optimizer")

// Optimizer updates parameters from their accumulated gradients. The
// learning rate is readable and writable between steps so that training
// code can anneal it.
type Optimizer interface {
	Step(ps []*Param)
	LearningRate() float64
	SetLearningRate(lr float64)
}

// New builds the optimizer named by cfg.Optimizer.
func New(cfg params.TrainConfig) (Optimizer, error) {
	if cfg.LR <= 0 {
		return nil, fmt.Errorf("optimizations: learning rate must be positive, got %g", cfg.LR)
	}
	switch strings.ToLower(cfg.Optimizer) {
	case "adam", "":
		return NewAdam(cfg.LR, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEps, cfg.WeightDecay), nil
	case "sgd":
		return NewSGD(cfg.LR, cfg.WeightDecay), nil
	case "adagrad":
		return NewAdagrad(cfg.LR, cfg.WeightDecay), nil
	case "rmsprop":
		return NewRMSprop(cfg.LR, cfg.WeightDecay), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, cfg.Optimizer)
}

// base holds the learning rate shared by every optimizer here.
type base struct {
	lr float64
}

func (b *base) LearningRate() float64      { return b.lr }
func (b *base) SetLearningRate(lr float64) { b.lr = lr }
