package etm

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/corpus"
	"github.com/RolandMax/ETM/optimizations"
	"github.com/RolandMax/ETM/params"
	"github.com/RolandMax/ETM/utils"
)

// LossRecord reports one training batch. Loss, KLTheta and NELBO are running
// means over the epoch so far; SumLoss and SumKLTheta are the raw sums.
type LossRecord struct {
	Epoch      int
	Batch      int
	IsLast     bool
	LR         float64
	Loss       float64
	KLTheta    float64
	NELBO      float64
	SumLoss    float64
	SumKLTheta float64
}

// FitOptions carries optional callbacks.
type FitOptions struct {
	OnBatch   func(LossRecord)
	OnImprove func(epoch int, perplexity float64)
}

// FitResult is the outcome of a fit. BestEpoch is 0 when no epoch produced
// a finite validation perplexity.
type FitResult struct {
	Loss           []LossRecord
	ValPerplexity  []float64
	BestEpoch      int
	BestPerplexity float64
	TestPerplexity float64
}

// Fit trains m on a documents x terms sparse matrix. Empty documents are
// dropped; the rest is split into training documents and two held-out sets.
// The first held-out set is halved for per-epoch validation, the second for
// the final test perplexity.
func Fit(ctx context.Context, m *Model, dtm mat.Matrix, opt optimizations.Optimizer, cfg params.TrainConfig, fo FitOptions) (*FitResult, error) {
	tc, err := corpus.FromSparse(dtm)
	if err != nil {
		return nil, err
	}
	if tc.V != m.VocabSize() {
		return nil, fmt.Errorf("%w: matrix has %d columns, vocabulary %d terms", ErrShape, tc.V, m.VocabSize())
	}
	if empty := tc.Empty(); len(empty) > 0 {
		glog.Warningf("etm: dropping %d documents without counts", len(empty))
		tc = tc.Subset(tc.NonEmpty())
	}

	split := corpus.NewSplit(tc.Len(), cfg.TrainFrac, m.rng)
	valFirst, valSecond, _ := corpus.Halve(tc.Subset(split.Test1), m.rng)
	testFirst, testSecond, _ := corpus.Halve(tc.Subset(split.Test2), m.rng)
	glog.Infof("etm: %d training documents, %d validation, %d test", len(split.Train), valFirst.Len(), testFirst.Len())

	return fit(ctx, m, tc.Subset(split.Train), valFirst, valSecond, testFirst, testSecond, opt, cfg, fo)
}

// FitSplit trains on pre-split data. test1 and test2 are aligned halves of
// the same held-out documents; they drive validation every epoch and give
// the final test perplexity. Any document without counts, in any of the
// three sets, is rejected with ErrZeroDocument.
func FitSplit(ctx context.Context, m *Model, train, test1, test2 corpus.TokenCounts, opt optimizations.Optimizer, cfg params.TrainConfig, fo FitOptions) (*FitResult, error) {
	return fit(ctx, m, train, test1, test2, test1, test2, opt, cfg, fo)
}

func fit(ctx context.Context, m *Model, train, valFirst, valSecond, testFirst, testSecond corpus.TokenCounts,
	opt optimizations.Optimizer, cfg params.TrainConfig, fo FitOptions) (*FitResult, error) {
	switch {
	case opt == nil:
		return nil, ErrNoOptimizer
	case cfg.Epochs <= 0:
		return nil, fmt.Errorf("%w: epochs must be positive, got %d", ErrBadConfig, cfg.Epochs)
	case cfg.BatchSize <= 0:
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrBadConfig, cfg.BatchSize)
	case train.Len() == 0:
		return nil, fmt.Errorf("%w: no training documents", ErrBadConfig)
	case valFirst.Len() != valSecond.Len() || testFirst.Len() != testSecond.Len():
		return nil, fmt.Errorf("%w: held-out halves are not aligned", ErrShape)
	}
	sets := []struct {
		name string
		tc   corpus.TokenCounts
	}{
		{"training", train},
		{"validation first half", valFirst},
		{"validation second half", valSecond},
		{"test first half", testFirst},
		{"test second half", testSecond},
	}
	for _, s := range sets {
		if s.tc.Len() > 0 && s.tc.V != m.VocabSize() {
			return nil, fmt.Errorf("%w: %s vocabulary size %d, model %d", ErrShape, s.name, s.tc.V, m.VocabSize())
		}
		if empty := s.tc.Empty(); len(empty) > 0 {
			return nil, fmt.Errorf("%w: %d %s documents, first is %s", ErrZeroDocument, len(empty), s.name, s.tc.ID(empty[0]))
		}
	}

	m.Normalize = cfg.Normalize
	res := &FitResult{BestPerplexity: math.Inf(1), TestPerplexity: math.NaN()}
	ann := newAnnealer(cfg.LRAnnealFactor, cfg.LRAnnealNonMono)
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		recs := m.trainEpoch(epoch, train, opt, cfg, fo.OnBatch)
		res.Loss = append(res.Loss, recs...)

		v := m.Perplexity(valFirst, valSecond, cfg.BatchSize, cfg.Normalize)
		res.ValPerplexity = append(res.ValPerplexity, v)
		improved, annealed := ann.observe(epoch, v, opt)
		if improved {
			res.BestEpoch, res.BestPerplexity = ann.bestEpoch, ann.bestPPL
			if fo.OnImprove != nil {
				fo.OnImprove(epoch, v)
			}
		}
		if annealed {
			glog.Infof("etm: epoch %d, learning rate annealed to %g", epoch, opt.LearningRate())
		}
		last := recs[len(recs)-1]
		glog.Infof("epoch %3d, loss %.4f, kl %.4f, nelbo %.4f, val ppl %.1f, lr %g",
			epoch, last.Loss, last.KLTheta, last.NELBO, v, opt.LearningRate())
	}
	res.TestPerplexity = m.Perplexity(testFirst, testSecond, cfg.BatchSize, cfg.Normalize)
	return res, nil
}

// trainEpoch runs one shuffled pass over train and returns a record per
// batch.
func (m *Model) trainEpoch(epoch int, train corpus.TokenCounts, opt optimizations.Optimizer, cfg params.TrainConfig, onBatch func(LossRecord)) []LossRecord {
	ps := m.Params()
	chunks := batches(m.rng.Perm(train.Len()), cfg.BatchSize)
	recs := make([]LossRecord, 0, len(chunks))

	var sumLoss, sumKL float64
	for b, idx := range chunks {
		optimizations.ZeroGrads(ps)
		t := m.forwardBatch(train.Batch(idx), cfg.Normalize, Train, nil)
		m.backward(t)
		if glog.V(1) {
			for _, p := range ps {
				if utils.HasNaN(p.G) {
					glog.Infof("epoch %d batch %d: non-finite gradient in %s", epoch, b+1, p.Name)
					break
				}
			}
		}
		if cfg.GradClip > 0 {
			if s := utils.ClipGrads(cfg.GradClip, optimizations.Grads(ps)...); s < 1 {
				utils.Debugf("epoch %d batch %d: gradients clipped by %.4g", epoch, b+1, s)
			}
		}
		opt.Step(ps)

		sumLoss += t.recon
		sumKL += t.kl
		n := float64(b + 1)
		rec := LossRecord{
			Epoch:      epoch,
			Batch:      b + 1,
			IsLast:     b == len(chunks)-1,
			LR:         opt.LearningRate(),
			Loss:       sumLoss / n,
			KLTheta:    sumKL / n,
			NELBO:      (sumLoss + sumKL) / n,
			SumLoss:    sumLoss,
			SumKLTheta: sumKL,
		}
		recs = append(recs, rec)
		if glog.V(1) {
			glog.Infof("epoch %d batch %d/%d: loss %.4f kl %.4f nelbo %.4f", epoch, rec.Batch, len(chunks), rec.Loss, rec.KLTheta, rec.NELBO)
		}
		if onBatch != nil {
			onBatch(rec)
		}
	}
	return recs
}
