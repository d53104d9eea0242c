// Package etm implements the Embedding Topic Model: topics and words live in
// one embedding space, word-topic affinities are their inner products, and
// document topic proportions come from an amortised variational encoder.
package etm

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/layers"
	"github.com/RolandMax/ETM/optimizations"
	"github.com/RolandMax/ETM/params"
	"github.com/RolandMax/ETM/utils"
)

// Mode selects training behaviour (sampling, dropout, random RReLU slopes)
// or deterministic evaluation.
type Mode int

const (
	Eval Mode = iota
	Train
)

func (m Mode) training() bool { return m == Train }

// Embeddings is a pretrained word-embedding table; row i of Vectors (V x E)
// belongs to Vocab[i].
type Embeddings struct {
	Vocab   []string
	Vectors *mat.Dense
}

// Model holds parameters and hyperparameters. It carries no optimizer
// state and no mode flag.
type Model struct {
	Vocab []string
	Cfg   params.ModelConfig
	RunID string

	Rho       *optimizations.Param // word embeddings (V x E)
	Alpha     *optimizations.Param // topic embeddings (E x K)
	RhoFrozen bool

	// Normalize records whether the encoder was fitted on normalised bags
	// of words. Fit sets it; prediction should pass it back.
	Normalize bool

	act        layers.Activation
	fc1, fc2   *layers.Linear
	mu, logVar *layers.Linear
	drop       layers.Dropout

	rng *rand.Rand
}

// New builds a model over vocab. With emb the word embeddings are fixed to
// the supplied table, whose vocabulary must match vocab term for term; a nil
// vocab then adopts the table's. Without emb, cfg.EmbeddingDim sets the
// width of a trainable, randomly initialised table.
func New(cfg params.ModelConfig, vocab []string, emb *Embeddings, rng *rand.Rand) (*Model, error) {
	act, err := layers.ParseActivation(cfg.Activation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	switch {
	case cfg.NumTopics <= 0:
		return nil, fmt.Errorf("%w: number of topics must be positive, got %d", ErrBadConfig, cfg.NumTopics)
	case cfg.HiddenSize <= 0:
		return nil, fmt.Errorf("%w: hidden size must be positive, got %d", ErrBadConfig, cfg.HiddenSize)
	case cfg.Dropout < 0 || cfg.Dropout >= 1:
		return nil, fmt.Errorf("%w: dropout must be in [0,1), got %g", ErrBadConfig, cfg.Dropout)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	var rho *mat.Dense
	frozen := emb != nil
	if frozen {
		if emb.Vectors == nil {
			return nil, fmt.Errorf("%w: embedding table has no vectors", ErrBadConfig)
		}
		if vocab == nil {
			vocab = emb.Vocab
		}
		if err := checkVocab(vocab); err != nil {
			return nil, err
		}
		r, _ := emb.Vectors.Dims()
		if len(vocab) != r || len(emb.Vocab) != r {
			return nil, fmt.Errorf("%w: vocabulary has %d terms, embedding table %d rows and %d terms", ErrVocabLength, len(vocab), r, len(emb.Vocab))
		}
		for i, w := range vocab {
			if emb.Vocab[i] != w {
				return nil, fmt.Errorf("%w: position %d is %q in the vocabulary but %q in the table", ErrVocabOrder, i, w, emb.Vocab[i])
			}
		}
		rho = mat.DenseCopyOf(emb.Vectors)
		_, cfg.EmbeddingDim = emb.Vectors.Dims()
	} else {
		if err := checkVocab(vocab); err != nil {
			return nil, err
		}
		if cfg.EmbeddingDim <= 0 {
			return nil, fmt.Errorf("%w: embedding dimension must be positive without a pretrained table, got %d", ErrBadConfig, cfg.EmbeddingDim)
		}
		rho = mat.NewDense(len(vocab), cfg.EmbeddingDim, utils.RandomArray(len(vocab)*cfg.EmbeddingDim, float64(cfg.EmbeddingDim), rng))
	}

	V, E, K, H := len(vocab), cfg.EmbeddingDim, cfg.NumTopics, cfg.HiddenSize
	m := &Model{
		Vocab:     append([]string(nil), vocab...),
		Cfg:       cfg,
		RunID:     uuid.NewString(),
		Rho:       optimizations.NewParam("rho", rho),
		Alpha:     optimizations.NewParam("alpha", mat.NewDense(E, K, utils.RandomArray(E*K, float64(E), rng))),
		RhoFrozen: frozen,
		Normalize: params.DefaultTrain.Normalize,
		act:       act,
		fc1:       layers.NewLinear("q_theta.0", V, act.InputWidth(H), true, rng),
		fc2:       layers.NewLinear("q_theta.2", H, act.InputWidth(H), true, rng),
		mu:        layers.NewLinear("mu_q_theta", H, K, true, rng),
		logVar:    layers.NewLinear("logsigma_q_theta", H, K, true, rng),
		drop:      layers.Dropout{P: cfg.Dropout},
		rng:       rng,
	}
	return m, nil
}

func checkVocab(vocab []string) error {
	if len(vocab) == 0 {
		return fmt.Errorf("%w: empty vocabulary", ErrBadVocab)
	}
	seen := make(map[string]int, len(vocab))
	for i, w := range vocab {
		if w == "" {
			return fmt.Errorf("%w: empty term at position %d", ErrBadVocab, i)
		}
		if j, ok := seen[w]; ok {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrBadVocab, w, j, i)
		}
		seen[w] = i
	}
	return nil
}

// Params lists the trainable parameters; ρ is left out when frozen.
func (m *Model) Params() []*optimizations.Param {
	var ps []*optimizations.Param
	if !m.RhoFrozen {
		ps = append(ps, m.Rho)
	}
	ps = append(ps, m.Alpha)
	for _, l := range m.linears() {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (m *Model) NumTopics() int { return m.Cfg.NumTopics }

func (m *Model) VocabSize() int { return len(m.Vocab) }

// Activation reports the trunk nonlinearity.
func (m *Model) Activation() layers.Activation { return m.act }

// WordEmbeddings returns a copy of ρ (V x E).
func (m *Model) WordEmbeddings() *mat.Dense {
	return mat.DenseCopyOf(m.Rho.W)
}

// TopicEmbeddings returns α with one row per topic (K x E).
func (m *Model) TopicEmbeddings() *mat.Dense {
	return mat.DenseCopyOf(m.Alpha.W.T())
}
