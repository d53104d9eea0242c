package IO

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"

	"github.com/e-gun/wego/pkg/embedding"
	"github.com/e-gun/wego/pkg/model"
	"github.com/e-gun/wego/pkg/model/glove"
	"github.com/e-gun/wego/pkg/model/lexvec"
	"github.com/e-gun/wego/pkg/model/modelutil/vector"
	"github.com/e-gun/wego/pkg/model/word2vec"
	"github.com/golang/glog"

	"github.com/RolandMax/ETM/etm"
)

// EmbeddingOptions picks the embedding trainer and its main knobs. Zero
// values fall back to the defaults below.
type EmbeddingOptions struct {
	Model      string // word2vec, glove or lexvec
	Dim        int
	Iter       int
	Window     int
	MinCount   int
	Goroutines int
}

var DefaultEmbeddingOptions = EmbeddingOptions{
	Model:    "word2vec",
	Dim:      300,
	Iter:     15,
	Window:   8,
	MinCount: 1,
}

func (o EmbeddingOptions) withDefaults() EmbeddingOptions {
	d := DefaultEmbeddingOptions
	if o.Model != "" {
		d.Model = o.Model
	}
	if o.Dim > 0 {
		d.Dim = o.Dim
	}
	if o.Iter > 0 {
		d.Iter = o.Iter
	}
	if o.Window > 0 {
		d.Window = o.Window
	}
	if o.MinCount > 0 {
		d.MinCount = o.MinCount
	}
	d.Goroutines = o.Goroutines
	if d.Goroutines <= 0 {
		d.Goroutines = runtime.NumCPU()
	}
	return d
}

func newEmbeddingModel(o EmbeddingOptions) (model.Model, error) {
	switch strings.ToLower(o.Model) {
	case "glove":
		return glove.NewForOptions(glove.Options{
			Alpha:              0.55,
			BatchSize:          1024,
			CountType:          "inc",
			Dim:                o.Dim,
			DocInMemory:        true,
			Goroutines:         o.Goroutines,
			Initlr:             0.025,
			Iter:               o.Iter,
			LogBatch:           100000,
			MaxCount:           -1,
			MinCount:           o.MinCount,
			SolverType:         "adagrad",
			SubsampleThreshold: 0.001,
			Window:             o.Window,
			Xmax:               90,
		})
	case "lexvec":
		return lexvec.NewForOptions(lexvec.Options{
			BatchSize:          1024,
			Dim:                o.Dim,
			DocInMemory:        true,
			Goroutines:         o.Goroutines,
			Initlr:             0.025,
			Iter:               o.Iter,
			LogBatch:           100000,
			MaxCount:           -1,
			MinCount:           o.MinCount,
			MinLR:              0.025 * 1.0e-4,
			NegativeSampleSize: 5,
			RelationType:       "ppmi",
			Smooth:             0.75,
			SubsampleThreshold: 1.0e-3,
			UpdateLRBatch:      100000,
			Window:             o.Window,
		})
	case "word2vec", "":
		return word2vec.NewForOptions(word2vec.Options{
			BatchSize:          1024,
			Dim:                o.Dim,
			DocInMemory:        true,
			Goroutines:         o.Goroutines,
			Initlr:             0.025,
			Iter:               o.Iter,
			LogBatch:           100000,
			MaxCount:           -1,
			MaxDepth:           150,
			MinCount:           o.MinCount,
			MinLR:              0.0000025,
			ModelType:          "skipgram",
			NegativeSampleSize: 5,
			OptimizerType:      "hs",
			SubsampleThreshold: 0.001,
			UpdateLRBatch:      100000,
			Window:             o.Window,
		})
	}
	return nil, fmt.Errorf("embeddings: unknown model %q", o.Model)
}

// TrainEmbeddings fits word vectors on the normalised texts and returns the
// table aligned to vocab. Terms the trainer dropped are missing from the
// result; kept lists the surviving vocab positions.
func TrainEmbeddings(texts []string, vocab []string, opts EmbeddingOptions) (*etm.Embeddings, []int, error) {
	opts = opts.withDefaults()
	m, err := newEmbeddingModel(opts)
	if err != nil {
		return nil, nil, err
	}

	var doc strings.Builder
	for _, t := range texts {
		doc.WriteString(NormalizeText(t))
		doc.WriteByte('\n')
	}
	glog.Infof("embeddings: training %s, dim %d, %d iterations", opts.Model, opts.Dim, opts.Iter)
	if err := m.Train(strings.NewReader(doc.String())); err != nil {
		return nil, nil, fmt.Errorf("embeddings: train: %w", err)
	}

	var buf bytes.Buffer
	if err := m.Save(&buf, vector.Agg); err != nil {
		return nil, nil, fmt.Errorf("embeddings: save: %w", err)
	}
	embs, err := embedding.Load(&buf)
	if err != nil {
		return nil, nil, fmt.Errorf("embeddings: load: %w", err)
	}
	table, err := fromWego(embs)
	if err != nil {
		return nil, nil, err
	}
	aligned, kept := AlignEmbeddings(table, vocab)
	if len(kept) < len(vocab) {
		glog.Warningf("embeddings: %d of %d terms have no vector", len(vocab)-len(kept), len(vocab))
	}
	return aligned, kept, nil
}
