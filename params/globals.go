package params

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelConfig holds everything fixed at model construction.
type ModelConfig struct {
	NumTopics    int     // K
	EmbeddingDim int     // E; ignored when a pretrained table is supplied
	HiddenSize   int     // width of the variational trunk
	Activation   string  // relu, tanh, softplus, rrelu, leakyrelu, elu, selu, glu
	Dropout      float64 // trunk dropout, 0 disables, must be < 1
}

// TrainConfig drives one fit.
type TrainConfig struct {
	Epochs    int
	BatchSize int
	Normalize bool    // divide each bag of words by its token total before encoding
	GradClip  float64 // <=0 disables
	TrainFrac float64 // share of documents used for training; the rest is split in two test sets

	// Validation-driven annealing. Factor <= 1 disables.
	LRAnnealFactor  float64
	LRAnnealNonMono int

	// Optimizer
	Optimizer   string // adam, sgd, adagrad, rmsprop
	LR          float64
	WeightDecay float64
	AdamBeta1   float64 // default 0.9
	AdamBeta2   float64 // default 0.999
	AdamEps     float64 // default 1e-8
}

// Config is the on-disk shape of a run configuration.
type Config struct {
	Seed  uint64
	Model ModelConfig
	Train TrainConfig
}

var DefaultModel = ModelConfig{
	NumTopics:    20,
	EmbeddingDim: 300,
	HiddenSize:   800,
	Activation:   "relu",
	Dropout:      0.5,
}

var DefaultTrain = TrainConfig{
	Epochs:    20,
	BatchSize: 1000,
	Normalize: true,
	GradClip:  0,
	TrainFrac: 0.7,

	LRAnnealFactor:  4,
	LRAnnealNonMono: 10,

	Optimizer:   "adam",
	LR:          0.005,
	WeightDecay: 1.2e-6,
	AdamBeta1:   0.9,
	AdamBeta2:   0.999,
	AdamEps:     1e-8,
}

// Default returns a fresh copy of the defaults.
func Default() Config {
	return Config{Seed: 1234, Model: DefaultModel, Train: DefaultTrain}
}

// LoadConfig reads a JSON config. Fields missing from the file keep
// their default value.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("params: decode %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
