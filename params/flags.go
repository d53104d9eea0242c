package params

import "flag"

// RegisterFlags declares one flag per tunable hyperparameter. Defaults are
// shown from DefaultModel and DefaultTrain; ApplyFlags only copies flags the
// user actually set.
func RegisterFlags(fs *flag.FlagSet) {
	m, t := DefaultModel, DefaultTrain
	fs.Int("k", m.NumTopics, "Number of topics")
	fs.Int("dim", m.EmbeddingDim, "Embedding dimension when no pretrained table is given")
	fs.Int("hidden", m.HiddenSize, "Width of the encoder trunk")
	fs.String("activation", m.Activation, "relu, tanh, softplus, rrelu, leakyrelu, elu, selu or glu")
	fs.Float64("dropout", m.Dropout, "Encoder dropout")

	fs.Int("epochs", t.Epochs, "Training epochs")
	fs.Int("batch", t.BatchSize, "Documents per batch")
	fs.Bool("normalize", t.Normalize, "Normalise bags of words before encoding")
	fs.Float64("clip", t.GradClip, "Gradient norm clip, 0 disables")
	fs.Float64("train-frac", t.TrainFrac, "Share of documents used for training")
	fs.Float64("anneal-factor", t.LRAnnealFactor, "Divide the learning rate by this when validation stalls")
	fs.Int("anneal-nonmono", t.LRAnnealNonMono, "Validation window for annealing")
	fs.String("optimizer", t.Optimizer, "adam, sgd, adagrad or rmsprop")
	fs.Float64("lr", t.LR, "Learning rate")
	fs.Float64("wdecay", t.WeightDecay, "L2 weight decay")
}

// ApplyFlags overrides cfg with every flag set on the command line.
func ApplyFlags(fs *flag.FlagSet, cfg Config) Config {
	fs.Visit(func(f *flag.Flag) {
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		v := g.Get()
		switch f.Name {
		case "k":
			cfg.Model.NumTopics = v.(int)
		case "dim":
			cfg.Model.EmbeddingDim = v.(int)
		case "hidden":
			cfg.Model.HiddenSize = v.(int)
		case "activation":
			cfg.Model.Activation = v.(string)
		case "dropout":
			cfg.Model.Dropout = v.(float64)
		case "epochs":
			cfg.Train.Epochs = v.(int)
		case "batch":
			cfg.Train.BatchSize = v.(int)
		case "normalize":
			cfg.Train.Normalize = v.(bool)
		case "clip":
			cfg.Train.GradClip = v.(float64)
		case "train-frac":
			cfg.Train.TrainFrac = v.(float64)
		case "anneal-factor":
			cfg.Train.LRAnnealFactor = v.(float64)
		case "anneal-nonmono":
			cfg.Train.LRAnnealNonMono = v.(int)
		case "optimizer":
			cfg.Train.Optimizer = v.(string)
		case "lr":
			cfg.Train.LR = v.(float64)
		case "wdecay":
			cfg.Train.WeightDecay = v.(float64)
		}
	})
	return cfg
}
