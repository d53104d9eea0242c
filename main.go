package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/profile"

	"github.com/RolandMax/ETM/params"
)

var (
	prepFlag    bool
	trainFlag   bool
	predictMode string
	serveAddr   string
	profileFlag bool

	configPath string
	seed       uint64

	textsPath     string
	stopwordsPath string
	embModel      string
	outDir        string

	corpusPath string
	vocabPath  string
	embPath    string
	modelPath  string
	lossPath   string
	checkpoint bool
	plotFlag   bool

	topN    int
	outPath string
)

func init() {
	flag.BoolVar(&prepFlag, "prep", false, "Build corpus.txt and vocab.txt (and optionally embeddings) from -texts")
	flag.BoolVar(&trainFlag, "train", false, "Train a model on -corpus/-vocab and save it to -model")
	flag.StringVar(&predictMode, "predict", "", "Predict with -model: 'topics' for -corpus or -texts, 'terms' for the top -top terms")
	flag.StringVar(&serveAddr, "serve", "", "Serve predictions from -model on this address, e.g. :8080")
	flag.BoolVar(&profileFlag, "profile", false, "Write a CPU profile")

	flag.StringVar(&configPath, "config", "", "JSON config; flags given explicitly override it")
	flag.Uint64Var(&seed, "seed", 1234, "Random seed")

	flag.StringVar(&textsPath, "texts", "", "Raw texts, one document per line")
	flag.StringVar(&stopwordsPath, "stopwords", "", "Stop words, one per line")
	flag.StringVar(&embModel, "embeddings-model", "", "Train embeddings during -prep: word2vec, glove or lexvec")
	flag.StringVar(&outDir, "out-dir", ".", "Output directory for -prep")

	flag.StringVar(&corpusPath, "corpus", "corpus.txt", "Corpus in 'docId wordId:count ...' format")
	flag.StringVar(&vocabPath, "vocab", "vocab.txt", "Vocabulary, one term per line in column order")
	flag.StringVar(&embPath, "embeddings", "", "Pretrained word2vec text embeddings; fixes the word embeddings")
	flag.StringVar(&modelPath, "model", "etm.gob", "Model file")
	flag.StringVar(&lossPath, "loss-log", "training_log.csv", "Per-batch loss log")
	flag.BoolVar(&checkpoint, "checkpoint", false, "Save the model whenever validation perplexity improves")
	flag.BoolVar(&plotFlag, "plot", false, "Print a chart of validation perplexity after training")

	flag.IntVar(&topN, "top", 10, "Terms per topic for -predict terms")
	flag.StringVar(&outPath, "out", "", "Output file for -predict (stdout when empty)")

	params.RegisterFlags(flag.CommandLine)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if profileFlag {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	cfg := params.Default()
	if configPath != "" {
		var err error
		if cfg, err = params.LoadConfig(configPath); err != nil {
			glog.Exitf("config: %v", err)
		}
	}
	cfg = params.ApplyFlags(flag.CommandLine, cfg)
	if isSet("seed") || configPath == "" {
		cfg.Seed = seed
	}

	var err error
	switch {
	case prepFlag:
		err = runPrep(cfg)
	case trainFlag:
		err = runTrain(cfg)
	case predictMode != "":
		err = runPredict(cfg, predictMode)
	case serveAddr != "":
		err = runServe(cfg, serveAddr)
	default:
		fmt.Fprintln(os.Stderr, "one of -prep, -train, -predict or -serve is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		glog.Exitf("%v", err)
	}
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
