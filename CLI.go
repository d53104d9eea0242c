package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/exp/rand"

	"github.com/RolandMax/ETM/IO"
	"github.com/RolandMax/ETM/corpus"
	"github.com/RolandMax/ETM/etm"
	"github.com/RolandMax/ETM/optimizations"
	"github.com/RolandMax/ETM/params"
)

// runPrep turns raw texts into a corpus file, a vocabulary and, when asked,
// an embedding table aligned to that vocabulary.
func runPrep(cfg params.Config) error {
	if textsPath == "" {
		return fmt.Errorf("prep: -texts is required")
	}
	texts, err := IO.ReadLines(textsPath)
	if err != nil {
		return err
	}
	var stops []string
	if stopwordsPath != "" {
		if stops, err = IO.ReadLines(stopwordsPath); err != nil {
			return err
		}
	}

	dtm, vocab, err := IO.BuildDTM(texts, stops)
	if err != nil {
		return err
	}
	tc := corpus.FromCSR(dtm)
	glog.Infof("prep: %d documents, %d terms", tc.Len(), len(vocab))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if embModel != "" {
		emb, kept, err := IO.TrainEmbeddings(texts, vocab, IO.EmbeddingOptions{Model: embModel, Dim: cfg.Model.EmbeddingDim})
		if err != nil {
			return err
		}
		tc = tc.Columns(kept)
		vocab = emb.Vocab
		if err := IO.SaveEmbeddings(filepath.Join(outDir, "embeddings.txt"), emb); err != nil {
			return err
		}
	}

	if err := corpus.Save(filepath.Join(outDir, "corpus.txt"), tc); err != nil {
		return err
	}
	return IO.WriteLines(filepath.Join(outDir, "vocab.txt"), vocab)
}

// loadTrainingData reads the corpus and vocabulary and, with -embeddings,
// restricts both to the terms that have a vector.
func loadTrainingData() (corpus.TokenCounts, []string, *etm.Embeddings, error) {
	tc, err := corpus.Load(corpusPath)
	if err != nil {
		return tc, nil, nil, err
	}
	vocab, err := IO.ReadLines(vocabPath)
	if err != nil {
		return tc, nil, nil, err
	}
	if tc.V > len(vocab) {
		return tc, nil, nil, fmt.Errorf("corpus uses word id %d but the vocabulary has %d terms", tc.V-1, len(vocab))
	}
	tc.V = len(vocab)

	if embPath == "" {
		return tc, vocab, nil, nil
	}
	table, err := IO.LoadEmbeddings(embPath)
	if err != nil {
		return tc, nil, nil, err
	}
	emb, kept := IO.AlignEmbeddings(table, vocab)
	if len(kept) == 0 {
		return tc, nil, nil, fmt.Errorf("no vocabulary term has an embedding in %s", embPath)
	}
	if len(kept) < len(vocab) {
		glog.Warningf("train: %d of %d terms have no embedding and are dropped", len(vocab)-len(kept), len(vocab))
		tc = tc.Columns(kept)
	}
	return tc, emb.Vocab, emb, nil
}

func runTrain(cfg params.Config) error {
	tc, vocab, emb, err := loadTrainingData()
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m, err := etm.New(cfg.Model, vocab, emb, rng)
	if err != nil {
		return err
	}
	opt, err := optimizations.New(cfg.Train)
	if err != nil {
		return err
	}
	glog.Infof("train: run %s, %d topics, vocabulary %d, activation %s", m.RunID, cfg.Model.NumTopics, len(vocab), m.Activation())

	lossLog, err := IO.NewLossLog(lossPath)
	if err != nil {
		return err
	}
	defer lossLog.Close()

	fo := etm.FitOptions{
		OnBatch: func(r etm.LossRecord) {
			if err := lossLog.Write(r); err != nil {
				glog.Warningf("loss log: %v", err)
			}
		},
		OnImprove: func(epoch int, ppl float64) {
			if !checkpoint {
				return
			}
			if err := etm.Save(m, modelPath); err != nil {
				glog.Warningf("checkpoint after epoch %d: %v", epoch, err)
				return
			}
			glog.Infof("checkpoint: epoch %d, val ppl %.1f saved to %s", epoch, ppl, modelPath)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := etm.Fit(ctx, m, tc.ToCSR(), opt, cfg.Train, fo)
	if err != nil && res == nil {
		return err
	}
	if err != nil {
		glog.Warningf("train: stopped early: %v", err)
	}
	glog.Infof("train: best epoch %d, val ppl %.1f, test ppl %.1f", res.BestEpoch, res.BestPerplexity, res.TestPerplexity)
	if plotFlag {
		plotPerplexity(os.Stdout, res.ValPerplexity)
	}

	// With checkpointing the file already holds the best epoch.
	if checkpoint && res.BestEpoch > 0 {
		return nil
	}
	return etm.Save(m, modelPath)
}

func runPredict(cfg params.Config, mode string) error {
	m, err := etm.Load(modelPath)
	if err != nil {
		return err
	}
	switch strings.ToLower(mode) {
	case "terms":
		terms := m.PredictTerms(topN)
		if outPath != "" {
			return IO.ExportTopicsJSON(outPath, terms)
		}
		for k, topic := range terms {
			parts := make([]string, len(topic))
			for i, tw := range topic {
				parts[i] = fmt.Sprintf("%s (%.4f)", tw.Term, tw.Weight)
			}
			fmt.Printf("topic %d: %s\n", k+1, strings.Join(parts, ", "))
		}
		return nil
	case "topics":
		docs, err := predictionDocs(m)
		if err != nil {
			return err
		}
		pred, err := m.PredictTopics(docs, cfg.Train.BatchSize, predictNormalize(flag.CommandLine, m, cfg))
		if err != nil {
			return err
		}
		if outPath != "" {
			return IO.WriteThetaCSV(outPath, pred)
		}
		for d, id := range pred.DocIDs {
			fmt.Printf("%s\t%v\n", id, pred.Theta.RawRowView(d))
		}
		fmt.Printf("weighted_avg\t%v\n", pred.WeightedAvg)
		return nil
	}
	return fmt.Errorf("predict: unknown mode %q, want topics or terms", mode)
}

// predictionDocs counts -texts against the model vocabulary, or reads
// -corpus when no texts are given.
func predictionDocs(m *etm.Model) (corpus.TokenCounts, error) {
	if textsPath != "" {
		texts, err := IO.ReadLines(textsPath)
		if err != nil {
			return corpus.TokenCounts{}, err
		}
		return IO.CountAgainstVocab(texts, nil, m.Vocab), nil
	}
	tc, err := corpus.Load(corpusPath)
	if err != nil {
		return tc, err
	}
	if tc.V > m.VocabSize() {
		return tc, fmt.Errorf("corpus uses word id %d but the model vocabulary has %d terms", tc.V-1, m.VocabSize())
	}
	tc.V = m.VocabSize()
	return tc, nil
}

// predictNormalize follows the model's training setting unless -normalize
// was given on the command line.
func predictNormalize(fs *flag.FlagSet, m *etm.Model, cfg params.Config) bool {
	normalize := m.Normalize
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "normalize" {
			normalize = cfg.Train.Normalize
		}
	})
	return normalize
}
