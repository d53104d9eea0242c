package IO

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/corpus"
	"github.com/RolandMax/ETM/etm"
)

func TestEmbeddingsRoundTrip(t *testing.T) {
	emb := &etm.Embeddings{
		Vocab:   []string{"river", "bank", "money"},
		Vectors: mat.NewDense(3, 2, []float64{0.5, -1, 2, 0.25, -3, 1e-3}),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteEmbeddings(&buf, emb))
	assert.True(t, strings.HasPrefix(buf.String(), "3 2\n"))

	back, err := ReadEmbeddings(&buf)
	require.NoError(t, err)
	assert.Equal(t, emb.Vocab, back.Vocab)
	assert.True(t, mat.EqualApprox(emb.Vectors, back.Vectors, 1e-12))

	path := filepath.Join(t.TempDir(), "emb.txt")
	require.NoError(t, SaveEmbeddings(path, emb))
	loaded, err := LoadEmbeddings(path)
	require.NoError(t, err)
	assert.Equal(t, emb.Vocab, loaded.Vocab)
}

func TestReadEmbeddingsWithoutHeader(t *testing.T) {
	back, err := ReadEmbeddings(strings.NewReader("a 1 2 3\nb 4 5 6\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, back.Vocab)
	assert.Equal(t, 6.0, back.Vectors.At(1, 2))
}

func TestAlignEmbeddings(t *testing.T) {
	emb := &etm.Embeddings{
		Vocab:   []string{"x", "y", "z"},
		Vectors: mat.NewDense(3, 1, []float64{1, 2, 3}),
	}
	aligned, kept := AlignEmbeddings(emb, []string{"z", "w", "x"})
	assert.Equal(t, []int{0, 2}, kept)
	assert.Equal(t, []string{"z", "x"}, aligned.Vocab)
	assert.Equal(t, []float64{3, 1}, mat.Col(nil, 0, aligned.Vectors))

	none, kept := AlignEmbeddings(emb, []string{"q"})
	assert.Empty(t, kept)
	assert.Nil(t, none.Vectors)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "fine café  ok ", NormalizeText("ﬁne Café, OK!"))
}

func TestBuildDTM(t *testing.T) {
	texts := []string{"The cat sat on the mat", "The dog; the CAT"}
	dtm, vocab, err := BuildDTM(texts, []string{"the", "on"})
	require.NoError(t, err)
	assert.NotContains(t, vocab, "the")
	assert.ElementsMatch(t, []string{"cat", "sat", "mat", "dog"}, vocab)

	tc, err := corpus.FromSparse(dtm)
	require.NoError(t, err)
	require.Equal(t, 2, tc.Len())
	assert.Equal(t, []float64{3, 2}, tc.Sums(tc.All()))

	col := make(map[string]int)
	for i, w := range vocab {
		col[w] = i
	}
	b := tc.Batch([]int{1})
	assert.Equal(t, 1.0, b.At(0, col["cat"]))
	assert.Equal(t, 1.0, b.At(0, col["dog"]))
	assert.Equal(t, 0.0, b.At(0, col["sat"]))
}

func TestLinesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, WriteLines(path, []string{"a", "b", "c"}))
	got, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestWriteLossCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.csv")
	recs := []etm.LossRecord{
		{Epoch: 1, Batch: 1, LR: 0.005, Loss: 10, KLTheta: 1, NELBO: 11, SumLoss: 10, SumKLTheta: 1},
		{Epoch: 1, Batch: 2, IsLast: true, LR: 0.005, Loss: 9, KLTheta: 1, NELBO: 10, SumLoss: 18, SumKLTheta: 2},
	}
	require.NoError(t, WriteLossCSV(path, recs))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, lossHeader, rows[0])
	assert.Equal(t, []string{"1", "2", "true", "0.005", "9", "1", "10", "18", "2"}, rows[2])
}

func TestExportTopicsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.json")
	terms := [][]etm.TermWeight{{{Term: "a", Weight: 0.6, Rank: 1}}, {{Term: "b", Weight: 0.4, Rank: 1}}}
	require.NoError(t, ExportTopicsJSON(path, terms))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []topicJSON
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].Topic)
	assert.Equal(t, "b", got[1].Terms[0].Term)
	assert.Contains(t, string(raw), `"weight": 0.6`)
}

func TestWriteThetaCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theta.csv")
	pred := etm.TopicPrediction{
		DocIDs:      []string{"d1", "d2"},
		Theta:       mat.NewDense(2, 2, []float64{0.25, 0.75, 0.5, 0.5}),
		WeightedAvg: []float64{0.4, 0.6},
	}
	require.NoError(t, WriteThetaCSV(path, pred))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"doc_id", "topic_1", "topic_2"},
		{"d1", "0.25", "0.75"},
		{"d2", "0.5", "0.5"},
		{"weighted_avg", "0.4", "0.6"},
	}, rows)
}

func TestEmbeddingModelSelection(t *testing.T) {
	for _, name := range []string{"word2vec", "glove", "lexvec"} {
		m, err := newEmbeddingModel(EmbeddingOptions{Model: name}.withDefaults())
		require.NoError(t, err, name)
		assert.NotNil(t, m)
	}
	_, err := newEmbeddingModel(EmbeddingOptions{Model: "fasttext"}.withDefaults())
	assert.Error(t, err)
}

func TestCountAgainstVocab(t *testing.T) {
	tc := CountAgainstVocab([]string{"Cat cat DOG bird", "fish"}, []string{"a", "b"}, []string{"dog", "cat"})
	assert.Equal(t, 2, tc.V)
	assert.Equal(t, []string{"a", "b"}, tc.IDs)
	assert.Equal(t, []int{0, 1}, tc.Tokens[0])
	assert.Equal(t, []float64{1, 2}, tc.Counts[0])
	assert.Equal(t, []int{1}, tc.Empty())
}
