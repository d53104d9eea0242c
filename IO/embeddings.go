package IO

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/e-gun/wego/pkg/embedding"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/etm"
)

// LoadEmbeddings reads a word2vec text table: one "word v1 v2 ..." line per
// term, optionally preceded by a "count dim" header.
func LoadEmbeddings(path string) (*etm.Embeddings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ReadEmbeddings(bytes.NewReader(raw))
}

func ReadEmbeddings(r io.Reader) (*etm.Embeddings, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = skipHeader(raw)

	embs, err := embedding.Load(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read embeddings: %w", err)
	}
	return fromWego(embs)
}

// skipHeader drops a leading "count dim" line.
func skipHeader(raw []byte) []byte {
	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return raw
	}
	fields := strings.Fields(string(raw[:nl]))
	if len(fields) != 2 {
		return raw
	}
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return raw
		}
	}
	return raw[nl+1:]
}

func fromWego(embs embedding.Embeddings) (*etm.Embeddings, error) {
	if len(embs) == 0 {
		return nil, fmt.Errorf("read embeddings: empty table")
	}
	dim := len(embs[0].Vector)
	out := &etm.Embeddings{
		Vocab:   make([]string, len(embs)),
		Vectors: mat.NewDense(len(embs), dim, nil),
	}
	for i, e := range embs {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("read embeddings: %q has %d values, want %d", e.Word, len(e.Vector), dim)
		}
		out.Vocab[i] = e.Word
		out.Vectors.SetRow(i, e.Vector)
	}
	return out, nil
}

// SaveEmbeddings writes emb in word2vec text format with a header line.
func SaveEmbeddings(path string, emb *etm.Embeddings) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteEmbeddings(f, emb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteEmbeddings(w io.Writer, emb *etm.Embeddings) error {
	bw := bufio.NewWriter(w)
	r, c := emb.Vectors.Dims()
	fmt.Fprintf(bw, "%d %d\n", r, c)
	for i, word := range emb.Vocab {
		bw.WriteString(word)
		for _, v := range emb.Vectors.RawRowView(i) {
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// AlignEmbeddings orders the table rows by vocab. Terms without a vector are
// left out; kept lists the vocab positions that survived, in order.
func AlignEmbeddings(emb *etm.Embeddings, vocab []string) (aligned *etm.Embeddings, kept []int) {
	row := make(map[string]int, len(emb.Vocab))
	for i, w := range emb.Vocab {
		row[w] = i
	}
	_, dim := emb.Vectors.Dims()
	for i, w := range vocab {
		if _, ok := row[w]; ok {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return &etm.Embeddings{}, nil
	}
	aligned = &etm.Embeddings{
		Vocab:   make([]string, len(kept)),
		Vectors: mat.NewDense(len(kept), dim, nil),
	}
	for r, i := range kept {
		aligned.Vocab[r] = vocab[i]
		aligned.Vectors.SetRow(r, emb.Vectors.RawRowView(row[vocab[i]]))
	}
	return aligned, kept
}
