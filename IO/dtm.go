package IO

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/e-gun/nlp"
	"github.com/e-gun/sparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/corpus"
)

var lower = cases.Lower(language.Und)

// NormalizeText applies NFKC, lower-cases and turns everything that is not
// a letter or a digit into a space.
func NormalizeText(s string) string {
	s = lower.String(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
}

// BuildDTM counts terms in every text and returns a documents x terms
// matrix with the vocabulary in column order.
func BuildDTM(texts []string, stopwords []string) (*sparse.CSR, []string, error) {
	normed := make([]string, len(texts))
	for i, t := range texts {
		normed[i] = NormalizeText(t)
	}
	stops := make([]string, len(stopwords))
	for i, w := range stopwords {
		stops[i] = strings.TrimSpace(NormalizeText(w))
	}

	vectoriser := nlp.NewCountVectoriser(stops...)
	termsByDocs, err := vectoriser.FitTransform(normed...)
	if err != nil {
		return nil, nil, fmt.Errorf("build dtm: %w", err)
	}

	vocab := make([]string, len(vectoriser.Vocabulary))
	for term, id := range vectoriser.Vocabulary {
		vocab[id] = term
	}
	return transposeToCSR(termsByDocs), vocab, nil
}

type nonZeroDoer interface {
	DoNonZero(fn func(i, j int, v float64))
}

// transposeToCSR turns a terms x documents matrix into documents x terms.
func transposeToCSR(m mat.Matrix) *sparse.CSR {
	terms, docs := m.Dims()
	dok := sparse.NewDOK(docs, terms)
	if nz, ok := m.(nonZeroDoer); ok {
		nz.DoNonZero(func(i, j int, v float64) { dok.Set(j, i, v) })
		return dok.ToCSR()
	}
	for i := 0; i < terms; i++ {
		for j := 0; j < docs; j++ {
			if v := m.At(i, j); v != 0 {
				dok.Set(j, i, v)
			}
		}
	}
	return dok.ToCSR()
}

// ReadLines returns the non-blank lines of path, one document or term each.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, scanner.Err()
}

// WriteLines writes one entry per line.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CountAgainstVocab counts the normalised words of each text that appear in
// vocab; other words are ignored. ids label the documents and may be nil.
func CountAgainstVocab(texts []string, ids []string, vocab []string) corpus.TokenCounts {
	index := make(map[string]int, len(vocab))
	for i, w := range vocab {
		index[w] = i
	}
	dok := sparse.NewDOK(len(texts), len(vocab))
	for d, t := range texts {
		for _, w := range strings.Fields(NormalizeText(t)) {
			if j, ok := index[w]; ok {
				dok.Set(d, j, dok.At(d, j)+1)
			}
		}
	}
	tc := corpus.FromCSR(dok.ToCSR())
	if len(ids) == len(texts) {
		tc.IDs = ids
	}
	return tc
}
