package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Load reads documents in the line format
//
//	docId wordId:count wordId:count ...
//
// V is one more than the largest word id seen. Blank lines and malformed
// pairs are skipped; a bare id is an empty document. Unparsable numbers are
// errors.
func Load(fn string) (TokenCounts, error) {
	f, err := os.Open(fn)
	if err != nil {
		return TokenCounts{}, err
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) (TokenCounts, error) {
	var tc TokenCounts
	maxID := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		vals := strings.Fields(scanner.Text())
		if len(vals) == 0 {
			continue
		}
		if len(vals) == 1 {
			glog.Warningf("corpus: line %d: document %s has no words", line, vals[0])
		}
		var tokens []int
		var counts []float64
		for _, kv := range vals[1:] {
			wc := strings.Split(kv, ":")
			if len(wc) != 2 {
				glog.Warningf("corpus: line %d: bad word count %q", line, kv)
				continue
			}
			w, err := strconv.Atoi(wc[0])
			if err != nil || w < 0 {
				return TokenCounts{}, fmt.Errorf("corpus: line %d: bad word id %q", line, wc[0])
			}
			c, err := strconv.ParseFloat(wc[1], 64)
			if err != nil || c < 0 {
				return TokenCounts{}, fmt.Errorf("corpus: line %d: bad count %q", line, wc[1])
			}
			tokens = append(tokens, w)
			counts = append(counts, c)
			if w > maxID {
				maxID = w
			}
		}
		tokens, counts = merge(tokens, counts)
		tc.Tokens = append(tc.Tokens, tokens)
		tc.Counts = append(tc.Counts, counts)
		tc.IDs = append(tc.IDs, vals[0])
	}
	if err := scanner.Err(); err != nil {
		return TokenCounts{}, err
	}
	tc.V = maxID + 1

	glog.Infof("corpus: %d documents, vocabulary size %d", tc.Len(), tc.V)
	return tc, nil
}

// merge sorts by word id and sums repeated ids.
func merge(tokens []int, counts []float64) ([]int, []float64) {
	sortPairs(tokens, counts)
	out := 0
	for k := range tokens {
		if out > 0 && tokens[out-1] == tokens[k] {
			counts[out-1] += counts[k]
			continue
		}
		tokens[out], counts[out] = tokens[k], counts[k]
		out++
	}
	return tokens[:out], counts[:out]
}

func sortPairs(tokens []int, counts []float64) {
	sort.Sort(byToken{tokens, counts})
}

// Write stores tc in the format Load reads. Empty documents are kept as a
// bare id so that row positions survive a round trip through Write alone.
func Write(w io.Writer, tc TokenCounts) error {
	bw := bufio.NewWriter(w)
	for d := range tc.Tokens {
		if _, err := bw.WriteString(tc.ID(d)); err != nil {
			return err
		}
		for k, t := range tc.Tokens[d] {
			fmt.Fprintf(bw, " %d:%s", t, strconv.FormatFloat(tc.Counts[d][k], 'g', -1, 64))
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes tc to fn.
func Save(fn string, tc TokenCounts) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := Write(f, tc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
