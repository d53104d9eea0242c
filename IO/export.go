package IO

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/RolandMax/ETM/etm"
)

// LossLog streams per-batch training records to a CSV file.
type LossLog struct {
	f *os.File
	w *csv.Writer
}

var lossHeader = []string{"epoch", "batch", "is_last", "lr", "loss", "kl_theta", "nelbo", "sum_loss", "sum_kl_theta"}

func NewLossLog(path string) (*LossLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	l := &LossLog{f: f, w: csv.NewWriter(f)}
	if err := l.w.Write(lossHeader); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *LossLog) Write(r etm.LossRecord) error {
	return l.w.Write([]string{
		strconv.Itoa(r.Epoch),
		strconv.Itoa(r.Batch),
		strconv.FormatBool(r.IsLast),
		fmtFloat(r.LR),
		fmtFloat(r.Loss),
		fmtFloat(r.KLTheta),
		fmtFloat(r.NELBO),
		fmtFloat(r.SumLoss),
		fmtFloat(r.SumKLTheta),
	})
}

func (l *LossLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// WriteLossCSV writes all records at once.
func WriteLossCSV(path string, recs []etm.LossRecord) error {
	l, err := NewLossLog(path)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := l.Write(r); err != nil {
			l.Close()
			return err
		}
	}
	return l.Close()
}

type topicJSON struct {
	Topic int              `json:"topic"`
	Terms []etm.TermWeight `json:"terms"`
}

// ExportTopicsJSON writes the ranked terms of each topic, topics numbered
// from 1.
func ExportTopicsJSON(path string, terms [][]etm.TermWeight) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	out := make([]topicJSON, len(terms))
	for k, t := range terms {
		out[k] = topicJSON{Topic: k + 1, Terms: t}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteThetaCSV writes one row per document: its id and its topic
// proportions. A final row labelled "weighted_avg" holds the average.
func WriteThetaCSV(path string, pred etm.TopicPrediction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	K := len(pred.WeightedAvg)
	header := make([]string, K+1)
	header[0] = "doc_id"
	for k := 0; k < K; k++ {
		header[k+1] = "topic_" + strconv.Itoa(k+1)
	}
	w.Write(header)
	row := make([]string, K+1)
	for d, id := range pred.DocIDs {
		row[0] = id
		for k := 0; k < K; k++ {
			row[k+1] = fmtFloat(pred.Theta.At(d, k))
		}
		w.Write(row)
	}
	row[0] = "weighted_avg"
	for k, v := range pred.WeightedAvg {
		row[k+1] = fmtFloat(v)
	}
	w.Write(row)

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
