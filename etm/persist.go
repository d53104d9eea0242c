package etm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/RolandMax/ETM/layers"
	"github.com/RolandMax/ETM/params"
)

// denseData is a matrix flattened for gob.
type denseData struct {
	R, C int
	Data []float64
}

func fromDense(m *mat.Dense) denseData {
	r, c := m.Dims()
	d := denseData{R: r, C: c, Data: make([]float64, 0, r*c)}
	for i := 0; i < r; i++ {
		d.Data = append(d.Data, m.RawRowView(i)...)
	}
	return d
}

func (d denseData) dense() *mat.Dense {
	if d.R == 0 || d.C == 0 {
		return nil
	}
	return mat.NewDense(d.R, d.C, d.Data)
}

// modelData is the on-disk form: weights, vocabulary and hyperparameters.
// Optimizer state is not saved.
type modelData struct {
	RunID     string
	Cfg       params.ModelConfig
	Vocab     []string
	RhoFrozen bool
	Normalize bool

	Rho, Alpha denseData
	Linears    map[string]denseData
}

// Save writes m to filename with gob.
func Save(m *Model, filename string) error {
	data := modelData{
		RunID:     m.RunID,
		Cfg:       m.Cfg,
		Vocab:     m.Vocab,
		RhoFrozen: m.RhoFrozen,
		Normalize: m.Normalize,
		Rho:       fromDense(m.Rho.W),
		Alpha:     fromDense(m.Alpha.W),
		Linears:   make(map[string]denseData),
	}
	for _, l := range m.linears() {
		for _, p := range l.Params() {
			data.Linears[p.Name] = fromDense(p.W)
		}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// Load reads a model written by Save. The random source is seeded with 1.
func Load(filename string) (*Model, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data modelData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}

	var emb *Embeddings
	if data.RhoFrozen {
		emb = &Embeddings{Vocab: data.Vocab, Vectors: data.Rho.dense()}
	}
	m, err := New(data.Cfg, data.Vocab, emb, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	m.RunID = data.RunID
	m.Normalize = data.Normalize

	if err := copyInto(m.Rho.W, data.Rho, "rho"); err != nil {
		return nil, err
	}
	if err := copyInto(m.Alpha.W, data.Alpha, "alpha"); err != nil {
		return nil, err
	}
	for _, l := range m.linears() {
		for _, p := range l.Params() {
			d, ok := data.Linears[p.Name]
			if !ok {
				return nil, fmt.Errorf("load %s: %w: missing %s", filename, ErrShape, p.Name)
			}
			if err := copyInto(p.W, d, p.Name); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func copyInto(dst *mat.Dense, d denseData, name string) error {
	r, c := dst.Dims()
	if d.R != r || d.C != c || len(d.Data) != r*c {
		return fmt.Errorf("%w: %s is (%d x %d) in the file, model expects (%d x %d)", ErrShape, name, d.R, d.C, r, c)
	}
	dst.Copy(mat.NewDense(r, c, d.Data))
	return nil
}

func (m *Model) linears() []*layers.Linear {
	return []*layers.Linear{m.fc1, m.fc2, m.mu, m.logVar}
}
