package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix functions used by the encoder, the decoder and their gradients.
// Batches are stored one document per row.

// r = rows of matrix
// c = columns of matrix
// o = output
// m = matrix input number 1
// n = matrix input number 2

func Dot(m, n mat.Matrix) mat.Matrix {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Scale(s float64, m mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Scale(s, m)
	return o
}

func Multiply(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.MulElem(m, n)
	return o
}

func Add(m, n mat.Matrix) mat.Matrix {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

// AddRowBias adds the (1 x c) bias to every row of m.
func AddRowBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != 1 || cb != c {
		panic(fmt.Sprintf("addRowBias: bias must be (1 x %d), got (%d x %d)", c, rb, cb))
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)+bias.At(0, j))
		}
	}
	return out
}

// ColSums sums over rows, giving a (1 x c) row. Bias gradients are the
// column sums of the upstream gradient.
func ColSums(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += m.At(i, j)
		}
		out.Set(0, j, s)
	}
	return out
}

// RowSums returns per-row sums.
func RowSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += m.At(i, j)
		}
		out[i] = sum
	}
	return out
}

// ScaleRows divides row i of m by d[i] in place. Rows with d[i] == 0 are
// left untouched.
func ScaleRows(m *mat.Dense, d []float64) {
	r, c := m.Dims()
	if len(d) != r {
		panic(fmt.Sprintf("scaleRows: %d divisors for %d rows", len(d), r))
	}
	for i := 0; i < r; i++ {
		if d[i] == 0 {
			continue
		}
		inv := 1.0 / d[i]
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)*inv)
		}
	}
}

// ---------- Softmax ----------

// RowSoftmax applies softmax independently to each row across columns.
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		// numerical stability
		mx := row[0]
		for _, v := range row {
			if v > mx {
				mx = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, row[j]/sum)
		}
	}
	return out
}

// Softmax backward for row-wise softmax.
// Vector-JVP form: for each row i,
// s = sum_k dA[i,k] * A[i,k]; dS[i,j] = A[i,j] * (dA[i,j] - s)
func SoftmaxBackward(dA mat.Matrix, A *mat.Dense) *mat.Dense {
	r, c := A.Dims()
	dS := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s := 0.0
		for k := 0; k < c; k++ {
			s += dA.At(i, k) * A.At(i, k)
		}
		for j := 0; j < c; j++ {
			aj := A.At(i, j)
			dS.Set(i, j, aj*(dA.At(i, j)-s))
		}
	}
	return dS
}

// Sigmoid is the logistic function, split by sign to avoid overflow.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
