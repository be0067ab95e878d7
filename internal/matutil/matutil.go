// Package matutil provides small dense-matrix helpers shared by the
// estimators: column reductions, row centering and block stacking.
package matutil

import "gonum.org/v1/gonum/mat"

// ColSums returns the per-column sums of m.
func ColSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	sums := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}

// ColMeans returns the per-column means of m.
// m must have at least one row.
func ColMeans(m mat.Matrix) []float64 {
	r, _ := m.Dims()
	means := ColSums(m)
	for j := range means {
		means[j] /= float64(r)
	}
	return means
}

// CenterRows returns a copy of m with mean subtracted from every row.
// len(mean) must equal the column count of m.
func CenterRows(m mat.Matrix, mean []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)-mean[j])
		}
	}
	return out
}

// AddToRows returns a copy of m with v added to every row.
// len(v) must equal the column count of m.
func AddToRows(m mat.Matrix, v []float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)+v[j])
		}
	}
	return out
}

// VStack stacks the given blocks row-wise in order. Nil blocks are
// skipped. Returns nil if no block contributes any rows.
func VStack(blocks []*mat.Dense) *mat.Dense {
	total, cols := 0, 0
	for _, b := range blocks {
		if b == nil {
			continue
		}
		r, c := b.Dims()
		total += r
		cols = c
	}
	if total == 0 {
		return nil
	}
	out := mat.NewDense(total, cols, nil)
	row := 0
	for _, b := range blocks {
		if b == nil {
			continue
		}
		r, c := b.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				out.Set(row, j, b.At(i, j))
			}
			row++
		}
	}
	return out
}

// ScaleRows returns diag(s) * m, i.e. row i of m scaled by s[i].
// len(s) must equal the row count of m.
func ScaleRows(s []float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, s[i]*m.At(i, j))
		}
	}
	return out
}

// IsDescending reports whether s is sorted in non-increasing order.
func IsDescending(s []float64) bool {
	for i := 1; i < len(s); i++ {
		if s[i] > s[i-1] {
			return false
		}
	}
	return true
}
