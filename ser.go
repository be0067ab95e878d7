package svdgo

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/svdgo/internal/matutil"
)

// SVDEmbeddingRegression combines a truncated SVD embedding with an
// ordinary least-squares regression fitted in the reduced space.
//
// Fit centers X and y by their column means, factors the centered X with
// a thin SVD, truncates to the requested number of components and solves
// a least-squares map from the component scores to the centered targets.
//
// Targets follow gonum conventions: a single-output target is an n-by-1
// matrix and predictions come back n-by-1; multi-output targets are
// n-by-t and predictions n-by-t.
type SVDEmbeddingRegression struct {
	opts options

	fact    *Factorization
	u       *mat.Dense // samples x components at fit time
	meanY   []float64
	weights *mat.Dense // components x targets
}

// NewSVDEmbeddingRegression creates an unfitted model.
func NewSVDEmbeddingRegression(optFns ...Option) *SVDEmbeddingRegression {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return &SVDEmbeddingRegression{opts: o}
}

// Fit learns the embedding and the regression weights from X (samples x
// features) and y (samples x targets).
//
// Validation happens before any state is written: a failed Fit leaves the
// model unfitted.
func (m *SVDEmbeddingRegression) Fit(x, y mat.Matrix) error {
	n, p := x.Dims()
	if n < 1 {
		return &ErrDegenerateInput{Reason: "no samples"}
	}
	yr, yt := y.Dims()
	if yr != n {
		return &ErrShapeMismatch{What: "target rows", Expected: n, Actual: yr}
	}

	log := m.opts.logger.WithSamples(n).WithFeatures(p)

	meanX := matutil.ColMeans(x)
	meanY := matutil.ColMeans(y)
	xc := matutil.CenterRows(x, meanX)
	yc := matutil.CenterRows(y, meanY)

	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDThin) {
		return &ErrFactorization{Op: "svd embedding regression: thin svd"}
	}
	s := svd.Values(nil)
	if err := verifyDescending(s, "svd embedding regression: singular value order"); err != nil {
		return err
	}

	k := truncateComponents(m.opts.components, len(s), log)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	sT := make([]float64, k)
	copy(sT, s[:k])

	// v is features x rank with components as columns; store the
	// truncated transpose (components x features).
	var vt mat.Dense
	vt.CloneFrom(v.Slice(0, p, 0, k).T())

	var uT mat.Dense
	uT.CloneFrom(u.Slice(0, n, 0, k))

	var scores mat.Dense
	scores.Mul(xc, vt.T())

	var weights mat.Dense
	if err := weights.Solve(&scores, yc); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return &ErrFactorization{Op: "svd embedding regression: least squares", cause: err}
		}
		log.Warn("ill-conditioned least-squares system", "condition", float64(cond))
	}

	m.fact = newFactorization(meanX, sT, &vt)
	m.u = &uT
	m.meanY = meanY
	m.weights = &weights

	log.Debug("fit completed", "components", k, "targets", yt)
	return nil
}

// Transform centers X by the fitted feature mean and projects it onto the
// retained right singular vectors, returning component scores.
func (m *SVDEmbeddingRegression) Transform(x mat.Matrix) (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Transform(x)
}

// FitTransform fits the model and returns the component scores of X.
func (m *SVDEmbeddingRegression) FitTransform(x, y mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(x, y); err != nil {
		return nil, err
	}
	return m.Transform(x)
}

// Predict transforms X and applies the regression weights, adding the
// target mean back. The output is samples x targets.
func (m *SVDEmbeddingRegression) Predict(x mat.Matrix) (*mat.Dense, error) {
	scores, err := m.Transform(x)
	if err != nil {
		return nil, err
	}
	var pred mat.Dense
	pred.Mul(scores, m.weights)
	return matutil.AddToRows(&pred, m.meanY), nil
}

// Score returns the coefficient of determination R-squared of the
// prediction against y. The residual and total sums of squares run over
// every entry of y; the total is taken against the grand mean of y.
//
// A constant y (zero total sum of squares) has no defined R-squared and
// returns ErrDegenerateInput.
func (m *SVDEmbeddingRegression) Score(x, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(x)
	if err != nil {
		return 0, err
	}
	yr, yc := y.Dims()
	pr, pc := pred.Dims()
	if yr != pr {
		return 0, &ErrShapeMismatch{What: "target rows", Expected: pr, Actual: yr}
	}
	if yc != pc {
		return 0, &ErrShapeMismatch{What: "target columns", Expected: pc, Actual: yc}
	}

	var grand float64
	for i := 0; i < yr; i++ {
		for j := 0; j < yc; j++ {
			grand += y.At(i, j)
		}
	}
	grand /= float64(yr * yc)

	var ssRes, ssTot float64
	for i := 0; i < yr; i++ {
		for j := 0; j < yc; j++ {
			d := y.At(i, j) - pred.At(i, j)
			ssRes += d * d
			t := y.At(i, j) - grand
			ssTot += t * t
		}
	}
	if ssTot == 0 {
		return 0, &ErrDegenerateInput{Reason: "constant target"}
	}
	return 1 - ssRes/ssTot, nil
}

// SingularValues returns the retained singular values, descending.
func (m *SVDEmbeddingRegression) SingularValues() ([]float64, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.SingularValues(), nil
}

// Components returns the retained right singular vectors, one per row.
func (m *SVDEmbeddingRegression) Components() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	return m.fact.Components(), nil
}

// LeftSingularVectors returns a copy of the fit-time left singular
// vectors (samples x components).
func (m *SVDEmbeddingRegression) LeftSingularVectors() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	out := &mat.Dense{}
	out.CloneFrom(m.u)
	return out, nil
}

// Weights returns a copy of the regression weights (components x targets).
func (m *SVDEmbeddingRegression) Weights() (*mat.Dense, error) {
	if m.fact == nil {
		return nil, ErrNotFitted
	}
	out := &mat.Dense{}
	out.CloneFrom(m.weights)
	return out, nil
}
