package svdgo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFitted is returned when Transform, Predict, InverseTransform or
	// ExplainedVarianceRatio is called before a successful Fit.
	ErrNotFitted = errors.New("model is not fitted")
)

// ErrShapeMismatch indicates incompatible matrix dimensions, such as
// partitions with differing feature counts or an X/y row-count mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrShapeMismatch struct {
	What     string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("shape mismatch: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ErrShapeMismatch) Unwrap() error { return e.cause }

// ErrDegenerateInput indicates input that admits no meaningful
// factorization, such as zero total samples or a constant target in Score.
type ErrDegenerateInput struct {
	Reason string
	cause  error
}

func (e *ErrDegenerateInput) Error() string {
	return fmt.Sprintf("degenerate input: %s", e.Reason)
}

func (e *ErrDegenerateInput) Unwrap() error { return e.cause }

// ErrFactorization indicates that an underlying dense factorization
// (SVD, symmetric eigendecomposition, least-squares solve) failed to
// converge or violated its documented contract.
type ErrFactorization struct {
	Op    string
	cause error
}

func (e *ErrFactorization) Error() string {
	return fmt.Sprintf("%s: factorization failed", e.Op)
}

func (e *ErrFactorization) Unwrap() error { return e.cause }
