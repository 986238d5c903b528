// Package groundmeas implements the numeric core for earthing measurement
// analytics: impedance model fitting, soil resistivity geometry, layered
// earth forward modelling and inversion, and AC phasor algebra.
package groundmeas

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// LeastSquaresFunc solves the dense least-squares problem min ||Ax - b||.
type LeastSquaresFunc func(a *mat.Dense, b *mat.VecDense) ([]float64, error)

// Backend selects the dense linear-algebra routine used by the fitting
// and inversion code. Resolution happens once per call site, typically
// from configuration; nothing deeper in the call paths reads the
// environment.
type Backend struct {
	Name  string
	Solve LeastSquaresFunc
}

const (
	// BackendDefault is the pure-Go gonum SVD least-squares solver.
	BackendDefault = "default"
	// BackendAccelerated is an optional BLAS/LAPACK-bound solver that an
	// accelerated build may register at init time.
	BackendAccelerated = "accelerated"
)

// acceleratedSolve is set by RegisterAccelerated. Stays nil in a plain
// build, in which case resolution falls back to the default backend.
var acceleratedSolve LeastSquaresFunc

// RegisterAccelerated installs an accelerated least-squares implementation,
// making BackendAccelerated resolvable.
func RegisterAccelerated(solve LeastSquaresFunc) {
	acceleratedSolve = solve
}

// DefaultBackend returns the SVD-based gonum backend.
func DefaultBackend() Backend {
	return Backend{Name: BackendDefault, Solve: svdSolve}
}

// ResolveBackend picks a backend by name. The second return value is a
// warning message, non-empty when the requested backend was unavailable
// or unknown and the default was substituted.
func ResolveBackend(name string) (Backend, string) {
	switch name {
	case "", BackendDefault:
		return DefaultBackend(), ""
	case BackendAccelerated:
		if acceleratedSolve == nil {
			return DefaultBackend(), "accelerated backend unavailable, falling back to default"
		}
		return Backend{Name: BackendAccelerated, Solve: acceleratedSolve}, ""
	default:
		return DefaultBackend(), fmt.Sprintf("unknown backend %q, falling back to default", name)
	}
}

// svdSolve solves min ||Ax - b|| via a thin SVD.
func svdSolve(a *mat.Dense, b *mat.VecDense) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.E(errors.NumericSolve, "SVD factorization did not converge")
	}
	const rcond = 1e-12
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, errors.E(errors.NumericSolve, "zero-rank system in least-squares solve")
	}
	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)
	_, cols := a.Dims()
	out := make([]float64, cols)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}
