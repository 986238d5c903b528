package groundmeas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// RhoFPoint is one observation for the rho-f impedance model: a soil
// resistivity, a test frequency and the measured complex impedance.
type RhoFPoint struct {
	RhoOhmM     float64
	FrequencyHz float64
	Real        float64
	Imag        float64
}

// RhoFCoefficients are the five real coefficients of the model
//
//	Z(rho, f) = k1*rho + (k2 + i*k3)*f + (k4 + i*k5)*rho*f
//
// At f=0 the model is purely real (= k1*rho) by construction: the
// imaginary response has no rho-only regressor.
type RhoFCoefficients struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
	K4 float64 `json:"k4"`
	K5 float64 `json:"k5"`
}

// Eval returns the model impedance at the given resistivity and frequency.
func (k RhoFCoefficients) Eval(rhoOhmM, frequencyHz float64) (re, im float64) {
	re = k.K1*rhoOhmM + k.K2*frequencyHz + k.K4*rhoOhmM*frequencyHz
	im = k.K3*frequencyHz + k.K5*rhoOhmM*frequencyHz
	return re, im
}

// FitRhoF fits the rho-f model by two independent real least-squares
// systems on the given backend. The real response is regressed on
// [rho, f, rho*f] and the imaginary response on [f, rho*f].
func FitRhoF(points []RhoFPoint, backend Backend) (RhoFCoefficients, error) {
	if len(points) == 0 {
		return RhoFCoefficients{}, errors.E(errors.Validation, "No overlapping impedance data available for fitting")
	}

	n := len(points)
	aRe := mat.NewDense(n, 3, nil)
	bRe := mat.NewVecDense(n, nil)
	aIm := mat.NewDense(n, 2, nil)
	bIm := mat.NewVecDense(n, nil)
	for i, p := range points {
		aRe.Set(i, 0, p.RhoOhmM)
		aRe.Set(i, 1, p.FrequencyHz)
		aRe.Set(i, 2, p.RhoOhmM*p.FrequencyHz)
		bRe.SetVec(i, p.Real)

		aIm.Set(i, 0, p.FrequencyHz)
		aIm.Set(i, 1, p.RhoOhmM*p.FrequencyHz)
		bIm.SetVec(i, p.Imag)
	}

	re, err := backend.Solve(aRe, bRe)
	if err != nil {
		return RhoFCoefficients{}, errors.Wrap(errors.NumericSolve, err, "Failed to solve rho-f least-squares problem")
	}
	im, err := backend.Solve(aIm, bIm)
	if err != nil {
		return RhoFCoefficients{}, errors.Wrap(errors.NumericSolve, err, "Failed to solve rho-f least-squares problem")
	}

	return RhoFCoefficients{K1: re[0], K2: re[1], K4: re[2], K3: im[0], K5: im[1]}, nil
}

// SelectDepths picks one depth per entry minimizing the spread (max-min)
// of the chosen depths across entries. Brute force over the Cartesian
// product of the per-entry depth sets; each set is iterated in ascending
// order and ties are broken by the first combination found. Small-N by
// nature: each measurement carries only a handful of sounding depths.
func SelectDepths(depthsPer [][]float64) ([]float64, error) {
	if len(depthsPer) == 0 {
		return nil, errors.E(errors.Validation, "no depth sets given")
	}
	sorted := make([][]float64, len(depthsPer))
	for i, ds := range depthsPer {
		if len(ds) == 0 {
			return nil, errors.E(errors.Validation, "empty depth set given")
		}
		cp := append([]float64(nil), ds...)
		sort.Float64s(cp)
		sorted[i] = cp
	}

	idx := make([]int, len(sorted))
	best := make([]float64, len(sorted))
	bestSpread := math.Inf(1)
	for {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i, j := range idx {
			d := sorted[i][j]
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		if spread := hi - lo; spread < bestSpread {
			bestSpread = spread
			for i, j := range idx {
				best[i] = sorted[i][j]
			}
		}
		// advance the mixed-radix counter, last index fastest
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(sorted[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return best, nil
		}
	}
}
