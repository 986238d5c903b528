package groundmeas

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// Layer is one layer of a 1-D earth resistivity model. BottomDepthM is
// nil for the last, semi-infinite layer.
type Layer struct {
	RhoOhmM      float64  `json:"rho_ohm_m"`
	TopDepthM    float64  `json:"top_depth_m"`
	BottomDepthM *float64 `json:"bottom_depth_m"`
}

// LayeredEarthModel is an ordered stack of resistivity layers with
// strictly increasing depths and an unbounded last layer.
type LayeredEarthModel struct {
	Layers []Layer `json:"layers"`
}

// NewLayeredEarthModel builds the layer stack from per-layer
// resistivities and the thicknesses of all but the last layer.
func NewLayeredEarthModel(rhosOhmM, thicknessesM []float64) (LayeredEarthModel, error) {
	if len(rhosOhmM) == 0 {
		return LayeredEarthModel{}, errors.E(errors.Validation, "at least one layer resistivity is required")
	}
	if len(thicknessesM) != len(rhosOhmM)-1 {
		return LayeredEarthModel{}, errors.Ef(errors.Validation,
			"expected %d thicknesses for %d layers, got %d", len(rhosOhmM)-1, len(rhosOhmM), len(thicknessesM))
	}
	layers := make([]Layer, len(rhosOhmM))
	top := 0.0
	for i, rho := range rhosOhmM {
		if rho <= 0 {
			return LayeredEarthModel{}, errors.E(errors.Validation, "layer resistivities must be positive")
		}
		layers[i] = Layer{RhoOhmM: rho, TopDepthM: top}
		if i < len(thicknessesM) {
			h := thicknessesM[i]
			if h <= 0 {
				return LayeredEarthModel{}, errors.E(errors.Validation, "layer thicknesses must be positive")
			}
			bottom := top + h
			layers[i].BottomDepthM = &bottom
			top = bottom
		}
	}
	return LayeredEarthModel{Layers: layers}, nil
}

// Rhos returns the per-layer resistivities.
func (m LayeredEarthModel) Rhos() []float64 {
	out := make([]float64, len(m.Layers))
	for i, l := range m.Layers {
		out[i] = l.RhoOhmM
	}
	return out
}

// Thicknesses returns the thicknesses of all but the last layer.
func (m LayeredEarthModel) Thicknesses() []float64 {
	out := make([]float64, 0, len(m.Layers)-1)
	for _, l := range m.Layers[:len(m.Layers)-1] {
		out = append(out, *l.BottomDepthM-l.TopDepthM)
	}
	return out
}

// ForwardOptions selects the array geometry for a forward response.
type ForwardOptions struct {
	Method ArrayMethod
	// ABIsFull marks Schlumberger spacings given as the full AB
	// separation instead of AB/2.
	ABIsFull bool
	// MNHalfM is the Schlumberger potential half spacing MN/2. Zero means
	// the ideal-gradient approximation MN/2 = (AB/2)/50.
	MNHalfM float64
}

// Apparent computes the predicted apparent resistivity of the layer
// stack at each spacing. Spacings are the electrode spacing a for
// Wenner and AB/2 (or AB, see ABIsFull) for Schlumberger.
//
// The response comes from the surface potential of a point source over
// the stack, U(r) = (1/2pi)[rho1/r + integral (T(lambda)-rho1)
// J0(lambda r) dlambda] with T the Koefoed resistivity transform, and
// four-electrode superposition. A single layer therefore reduces
// exactly to the uniform half-space value rho1.
func (m LayeredEarthModel) Apparent(spacingsM []float64, opts ForwardOptions) ([]float64, error) {
	if len(m.Layers) == 0 {
		return nil, errors.E(errors.Validation, "empty layer stack")
	}
	out := make([]float64, len(spacingsM))
	if len(m.Layers) == 1 {
		for i := range out {
			out[i] = m.Layers[0].RhoOhmM
		}
		return out, nil
	}

	rhos := m.Rhos()
	hs := m.Thicknesses()
	for i, s := range spacingsM {
		if s <= 0 {
			return nil, errors.E(errors.Validation, "electrode spacings must be positive")
		}
		switch opts.Method {
		case Wenner:
			// AM=BN=a, AN=BM=2a
			du := 2 * (surfacePotential(s, rhos, hs) - surfacePotential(2*s, rhos, hs))
			out[i] = WennerGeometricFactor(s) * du
		case Schlumberger:
			l2 := s
			if opts.ABIsFull {
				l2 = s / 2
			}
			mn := opts.MNHalfM
			if mn <= 0 {
				mn = l2 / 50
			}
			if mn >= l2 {
				return nil, errors.E(errors.Validation, "MN/2 must be smaller than AB/2")
			}
			// AM=BN=L-l, AN=BM=L+l
			du := 2 * (surfacePotential(l2-mn, rhos, hs) - surfacePotential(l2+mn, rhos, hs))
			out[i] = SchlumbergerGeometricFactor(l2, mn) * du
		default:
			return nil, errors.Ef(errors.Validation, "unsupported array method %d", opts.Method)
		}
	}
	return out, nil
}

// resistivityTransform evaluates the Koefoed transform T(lambda) by the
// Pekeris downward recursion from the bottom layer.
func resistivityTransform(lambda float64, rhos, thicknessesM []float64) float64 {
	t := rhos[len(rhos)-1]
	for i := len(rhos) - 2; i >= 0; i-- {
		th := math.Tanh(lambda * thicknessesM[i])
		t = (t + rhos[i]*th) / (1 + t*th/rhos[i])
	}
	return t
}

// surfacePotential is the surface potential per unit injected current at
// horizontal distance r from a point source on top of the stack. The
// uniform part rho1/r is carried analytically; only the decaying kernel
// difference T(lambda)-rho1 is integrated numerically.
func surfacePotential(r float64, rhos, thicknessesM []float64) float64 {
	rho1 := rhos[0]
	// The kernel difference decays like exp(-2*lambda*hmin).
	hmin := thicknessesM[0]
	for _, h := range thicknessesM[1:] {
		hmin = math.Min(hmin, h)
	}
	lambdaMax := 15 / hmin

	f := func(lambda float64) float64 {
		return (resistivityTransform(lambda, rhos, thicknessesM) - rho1) * math.J0(lambda*r)
	}

	// Panels no wider than a quarter Bessel period or half the kernel
	// decay scale in lambda, whichever is smaller.
	width := math.Min(math.Pi/(2*r), 1/(2*hmin))
	n := int(math.Ceil(lambdaMax / width))
	if n < 8 {
		n = 8
	}
	step := lambdaMax / float64(n)
	integral := 0.0
	for i := 0; i < n; i++ {
		a := float64(i) * step
		integral += quad.Fixed(f, a, a+step, 6, nil, 0)
	}
	return (rho1/r + integral) / (2 * math.Pi)
}
