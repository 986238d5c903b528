package groundmeas

import (
	"math"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// ArrayMethod is the four-electrode survey geometry.
type ArrayMethod int

const (
	// Wenner uses equally spaced electrodes at spacing a.
	Wenner ArrayMethod = iota
	// Schlumberger uses current electrodes at AB/2 and a short potential
	// dipole at MN/2 around the array center.
	Schlumberger
)

func (m ArrayMethod) String() string {
	switch m {
	case Wenner:
		return "wenner"
	case Schlumberger:
		return "schlumberger"
	}
	return "unknown"
}

// ParseArrayMethod maps a method name to its enum value.
func ParseArrayMethod(name string) (ArrayMethod, error) {
	switch name {
	case "wenner":
		return Wenner, nil
	case "schlumberger":
		return Schlumberger, nil
	}
	return 0, errors.Ef(errors.Validation, "unsupported array method %q", name)
}

// ValueKind says whether a stored reading is a raw resistance or an
// already-converted apparent resistivity.
type ValueKind int

const (
	Resistance ValueKind = iota
	Resistivity
)

// ParseValueKind maps a value-kind name to its enum value.
func ParseValueKind(name string) (ValueKind, error) {
	switch name {
	case "resistance":
		return Resistance, nil
	case "resistivity":
		return Resistivity, nil
	}
	return 0, errors.Ef(errors.Validation, "unsupported value kind %q", name)
}

// WennerGeometricFactor is 2*pi*a for electrode spacing a.
func WennerGeometricFactor(spacingM float64) float64 {
	return 2 * math.Pi * spacingM
}

// SchlumbergerGeometricFactor is pi*(L^2-l^2)/(2l) for current half
// spacing L (AB/2) and potential half spacing l (MN/2).
func SchlumbergerGeometricFactor(abHalfM, mnHalfM float64) float64 {
	return math.Pi * (abHalfM*abHalfM - mnHalfM*mnHalfM) / (2 * mnHalfM)
}

// SoundingPoint is one apparent-resistivity value of a vertical sounding,
// keyed by the effective depth of investigation. The convention is
// pinned as depth = spacing/2: a/2 for Wenner and (AB/2)/2 for
// Schlumberger.
type SoundingPoint struct {
	DepthM   float64 `json:"depth_m"`
	SpacingM float64 `json:"spacing_m"`
	RhoOhmM  float64 `json:"rho_ohm_m"`
}

// ApparentResistivityWenner converts a reading at Wenner spacing a into
// an apparent resistivity. A Resistance reading is scaled by the
// geometric factor 2*pi*a; a Resistivity reading is used as-is.
func ApparentResistivityWenner(spacingM, value float64, kind ValueKind) (SoundingPoint, error) {
	if spacingM <= 0 {
		return SoundingPoint{}, errors.E(errors.Validation, "electrode spacing must be positive")
	}
	rho := value
	if kind == Resistance {
		rho = WennerGeometricFactor(spacingM) * value
	}
	return SoundingPoint{DepthM: spacingM / 2, SpacingM: spacingM, RhoOhmM: rho}, nil
}

// ApparentResistivitySchlumberger converts a reading at AB/2 = abHalfM
// with potential half spacing MN/2 = mnHalfM into an apparent
// resistivity.
func ApparentResistivitySchlumberger(abHalfM, mnHalfM, value float64, kind ValueKind) (SoundingPoint, error) {
	if abHalfM <= 0 {
		return SoundingPoint{}, errors.E(errors.Validation, "AB/2 spacing must be positive")
	}
	if kind == Resistance {
		if mnHalfM <= 0 || mnHalfM >= abHalfM {
			return SoundingPoint{}, errors.E(errors.Validation, "MN/2 must be positive and smaller than AB/2")
		}
		value = SchlumbergerGeometricFactor(abHalfM, mnHalfM) * value
	}
	return SoundingPoint{DepthM: abHalfM / 2, SpacingM: abHalfM, RhoOhmM: value}, nil
}
