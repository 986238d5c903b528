package groundmeas

import (
	"math"
	"math/cmplx"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// Phasor is a complex AC quantity (current or voltage).
type Phasor complex128

// PhasorFromRect builds a phasor from real and imaginary parts.
func PhasorFromRect(re, im float64) Phasor {
	return Phasor(complex(re, im))
}

// PhasorFromPolar builds a phasor from a magnitude and an angle in degrees.
func PhasorFromPolar(magnitude, angleDeg float64) Phasor {
	rad := angleDeg * math.Pi / 180
	return Phasor(cmplx.Rect(magnitude, rad))
}

// Magnitude returns |p|.
func (p Phasor) Magnitude() float64 {
	return cmplx.Abs(complex128(p))
}

// AngleDeg returns the phase angle of p in degrees.
func (p Phasor) AngleDeg() float64 {
	return cmplx.Phase(complex128(p)) * 180 / math.Pi
}

// Real returns the real part of p.
func (p Phasor) Real() float64 { return real(complex128(p)) }

// Imag returns the imaginary part of p.
func (p Phasor) Imag() float64 { return imag(complex128(p)) }

// SumPhasors returns the vector sum of the given phasors.
func SumPhasors(ps []Phasor) Phasor {
	var sum complex128
	for _, p := range ps {
		sum += complex128(p)
	}
	return Phasor(sum)
}

// SplitFactorResult describes how an earth fault current divides between
// the local earthing system and metallic return paths such as cable
// shields withdrawn from the fault location.
type SplitFactorResult struct {
	SplitFactor          float64      `json:"split_factor"`
	FaultCurrent         PhasorRecord `json:"earth_fault_current"`
	ShieldCurrentSum     PhasorRecord `json:"shield_current_sum"`
	LocalEarthingCurrent PhasorRecord `json:"local_earthing_current"`
}

// PhasorRecord is the JSON-encodable view of a phasor.
type PhasorRecord struct {
	Magnitude float64 `json:"magnitude"`
	AngleDeg  float64 `json:"angle_deg"`
	Real      float64 `json:"real"`
	Imag      float64 `json:"imag"`
}

// Record converts p into its JSON-encodable form.
func (p Phasor) Record() PhasorRecord {
	return PhasorRecord{
		Magnitude: p.Magnitude(),
		AngleDeg:  p.AngleDeg(),
		Real:      p.Real(),
		Imag:      p.Imag(),
	}
}

// SplitFactor computes the split factor 1 - |sum(shield)| / |fault| and
// the local earthing current fault - sum(shield). The fault current must
// have a non-zero magnitude and at least one shield current is required.
func SplitFactor(fault Phasor, shields []Phasor) (SplitFactorResult, error) {
	if len(shields) == 0 {
		return SplitFactorResult{}, errors.E(errors.Validation, "no shield currents given")
	}
	if fault.Magnitude() == 0 {
		return SplitFactorResult{}, errors.E(errors.Validation, "earth fault current magnitude is zero")
	}
	shieldSum := SumPhasors(shields)
	local := Phasor(complex128(fault) - complex128(shieldSum))
	return SplitFactorResult{
		SplitFactor:          1 - shieldSum.Magnitude()/fault.Magnitude(),
		FaultCurrent:         fault.Record(),
		ShieldCurrentSum:     shieldSum.Record(),
		LocalEarthingCurrent: local.Record(),
	}, nil
}
