package groundmeas

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// ReductionAlgorithm picks the representative far-earth value out of a
// distance profile.
type ReductionAlgorithm int

const (
	// ReduceMaximum picks the point with the largest value.
	ReduceMaximum ReductionAlgorithm = iota
	// ReduceSixtyTwoPercent interpolates the value at 62% of the
	// current-injection distance.
	ReduceSixtyTwoPercent
	// ReduceMinimumGradient picks the point with the flattest outgoing
	// gradient (plateau detection).
	ReduceMinimumGradient
	// ReduceMinimumStdDev picks the middle of the sliding window with the
	// lowest standard deviation.
	ReduceMinimumStdDev
	// ReduceInverseDistance extrapolates value = a + b/distance to
	// infinite distance and reports the intercept a.
	ReduceInverseDistance
)

var reductionNames = map[ReductionAlgorithm]string{
	ReduceMaximum:         "maximum",
	ReduceSixtyTwoPercent: "62_percent",
	ReduceMinimumGradient: "minimum_gradient",
	ReduceMinimumStdDev:   "minimum_stddev",
	ReduceInverseDistance: "inverse",
}

func (a ReductionAlgorithm) String() string {
	if s, ok := reductionNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseReductionAlgorithm maps an algorithm name to its enum value.
func ParseReductionAlgorithm(name string) (ReductionAlgorithm, error) {
	for a, s := range reductionNames {
		if s == name {
			return a, nil
		}
	}
	return 0, errors.Ef(errors.Validation, "unsupported profile algorithm %q", name)
}

// ProfilePoint is one measured value at a distance from the earthing
// system under test. InjectionDistanceM is the distance to the current
// injection electrode when known (needed for the 62% rule).
type ProfilePoint struct {
	DistanceM          float64
	Value              float64
	InjectionDistanceM *float64
}

// ProfileValue is the reduced representative value of a distance profile.
// Distance is +Inf for the inverse-distance extrapolation. Gradient and
// WindowSize are populated only by the algorithms that define them.
type ProfileValue struct {
	Value      float64            `json:"result_value"`
	DistanceM  float64            `json:"result_distance_m"`
	Algorithm  ReductionAlgorithm `json:"-"`
	Gradient   *float64           `json:"gradient,omitempty"`
	WindowSize *int               `json:"window_size,omitempty"`
}

// ReduceOptions carries per-algorithm parameters.
type ReduceOptions struct {
	// Window is the sliding-window length for ReduceMinimumStdDev.
	// Defaults to 3.
	Window int
}

// ReduceProfile applies the chosen reduction algorithm to the profile.
func ReduceProfile(points []ProfilePoint, algorithm ReductionAlgorithm, opts ReduceOptions) (ProfileValue, error) {
	if len(points) == 0 {
		return ProfileValue{}, errors.E(errors.Validation, "no profile points given")
	}
	sorted := append([]ProfilePoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DistanceM < sorted[j].DistanceM })

	switch algorithm {
	case ReduceMaximum:
		return reduceMaximum(sorted)
	case ReduceSixtyTwoPercent:
		return reduceSixtyTwoPercent(sorted)
	case ReduceMinimumGradient:
		return reduceMinimumGradient(sorted)
	case ReduceMinimumStdDev:
		return reduceMinimumStdDev(sorted, opts.Window)
	case ReduceInverseDistance:
		return reduceInverseDistance(sorted)
	}
	return ProfileValue{}, errors.Ef(errors.Validation, "unsupported profile algorithm %d", algorithm)
}

func reduceMaximum(points []ProfilePoint) (ProfileValue, error) {
	best := points[0]
	for _, p := range points[1:] {
		if p.Value > best.Value {
			best = p
		}
	}
	return ProfileValue{Value: best.Value, DistanceM: best.DistanceM, Algorithm: ReduceMaximum}, nil
}

func reduceSixtyTwoPercent(points []ProfilePoint) (ProfileValue, error) {
	if len(points) < 2 {
		return ProfileValue{}, errors.E(errors.Validation, "62_percent rule needs at least two profile points")
	}
	var injection float64
	for i, p := range points {
		if p.InjectionDistanceM == nil {
			return ProfileValue{}, errors.E(errors.Validation, "62_percent rule requires the distance to the current injection electrode")
		}
		if i == 0 {
			injection = *p.InjectionDistanceM
		} else if *p.InjectionDistanceM != injection {
			return ProfileValue{}, errors.E(errors.Validation, "62_percent rule requires an identical injection distance on all points")
		}
	}
	target := 0.62 * injection
	if target < points[0].DistanceM || target > points[len(points)-1].DistanceM {
		return ProfileValue{}, errors.Ef(errors.Validation, "62%% target distance %.2f m outside measured range", target)
	}
	for i := 0; i < len(points)-1; i++ {
		lo, hi := points[i], points[i+1]
		if target < lo.DistanceM || target > hi.DistanceM {
			continue
		}
		v := lo.Value
		if hi.DistanceM != lo.DistanceM {
			v += (hi.Value - lo.Value) * (target - lo.DistanceM) / (hi.DistanceM - lo.DistanceM)
		}
		return ProfileValue{Value: v, DistanceM: target, Algorithm: ReduceSixtyTwoPercent}, nil
	}
	return ProfileValue{}, errors.E(errors.Validation, "no bracketing points around the 62% target distance")
}

func reduceMinimumGradient(points []ProfilePoint) (ProfileValue, error) {
	if len(points) < 2 {
		return ProfileValue{}, errors.E(errors.Validation, "minimum_gradient needs at least two profile points")
	}
	bestIdx := -1
	bestGrad := 0.0
	for i := 0; i < len(points)-1; i++ {
		dd := points[i+1].DistanceM - points[i].DistanceM
		if dd == 0 {
			continue
		}
		g := (points[i+1].Value - points[i].Value) / dd
		if bestIdx < 0 || math.Abs(g) < math.Abs(bestGrad) {
			bestIdx, bestGrad = i, g
		}
	}
	if bestIdx < 0 {
		return ProfileValue{}, errors.E(errors.Validation, "profile points share a single distance, no gradient defined")
	}
	p := points[bestIdx]
	grad := bestGrad
	return ProfileValue{Value: p.Value, DistanceM: p.DistanceM, Algorithm: ReduceMinimumGradient, Gradient: &grad}, nil
}

func reduceMinimumStdDev(points []ProfilePoint, window int) (ProfileValue, error) {
	if window <= 0 {
		window = 3
	}
	if len(points) < window {
		return ProfileValue{}, errors.Ef(errors.Validation, "minimum_stddev needs at least %d profile points", window)
	}
	bestStart := -1
	bestSD := math.Inf(1)
	buf := make([]float64, window)
	for start := 0; start+window <= len(points); start++ {
		for i := 0; i < window; i++ {
			buf[i] = points[start+i].Value
		}
		sd, err := stats.StandardDeviation(buf)
		if err != nil {
			return ProfileValue{}, errors.Wrap(errors.NumericSolve, err, "window standard deviation failed")
		}
		if sd < bestSD {
			bestSD, bestStart = sd, start
		}
	}
	mid := points[bestStart+window/2]
	w := window
	return ProfileValue{Value: mid.Value, DistanceM: mid.DistanceM, Algorithm: ReduceMinimumStdDev, WindowSize: &w}, nil
}

func reduceInverseDistance(points []ProfilePoint) (ProfileValue, error) {
	if len(points) < 2 {
		return ProfileValue{}, errors.E(errors.Validation, "inverse extrapolation needs at least two profile points")
	}
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if p.DistanceM <= 0 {
			return ProfileValue{}, errors.E(errors.Validation, "inverse extrapolation requires strictly positive distances")
		}
		xs = append(xs, 1/p.DistanceM)
		ys = append(ys, p.Value)
	}
	// value = a + b/d is linear in x = 1/d; slope from the moment ratio so
	// the covariance normalization cancels.
	sxy, err := stats.Covariance(xs, ys)
	if err != nil {
		return ProfileValue{}, errors.Wrap(errors.NumericSolve, err, "inverse-distance regression failed")
	}
	sxx, err := stats.Covariance(xs, xs)
	if err != nil {
		return ProfileValue{}, errors.Wrap(errors.NumericSolve, err, "inverse-distance regression failed")
	}
	if sxx == 0 {
		return ProfileValue{}, errors.E(errors.Validation, "inverse extrapolation requires at least two distinct distances")
	}
	mx, _ := stats.Mean(xs)
	my, _ := stats.Mean(ys)
	slope := sxy / sxx
	intercept := my - slope*mx
	return ProfileValue{Value: intercept, DistanceM: math.Inf(1), Algorithm: ReduceInverseDistance}, nil
}
