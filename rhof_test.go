package groundmeas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitRhoFRoundTrip(t *testing.T) {
	truth := RhoFCoefficients{K1: 0.1, K2: 0.01, K3: 0.02, K4: 1e-4, K5: 2e-4}

	var points []RhoFPoint
	for _, rho := range []float64{50, 100, 200} {
		for _, f := range []float64{30, 50, 70, 90} {
			re, im := truth.Eval(rho, f)
			points = append(points, RhoFPoint{RhoOhmM: rho, FrequencyHz: f, Real: re, Imag: im})
		}
	}

	got, err := FitRhoF(points, DefaultBackend())
	require.NoError(t, err)
	assert.InDelta(t, truth.K1, got.K1, 1e-8)
	assert.InDelta(t, truth.K2, got.K2, 1e-8)
	assert.InDelta(t, truth.K3, got.K3, 1e-8)
	assert.InDelta(t, truth.K4, got.K4, 1e-8)
	assert.InDelta(t, truth.K5, got.K5, 1e-8)
}

func TestFitRhoFSinglePoint(t *testing.T) {
	// a single observation still reaches the solver; the underdetermined
	// system resolves through the minimum-norm SVD solution
	_, err := FitRhoF([]RhoFPoint{{RhoOhmM: 100, FrequencyHz: 50, Real: 12, Imag: 3}}, DefaultBackend())
	assert.NoError(t, err)
}

func TestFitRhoFEmpty(t *testing.T) {
	_, err := FitRhoF(nil, DefaultBackend())
	require.Error(t, err)
	assert.EqualError(t, err, "No overlapping impedance data available for fitting")
}

func TestRhoFEvalZeroFrequency(t *testing.T) {
	k := RhoFCoefficients{K1: 0.5, K2: 1, K3: 1, K4: 1, K5: 1}
	re, im := k.Eval(80, 0)
	assert.Equal(t, 40.0, re)
	assert.Equal(t, 0.0, im)
}

func TestSelectDepths(t *testing.T) {
	depths, err := SelectDepths([][]float64{
		{1, 3},
		{10, 2.9},
		{3.2, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2.9, 3.2}, depths)
}

func TestSelectDepthsSingleSets(t *testing.T) {
	depths, err := SelectDepths([][]float64{{4}, {6}})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6}, depths)
}

func TestSelectDepthsValidation(t *testing.T) {
	_, err := SelectDepths(nil)
	assert.Error(t, err)

	_, err = SelectDepths([][]float64{{1}, {}})
	assert.Error(t, err)
}
