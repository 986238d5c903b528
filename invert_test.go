package groundmeas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInversionEngine(t *testing.T) {
	e, err := ParseInversionEngine("")
	require.NoError(t, err)
	assert.Equal(t, GaussNewton, e)

	e, err = ParseInversionEngine("gauss-newton")
	require.NoError(t, err)
	assert.Equal(t, GaussNewton, e)

	for _, name := range []string{"lm", "levenberg-marquardt"} {
		e, err = ParseInversionEngine(name)
		require.NoError(t, err)
		assert.Equal(t, LevenbergMarquardt, e)
	}

	_, err = ParseInversionEngine("simplex")
	assert.Error(t, err)
}

func twoLayerCurve(t *testing.T, rhos, thicknesses, spacings []float64) []CurvePoint {
	t.Helper()
	m, err := NewLayeredEarthModel(rhos, thicknesses)
	require.NoError(t, err)
	rho, err := m.Apparent(spacings, ForwardOptions{Method: Wenner})
	require.NoError(t, err)
	out := make([]CurvePoint, len(spacings))
	for i := range spacings {
		out[i] = CurvePoint{SpacingM: spacings[i], RhoOhmM: rho[i]}
	}
	return out
}

func TestInvertLayeredEarthGaussNewton(t *testing.T) {
	spacings := []float64{1, 2, 3, 5, 8, 12, 20, 30}
	observed := twoLayerCurve(t, []float64{100, 300}, []float64{3}, spacings)

	res, err := InvertLayeredEarth(observed, InversionConfig{
		InitialRhos:        []float64{80, 400},
		InitialThicknesses: []float64{2},
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InEpsilon(t, 100, res.RhoLayers[0], 1e-3)
	assert.InEpsilon(t, 300, res.RhoLayers[1], 1e-3)
	assert.InEpsilon(t, 3, res.ThicknessesM[0], 1e-2)
	assert.Less(t, res.Misfit, 1e-3)
	assert.Len(t, res.Predicted, len(observed))
	assert.Equal(t, observed, res.Observed)
}

func TestInvertLayeredEarthLM(t *testing.T) {
	spacings := []float64{1, 2, 3, 5, 8, 12, 20, 30}
	observed := twoLayerCurve(t, []float64{100, 300}, []float64{3}, spacings)

	res, err := InvertLayeredEarth(observed, InversionConfig{
		InitialRhos:        []float64{80, 400},
		InitialThicknesses: []float64{2},
		Engine:             LevenbergMarquardt,
	})
	require.NoError(t, err)
	assert.InEpsilon(t, 100, res.RhoLayers[0], 0.02)
	assert.InEpsilon(t, 300, res.RhoLayers[1], 0.02)
	assert.InEpsilon(t, 3, res.ThicknessesM[0], 0.2)
	// the Levenberg-Marquardt engine does not report an iteration count
	assert.Zero(t, res.Iterations)
}

func TestInvertLayeredEarthHomogeneous(t *testing.T) {
	observed := []CurvePoint{
		{SpacingM: 1, RhoOhmM: 150},
		{SpacingM: 5, RhoOhmM: 150},
		{SpacingM: 20, RhoOhmM: 150},
	}
	res, err := InvertLayeredEarth(observed, InversionConfig{
		InitialRhos: []float64{100},
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.InEpsilon(t, 150, res.RhoLayers[0], 1e-6)
	assert.Less(t, res.Misfit, 1e-6)
}

func TestInvertLayeredEarthValidation(t *testing.T) {
	observed := []CurvePoint{{SpacingM: 1, RhoOhmM: 100}, {SpacingM: 2, RhoOhmM: 110}}

	// no initial model
	_, err := InvertLayeredEarth(observed, InversionConfig{})
	assert.Error(t, err)

	// thickness count mismatch
	_, err = InvertLayeredEarth(observed, InversionConfig{InitialRhos: []float64{100, 200}})
	assert.Error(t, err)

	// more parameters than observations
	_, err = InvertLayeredEarth(observed, InversionConfig{
		InitialRhos:        []float64{100, 200},
		InitialThicknesses: []float64{2},
	})
	assert.Error(t, err)

	// non-positive spacing
	_, err = InvertLayeredEarth([]CurvePoint{{SpacingM: 0, RhoOhmM: 1}}, InversionConfig{
		InitialRhos: []float64{100},
	})
	assert.Error(t, err)
}
