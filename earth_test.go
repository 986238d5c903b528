package groundmeas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayeredEarthModel(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)
	require.Len(t, m.Layers, 2)
	assert.Equal(t, 0.0, m.Layers[0].TopDepthM)
	require.NotNil(t, m.Layers[0].BottomDepthM)
	assert.Equal(t, 2.0, *m.Layers[0].BottomDepthM)
	assert.Equal(t, 2.0, m.Layers[1].TopDepthM)
	assert.Nil(t, m.Layers[1].BottomDepthM)

	assert.Equal(t, []float64{100, 300}, m.Rhos())
	assert.Equal(t, []float64{2}, m.Thicknesses())
}

func TestNewLayeredEarthModelValidation(t *testing.T) {
	_, err := NewLayeredEarthModel(nil, nil)
	assert.Error(t, err)

	_, err = NewLayeredEarthModel([]float64{100, 300}, nil)
	assert.Error(t, err)

	_, err = NewLayeredEarthModel([]float64{100, -300}, []float64{2})
	assert.Error(t, err)

	_, err = NewLayeredEarthModel([]float64{100, 300}, []float64{0})
	assert.Error(t, err)
}

func TestApparentSingleLayerIsUniform(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{150}, nil)
	require.NoError(t, err)

	spacings := []float64{0.5, 1, 5, 20, 100}

	rho, err := m.Apparent(spacings, ForwardOptions{Method: Wenner})
	require.NoError(t, err)
	for _, r := range rho {
		assert.InDelta(t, 150, r, 1e-9)
	}

	rho, err = m.Apparent(spacings, ForwardOptions{Method: Schlumberger})
	require.NoError(t, err)
	for _, r := range rho {
		assert.InDelta(t, 150, r, 1e-9)
	}
}

func TestApparentTwoLayerWenner(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)

	spacings := []float64{0.5, 1, 2, 5, 10, 20, 50}
	want := []float64{
		100.5964242622,
		104.1170992453,
		121.0342658314,
		181.6866775934,
		235.1617832452,
		272.7520110602,
		293.9747535287,
	}

	got, err := m.Apparent(spacings, ForwardOptions{Method: Wenner})
	require.NoError(t, err)
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], 1e-6, "spacing %g", spacings[i])
	}
}

func TestApparentTwoLayerSchlumberger(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)

	spacings := []float64{1, 2, 5, 10, 20, 50}
	want := []float64{
		101.5398930110,
		109.7966925503,
		156.9172488169,
		213.0695544177,
		259.5275921870,
		290.1378866281,
	}

	got, err := m.Apparent(spacings, ForwardOptions{Method: Schlumberger})
	require.NoError(t, err)
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], 1e-6, "AB/2 %g", spacings[i])
	}
}

func TestApparentSchlumbergerFullAB(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)

	half, err := m.Apparent([]float64{10}, ForwardOptions{Method: Schlumberger})
	require.NoError(t, err)
	full, err := m.Apparent([]float64{20}, ForwardOptions{Method: Schlumberger, ABIsFull: true})
	require.NoError(t, err)
	assert.InEpsilon(t, half[0], full[0], 1e-12)
}

func TestApparentTwoLayerBounds(t *testing.T) {
	// the apparent resistivity of a two-layer curve stays between the
	// layer resistivities and increases monotonically for rho2 > rho1
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)

	spacings := []float64{0.5, 1, 2, 5, 10, 20, 50}
	got, err := m.Apparent(spacings, ForwardOptions{Method: Wenner})
	require.NoError(t, err)
	for i, r := range got {
		assert.Greater(t, r, 100.0)
		assert.Less(t, r, 300.0)
		if i > 0 {
			assert.Greater(t, r, got[i-1])
		}
	}
}

func TestApparentValidation(t *testing.T) {
	m, err := NewLayeredEarthModel([]float64{100, 300}, []float64{2})
	require.NoError(t, err)

	_, err = m.Apparent([]float64{-1}, ForwardOptions{Method: Wenner})
	assert.Error(t, err)

	_, err = m.Apparent([]float64{10}, ForwardOptions{Method: Schlumberger, MNHalfM: 10})
	assert.Error(t, err)
}
