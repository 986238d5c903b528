package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

func seedVoltages(mem *store.Memory) int64 {
	return mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		Method:    models.StagedFaultTest,
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthingImpedance, Value: fp(0.5), FrequencyHz: fp(50), Unit: "Ohm"},
			{Type: models.EarthingCurrent, Value: fp(200), FrequencyHz: fp(50), Unit: "A"},
			{Type: models.ProspectiveTouchVoltage, Value: fp(40), FrequencyHz: fp(50), Unit: "V"},
			{Type: models.ProspectiveTouchVoltage, Value: fp(90), FrequencyHz: fp(50), Unit: "V"},
			{Type: models.TouchVoltage, Value: fp(30), FrequencyHz: fp(50), Unit: "V"},
			// off-frequency items must not contribute
			{Type: models.ProspectiveTouchVoltage, Value: fp(500), FrequencyHz: fp(128), Unit: "V"},
		},
	})
}

func TestVoltageVtEPR(t *testing.T) {
	svc, mem, _ := newTestService(t)
	id := seedVoltages(mem)

	got, err := svc.VoltageVtEPR(context.Background(), []int64{id}, 50)
	require.NoError(t, err)
	require.Contains(t, got, id)

	r := got[id]
	assert.InDelta(t, 0.5, r.EPR, 1e-12)
	require.NotNil(t, r.VTPMin)
	require.NotNil(t, r.VTPMax)
	assert.InDelta(t, 0.2, *r.VTPMin, 1e-12)
	assert.InDelta(t, 0.45, *r.VTPMax, 1e-12)
	require.NotNil(t, r.VTMin)
	require.NotNil(t, r.VTMax)
	assert.InDelta(t, 0.15, *r.VTMin, 1e-12)
	assert.InDelta(t, 0.15, *r.VTMax, 1e-12)
}

func TestVoltageVtEPRNoTouchVoltages(t *testing.T) {
	svc, mem, _ := newTestService(t)
	id := mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthingImpedance, Value: fp(1.5), FrequencyHz: fp(50), Unit: "Ohm"},
			{Type: models.EarthingCurrent, Value: fp(10), FrequencyHz: fp(50), Unit: "A"},
		},
	})

	got, err := svc.VoltageVtEPR(context.Background(), []int64{id}, 50)
	require.NoError(t, err)
	r := got[id]
	assert.InDelta(t, 1.5, r.EPR, 1e-12)
	assert.Nil(t, r.VTPMin)
	assert.Nil(t, r.VTMin)
}

func TestVoltageVtEPRSkipsMissingImpedance(t *testing.T) {
	svc, mem, buf := newTestService(t)
	goodID := seedVoltages(mem)
	badID := mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthingCurrent, Value: fp(200), FrequencyHz: fp(50), Unit: "A"},
		},
	})

	got, err := svc.VoltageVtEPR(context.Background(), []int64{goodID, badID}, 50)
	require.NoError(t, err)
	assert.Contains(t, got, goodID)
	assert.NotContains(t, got, badID)
	assert.Contains(t, buf.String(), "no earthing_impedance at 50 Hz; skipping")
}

func TestVoltageVtEPRSkipsZeroCurrent(t *testing.T) {
	svc, mem, buf := newTestService(t)
	id := mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthingImpedance, Value: fp(0.5), FrequencyHz: fp(50), Unit: "Ohm"},
		},
	})

	got, err := svc.VoltageVtEPR(context.Background(), []int64{id}, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Contains(t, buf.String(), "no non-zero earthing_current at 50 Hz; skipping")
}

func TestVoltageVtEPRNoIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.VoltageVtEPR(context.Background(), nil, 50)
	assert.Error(t, err)
}

func TestVoltageVtEPRReadFailure(t *testing.T) {
	svc := New(Options{Items: failingReader{}})
	_, err := svc.VoltageVtEPR(context.Background(), []int64{3}, 50)
	require.Error(t, err)
	assert.ErrorContains(t, err, "Failed to load data for measurement 3")
}
