package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ce1ectric/groundmeas/pkg/analytics"
	"github.com/Ce1ectric/groundmeas/pkg/config"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
	"github.com/Ce1ectric/groundmeas/pkg/worker"
)

func fp(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := analytics.New(analytics.Options{Items: mem, Measurements: mem})
	srv := New(Options{
		Config:       config.DefaultConfig(),
		Service:      svc,
		Measurements: mem,
	})
	t.Cleanup(func() { srv.workerPool.Shutdown() })
	return srv, mem
}

func seedImpedance(mem *store.Memory) int64 {
	return mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		Method:    models.InjectionEarthElectrode,
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthingImpedance, Value: fp(0.5), ValueReal: fp(0.4), ValueImag: fp(0.3), FrequencyHz: fp(50), Unit: "Ohm"},
			{Type: models.EarthingImpedance, Value: fp(0.7), ValueReal: fp(0.5), ValueImag: fp(0.49), FrequencyHz: fp(150), Unit: "Ohm"},
		},
	})
}

func doRequest(srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPassthrough(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}

func TestImpedanceEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	id := seedImpedance(mem)

	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/measurements/%d/impedance", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 0.5, body["50"], 1e-12)
	assert.InDelta(t, 0.7, body["150"], 1e-12)
}

func TestImpedanceEndpointInvalidID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/measurements/abc/impedance", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid measurement id", body["error"])
}

func TestImpedanceComplexEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	id := seedImpedance(mem)

	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/measurements/%d/impedance/complex", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]models.RealImag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "50")
	assert.InDelta(t, 0.4, *body["50"].Real, 1e-12)
}

func TestImpedanceMultiEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	id1 := seedImpedance(mem)
	id2 := seedImpedance(mem)

	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/impedance?ids=%d,%d", id1, id2), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
}

func TestImpedanceMultiRequiresIDs(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/impedance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpointRequiresType(t *testing.T) {
	srv, mem := newTestServer(t)
	id := seedImpedance(mem)
	rec := doRequest(srv, http.MethodGet, fmt.Sprintf("/measurements/%d/profile", id), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	id := mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthPotentialRise, Value: fp(400), MeasurementDistanceM: fp(10), Unit: "V"},
			{Type: models.EarthPotentialRise, Value: fp(650), MeasurementDistanceM: fp(50), Unit: "V"},
			{Type: models.EarthPotentialRise, Value: fp(640), MeasurementDistanceM: fp(80), Unit: "V"},
		},
	})

	rec := doRequest(srv, http.MethodGet,
		fmt.Sprintf("/measurements/%d/profile?type=earth_potential_rise&algorithm=maximum", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body analytics.ProfileResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 650, body.Value, 1e-12)
	assert.Equal(t, "maximum", body.Algorithm)
	assert.Len(t, body.Points, 3)
}

func TestSplitFactorEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/split-factor", map[string]any{
		"earth_fault_current_id": 42,
		"shield_current_ids":     []int64{1, 2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitFactorEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	mem.AddMeasurement(models.Measurement{
		Timestamp: time.Now(),
		Method:    models.StagedFaultTest,
		AssetType: "substation",
		Items: []models.MeasurementItem{
			{Type: models.EarthFaultCurrent, Value: fp(100), FrequencyHz: fp(50), Unit: "A"},
			{Type: models.EarthingCurrent, Value: fp(25), FrequencyHz: fp(50), Unit: "A"},
			{Type: models.EarthingCurrent, Value: fp(15), FrequencyHz: fp(50), Unit: "A"},
		},
	})

	rec := doRequest(srv, http.MethodPost, "/split-factor", map[string]any{
		"earth_fault_current_id": 1,
		"shield_current_ids":     []int64{2, 3},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 0.6, body["split_factor"].(float64), 1e-12)
}

func TestInvertEndpointBadMethod(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/invert", map[string]any{
		"measurement_id": 1,
		"method":         "dipole-dipole",
		"layers":         2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvertEndpointBadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/invert", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "invalid request body")
}

func TestInvertBatchEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)

	// two-layer synthetic sounding so the queued jobs succeed
	spacings := []float64{0.5, 1, 2, 5, 10, 20, 50}
	rhos := []float64{
		100.5964242622, 104.1170992453, 121.0342658314, 181.6866775934,
		235.1617832452, 272.7520110602, 293.9747535287,
	}
	items := make([]models.MeasurementItem, 0, len(spacings))
	for i, a := range spacings {
		a := a
		rho := rhos[i]
		items = append(items, models.MeasurementItem{
			Type: models.SoilResistivity, Value: &rho, MeasurementDistanceM: &a, Unit: "Ohmm",
		})
	}
	id := mem.AddMeasurement(models.Measurement{Timestamp: time.Now(), AssetType: "substation", Items: items})

	rec := doRequest(srv, http.MethodPost, "/invert/batch", map[string]any{
		"jobs": []map[string]any{
			{"measurement_id": id, "method": "wenner", "layers": 2},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body batchInvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.BatchID)
	require.Len(t, body.JobIDs, 1)

	// the job must eventually surface through the results endpoint
	var outcomes []worker.Outcome
	deadline := time.Now().Add(10 * time.Second)
	for len(outcomes) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		res := doRequest(srv, http.MethodGet, "/invert/results", nil)
		require.Equal(t, http.StatusOK, res.Code)
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &outcomes))
	}
	require.Len(t, outcomes, 1)
	assert.Equal(t, body.JobIDs[0], outcomes[0].JobID)
	assert.True(t, outcomes[0].Success)
}

func TestInvertBatchRejectsBadJob(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/invert/batch", map[string]any{
		"jobs": []map[string]any{
			{"measurement_id": 1, "method": "wenner", "layers": 2},
			{"measurement_id": 2, "method": "bogus", "layers": 2},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvertBatchRejectsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/invert/batch", map[string]any{"jobs": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportEndpointJSON(t *testing.T) {
	srv, mem := newTestServer(t)
	seedImpedance(mem)

	rec := doRequest(srv, http.MethodGet, "/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []models.Measurement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
}

func TestExportEndpointCSVFiltered(t *testing.T) {
	srv, mem := newTestServer(t)
	seedImpedance(mem)

	rec := doRequest(srv, http.MethodGet, "/export?format=csv&asset_type=tower", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Zero(t, rec.Body.Len())
}

func TestExportEndpointBadFormat(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/export?format=yaml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
