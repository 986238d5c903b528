package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ce1ectric/groundmeas"
	apperrors "github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/analytics"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
	"github.com/Ce1ectric/groundmeas/pkg/worker"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleImpedance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.service.ImpedanceOverFrequency(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, floatKeyed(result))
}

func (s *Server) handleImpedanceComplex(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.service.RealImagOverFrequency(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]models.RealImag, len(result))
	for f, v := range result {
		out[formatFloat(f)] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImpedanceMulti(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r, "ids")
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.service.ImpedanceOverFrequencyMulti(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]map[string]float64, len(result))
	for id, m := range result {
		out[strconv.FormatInt(id, 10)] = floatKeyed(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	measurementType := models.MeasurementType(r.URL.Query().Get("type"))
	if measurementType == "" {
		writeError(w, apperrors.E(apperrors.Validation, "type query parameter is required"))
		return
	}
	algorithm, err := groundmeas.ParseReductionAlgorithm(r.URL.Query().Get("algorithm"))
	if err != nil {
		writeError(w, err)
		return
	}
	var opts analytics.ProfileOptions
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		window, err := strconv.Atoi(windowStr)
		if err != nil {
			writeError(w, apperrors.E(apperrors.Validation, "invalid window parameter"))
			return
		}
		opts.Window = window
	}
	result, err := s.service.DistanceProfileValue(r.Context(), id, measurementType, algorithm, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSoilProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	method, kind, err := arrayParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	points, err := s.service.SoilResistivityProfile(r.Context(), id, method, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleVoltageEPR(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r, "ids")
	if err != nil {
		writeError(w, err)
		return
	}
	frequency := 50.0
	if fStr := r.URL.Query().Get("frequency"); fStr != "" {
		frequency, err = strconv.ParseFloat(fStr, 64)
		if err != nil {
			writeError(w, apperrors.E(apperrors.Validation, "invalid frequency parameter"))
			return
		}
	}
	result, err := s.service.VoltageVtEPR(r.Context(), ids, frequency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rhoFRequest struct {
	MeasurementIDs []int64 `json:"measurement_ids"`
}

func (s *Server) handleRhoF(w http.ResponseWriter, r *http.Request) {
	var req rhoFRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	coeffs, err := s.service.RhoFModel(r.Context(), req.MeasurementIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coeffs)
}

type splitFactorRequest struct {
	EarthFaultCurrentID int64   `json:"earth_fault_current_id"`
	ShieldCurrentIDs    []int64 `json:"shield_current_ids"`
}

func (s *Server) handleSplitFactor(w http.ResponseWriter, r *http.Request) {
	var req splitFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.service.CalculateSplitFactor(r.Context(), req.EarthFaultCurrentID, req.ShieldCurrentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type invertRequest struct {
	MeasurementID int64   `json:"measurement_id"`
	Method        string  `json:"method"`
	ValueKind     string  `json:"value_kind"`
	Layers        int     `json:"layers"`
	Engine        string  `json:"engine"`
	ABIsFull      bool    `json:"ab_is_full"`
	MaxIterations int     `json:"max_iterations"`
	Damping       float64 `json:"damping"`
}

func (req invertRequest) options() (analytics.InvertOptions, error) {
	method, err := groundmeas.ParseArrayMethod(req.Method)
	if err != nil {
		return analytics.InvertOptions{}, err
	}
	kind := groundmeas.Resistivity
	if req.ValueKind != "" {
		kind, err = groundmeas.ParseValueKind(req.ValueKind)
		if err != nil {
			return analytics.InvertOptions{}, err
		}
	}
	engine, err := groundmeas.ParseInversionEngine(req.Engine)
	if err != nil {
		return analytics.InvertOptions{}, err
	}
	return analytics.InvertOptions{
		Method:        method,
		Kind:          kind,
		Layers:        req.Layers,
		MaxIterations: req.MaxIterations,
		Damping:       req.Damping,
		Engine:        engine,
		ABIsFull:      req.ABIsFull,
	}, nil
}

func (s *Server) handleInvert(w http.ResponseWriter, r *http.Request) {
	var req invertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.service.InvertSoilResistivityLayers(r.Context(), req.MeasurementID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchInvertRequest struct {
	Jobs []invertRequest `json:"jobs"`
}

type batchInvertResponse struct {
	BatchID string   `json:"batch_id"`
	JobIDs  []string `json:"job_ids"`
}

func (s *Server) handleInvertBatch(w http.ResponseWriter, r *http.Request) {
	var req batchInvertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Jobs) == 0 {
		writeError(w, apperrors.E(apperrors.Validation, "batch contains no jobs"))
		return
	}
	// Validate up front so a bad job rejects the whole batch before
	// anything is queued.
	for _, job := range req.Jobs {
		if _, err := job.options(); err != nil {
			writeError(w, err)
			return
		}
	}

	batchID := uuid.NewString()
	requestID := requestIDFrom(r.Context())
	jobIDs := make([]string, 0, len(req.Jobs))
	for _, job := range req.Jobs {
		j := worker.Job{
			JobID:         uuid.NewString(),
			RequestID:     requestID,
			MeasurementID: job.MeasurementID,
			Method:        job.Method,
			ABIsFull:      job.ABIsFull,
			Layers:        job.Layers,
			ValueKind:     job.ValueKind,
			Engine:        job.Engine,
		}
		s.workerPool.Submit(j)
		jobIDs = append(jobIDs, j.JobID)
	}
	log.Printf("Batch %s queued with %d inversion jobs", batchID, len(jobIDs))
	writeJSON(w, http.StatusAccepted, batchInvertResponse{BatchID: batchID, JobIDs: jobIDs})
}

func (s *Server) handleInvertResults(w http.ResponseWriter, r *http.Request) {
	outcomes := make([]worker.Outcome, 0)
	for {
		outcome, ok := s.workerPool.Result()
		if !ok {
			break
		}
		outcomes = append(outcomes, outcome)
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// processInversionJob runs one batch job against the analytics service.
func (s *Server) processInversionJob(ctx context.Context, job worker.Job) (*groundmeas.InversionResult, error) {
	opts, err := invertRequest{
		Method:    job.Method,
		ValueKind: job.ValueKind,
		Layers:    job.Layers,
		Engine:    job.Engine,
		ABIsFull:  job.ABIsFull,
	}.options()
	if err != nil {
		return nil, err
	}
	result, err := s.service.InvertSoilResistivityLayers(ctx, job.MeasurementID, opts)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, apperrors.E(apperrors.DataAccess, "export is not configured"))
		return
	}
	query := r.URL.Query()
	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	filters := store.Filters{}
	for key, values := range query {
		if key == "format" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}

	var err error
	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		err = s.exporter.JSON(r.Context(), w, filters)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="measurements.csv"`)
		err = s.exporter.CSV(r.Context(), w, filters)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="measurements.xlsx"`)
		err = s.exporter.XLSX(r.Context(), w, filters)
	default:
		writeError(w, apperrors.Ef(apperrors.Validation, "unsupported export format %q", format))
		return
	}
	if err != nil {
		log.Printf("Export failed: %v", err)
	}
}

func arrayParams(r *http.Request) (groundmeas.ArrayMethod, groundmeas.ValueKind, error) {
	methodName := r.URL.Query().Get("method")
	if methodName == "" {
		methodName = "wenner"
	}
	method, err := groundmeas.ParseArrayMethod(methodName)
	if err != nil {
		return 0, 0, err
	}
	kind := groundmeas.Resistivity
	if kindName := r.URL.Query().Get("kind"); kindName != "" {
		kind, err = groundmeas.ParseValueKind(kindName)
		if err != nil {
			return 0, 0, err
		}
	}
	return method, kind, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperrors.E(apperrors.Validation, "invalid measurement id")
	}
	return id, nil
}

func queryIDs(r *http.Request, key string) ([]int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, apperrors.Ef(apperrors.Validation, "%s query parameter is required", key)
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, apperrors.Ef(apperrors.Validation, "invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.Validation, err, "invalid request body")
	}
	return nil
}

// floatKeyed converts a float-keyed map into a JSON-encodable one.
func floatKeyed(m map[float64]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[formatFloat(k)] = v
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
	case apperrors.IsDataAccess(err):
		status = http.StatusBadGateway
	case apperrors.IsNumericSolve(err):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
