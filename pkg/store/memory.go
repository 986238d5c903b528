package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
)

// Memory is a slice-backed store applying the filter predicates in
// process. It backs the test suites and the CLI demo mode.
type Memory struct {
	mu           sync.RWMutex
	nextMeasID   int64
	nextItemID   int64
	measurements map[int64]*models.Measurement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextMeasID:   1,
		nextItemID:   1,
		measurements: make(map[int64]*models.Measurement),
	}
}

// AddMeasurement stores a measurement (and any nested items) and returns
// its assigned id.
func (s *Memory) AddMeasurement(m models.Measurement) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextMeasID
	s.nextMeasID++
	for i := range m.Items {
		m.Items[i].ID = s.nextItemID
		m.Items[i].MeasurementID = m.ID
		s.nextItemID++
	}
	s.measurements[m.ID] = &m
	return m.ID
}

// AddItem stores an item under an existing measurement and returns the
// assigned item id.
func (s *Memory) AddItem(measurementID int64, item models.MeasurementItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.measurements[measurementID]
	if !ok {
		return 0, errors.Ef(errors.Validation, "no measurement with id %d", measurementID)
	}
	item.ID = s.nextItemID
	item.MeasurementID = measurementID
	s.nextItemID++
	m.Items = append(m.Items, item)
	return item.ID, nil
}

// ReadItemsBy implements ItemReader.
func (s *Memory) ReadItemsBy(_ context.Context, filters Filters) ([]models.MeasurementItem, []int64, error) {
	preds, err := filters.Parse()
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MeasurementItem
	var ids []int64
	for _, mid := range s.sortedMeasurementIDs() {
		for _, item := range s.measurements[mid].Items {
			match, err := matchItem(item, preds)
			if err != nil {
				return nil, nil, err
			}
			if match {
				out = append(out, item)
				ids = append(ids, item.ID)
			}
		}
	}
	return out, ids, nil
}

// ReadMeasurementsBy implements MeasurementReader.
func (s *Memory) ReadMeasurementsBy(_ context.Context, filters Filters) ([]models.Measurement, []int64, error) {
	preds, err := filters.Parse()
	if err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Measurement
	var ids []int64
	for _, mid := range s.sortedMeasurementIDs() {
		m := s.measurements[mid]
		match, err := matchMeasurement(*m, preds)
		if err != nil {
			return nil, nil, err
		}
		if match {
			out = append(out, *m)
			ids = append(ids, m.ID)
		}
	}
	return out, ids, nil
}

func (s *Memory) sortedMeasurementIDs() []int64 {
	ids := make([]int64, 0, len(s.measurements))
	for id := range s.measurements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func matchItem(item models.MeasurementItem, preds []Predicate) (bool, error) {
	for _, p := range preds {
		var field any
		switch p.Field {
		case "id":
			field = item.ID
		case "measurement_id":
			field = item.MeasurementID
		case "measurement_type":
			field = string(item.Type)
		case "unit":
			field = item.Unit
		case "frequency_hz":
			field = deref(item.FrequencyHz)
		case "measurement_distance_m":
			field = deref(item.MeasurementDistanceM)
		case "distance_to_current_injection_m":
			field = deref(item.DistanceToCurrentInjectionM)
		default:
			return false, errors.Ef(errors.Validation, "unsupported item filter field %q", p.Field)
		}
		ok, err := compare(field, p.Op, p.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchMeasurement(m models.Measurement, preds []Predicate) (bool, error) {
	for _, p := range preds {
		var field any
		switch p.Field {
		case "id":
			field = m.ID
		case "location_id":
			field = derefInt(m.LocationID)
		case "method":
			field = string(m.Method)
		case "asset_type":
			field = m.AssetType
		case "voltage_level_kv":
			field = deref(m.VoltageLevelKV)
		default:
			return false, errors.Ef(errors.Validation, "unsupported measurement filter field %q", p.Field)
		}
		ok, err := compare(field, p.Op, p.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// compare applies op between a stored field value and a filter value.
// Numeric values compare as float64 regardless of their Go integer or
// float type; nil fields only ever match __ne.
func compare(field any, op Op, value any) (bool, error) {
	if op == OpIn {
		vals, err := anySlice(value)
		if err != nil {
			return false, err
		}
		for _, v := range vals {
			if equal(field, v) {
				return true, nil
			}
		}
		return false, nil
	}
	if field == nil {
		return op == OpNe, nil
	}
	switch op {
	case OpEq:
		return equal(field, value), nil
	case OpNe:
		return !equal(field, value), nil
	}
	fn, fok := toFloat(field)
	vn, vok := toFloat(value)
	if !fok || !vok {
		return false, errors.Ef(errors.Validation, "ordering filter on non-numeric value %v", value)
	}
	switch op {
	case OpLt:
		return fn < vn, nil
	case OpLte:
		return fn <= vn, nil
	case OpGt:
		return fn > vn, nil
	case OpGte:
		return fn >= vn, nil
	}
	return false, errors.Ef(errors.Validation, "unsupported filter operator %d", op)
}

func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func anySlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []int64:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, nil
	case []int:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, nil
	case []string:
		out := make([]any, len(s))
		for i, n := range s {
			out[i] = n
		}
		return out, nil
	}
	return nil, errors.Ef(errors.Validation, "__in filter needs a slice, got %T", v)
}
