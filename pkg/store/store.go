// Package store defines the persistence ports the analytics core reads
// through, the keyword-filter predicate language shared by all
// adapters, and two adapters: an in-memory store and a Postgres store.
package store

import (
	"context"
	"strings"

	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
)

// Filters are keyword filters with optional operator suffixes on the
// key, mirroring the read API the analytics layer was designed against:
//
//	Filters{"measurement_id": 4}            // equality
//	Filters{"frequency_hz__gte": 50.0}      // comparison
//	Filters{"id__in": []int64{1, 2, 3}}     // membership
//
// Supported suffixes: __eq (default), __ne, __lt, __lte, __gt, __gte,
// __in.
type Filters map[string]any

// Op is a filter comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
)

// Predicate is one parsed filter clause.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

var opSuffixes = map[string]Op{
	"eq":  OpEq,
	"ne":  OpNe,
	"lt":  OpLt,
	"lte": OpLte,
	"gt":  OpGt,
	"gte": OpGte,
	"in":  OpIn,
}

// Parse splits every filter key into a field name and an operator.
// Unknown operator suffixes are a validation failure.
func (f Filters) Parse() ([]Predicate, error) {
	preds := make([]Predicate, 0, len(f))
	for key, value := range f {
		field, op := key, OpEq
		if i := strings.LastIndex(key, "__"); i > 0 {
			suffix := key[i+2:]
			parsed, ok := opSuffixes[suffix]
			if !ok {
				return nil, errors.Ef(errors.Validation, "unsupported filter operator %q", suffix)
			}
			field, op = key[:i], parsed
		}
		preds = append(preds, Predicate{Field: field, Op: op, Value: value})
	}
	return preds, nil
}

// ItemReader reads measurement items matching keyword filters, returning
// the items and their ids.
type ItemReader interface {
	ReadItemsBy(ctx context.Context, filters Filters) ([]models.MeasurementItem, []int64, error)
}

// MeasurementReader reads measurements (with nested items) matching
// keyword filters, returning the measurements and their ids.
type MeasurementReader interface {
	ReadMeasurementsBy(ctx context.Context, filters Filters) ([]models.Measurement, []int64, error)
}
