package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
)

// Schema is the DDL for the measurement tables.
const Schema = `
CREATE TABLE IF NOT EXISTS location (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL,
	latitude  DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	altitude  DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS measurement (
	id                   BIGSERIAL PRIMARY KEY,
	timestamp            TIMESTAMPTZ NOT NULL DEFAULT now(),
	location_id          BIGINT REFERENCES location(id),
	method               TEXT NOT NULL,
	asset_type           TEXT NOT NULL,
	voltage_level_kv     DOUBLE PRECISION,
	fault_resistance_ohm DOUBLE PRECISION,
	operator             TEXT,
	description          TEXT
);

CREATE TABLE IF NOT EXISTS measurementitem (
	id                              BIGSERIAL PRIMARY KEY,
	measurement_id                  BIGINT NOT NULL REFERENCES measurement(id),
	measurement_type                TEXT NOT NULL,
	value                           DOUBLE PRECISION,
	value_real                      DOUBLE PRECISION,
	value_imag                      DOUBLE PRECISION,
	value_angle_deg                 DOUBLE PRECISION,
	unit                            TEXT NOT NULL DEFAULT '',
	frequency_hz                    DOUBLE PRECISION,
	measurement_distance_m          DOUBLE PRECISION,
	distance_to_current_injection_m DOUBLE PRECISION,
	description                     TEXT
);
`

// Postgres reads measurement data through sqlx.
type Postgres struct {
	db *sqlx.DB
}

// OpenPostgres connects to the database at url and ensures the schema
// exists.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.Wrap(errors.DataAccess, err, "failed to connect to database")
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.DataAccess, err, "failed to ensure database schema")
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing sqlx handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	return s.db.Close()
}

var itemFields = map[string]bool{
	"id":                              true,
	"measurement_id":                  true,
	"measurement_type":                true,
	"unit":                            true,
	"frequency_hz":                    true,
	"measurement_distance_m":          true,
	"distance_to_current_injection_m": true,
}

var measurementFields = map[string]bool{
	"id":               true,
	"location_id":      true,
	"method":           true,
	"asset_type":       true,
	"voltage_level_kv": true,
}

// ReadItemsBy implements ItemReader.
func (s *Postgres) ReadItemsBy(ctx context.Context, filters Filters) ([]models.MeasurementItem, []int64, error) {
	where, args, err := compileWhere(filters, itemFields)
	if err != nil {
		return nil, nil, err
	}
	query := "SELECT * FROM measurementitem" + where + " ORDER BY id"
	query = s.db.Rebind(query)

	var items []models.MeasurementItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, nil, errors.Wrap(errors.DataAccess, err, "failed to read measurement items")
	}
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return items, ids, nil
}

// ReadMeasurementsBy implements MeasurementReader. Items are loaded in a
// second query and grouped under their measurements.
func (s *Postgres) ReadMeasurementsBy(ctx context.Context, filters Filters) ([]models.Measurement, []int64, error) {
	where, args, err := compileWhere(filters, measurementFields)
	if err != nil {
		return nil, nil, err
	}
	query := s.db.Rebind("SELECT * FROM measurement" + where + " ORDER BY id")

	var measurements []models.Measurement
	if err := s.db.SelectContext(ctx, &measurements, query, args...); err != nil {
		return nil, nil, errors.Wrap(errors.DataAccess, err, "failed to read measurements")
	}
	if len(measurements) == 0 {
		return nil, nil, nil
	}

	ids := make([]int64, len(measurements))
	byID := make(map[int64]*models.Measurement, len(measurements))
	for i := range measurements {
		ids[i] = measurements[i].ID
		byID[measurements[i].ID] = &measurements[i]
	}

	itemQuery, itemArgs, err := sqlx.In("SELECT * FROM measurementitem WHERE measurement_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, nil, errors.Wrap(errors.DataAccess, err, "failed to build item query")
	}
	var items []models.MeasurementItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(itemQuery), itemArgs...); err != nil {
		return nil, nil, errors.Wrap(errors.DataAccess, err, "failed to read measurement items")
	}
	for _, item := range items {
		if m, ok := byID[item.MeasurementID]; ok {
			m.Items = append(m.Items, item)
		}
	}
	return measurements, ids, nil
}

// compileWhere turns filters into a WHERE clause with "?" placeholders,
// rejecting fields outside the whitelist.
func compileWhere(filters Filters, fields map[string]bool) (string, []any, error) {
	preds, err := filters.Parse()
	if err != nil {
		return "", nil, err
	}
	if len(preds) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for _, p := range preds {
		if !fields[p.Field] {
			return "", nil, errors.Ef(errors.Validation, "unsupported filter field %q", p.Field)
		}
		switch p.Op {
		case OpEq:
			clauses = append(clauses, p.Field+" = ?")
			args = append(args, p.Value)
		case OpNe:
			clauses = append(clauses, p.Field+" <> ?")
			args = append(args, p.Value)
		case OpLt:
			clauses = append(clauses, p.Field+" < ?")
			args = append(args, p.Value)
		case OpLte:
			clauses = append(clauses, p.Field+" <= ?")
			args = append(args, p.Value)
		case OpGt:
			clauses = append(clauses, p.Field+" > ?")
			args = append(args, p.Value)
		case OpGte:
			clauses = append(clauses, p.Field+" >= ?")
			args = append(args, p.Value)
		case OpIn:
			vals, err := anySlice(p.Value)
			if err != nil {
				return "", nil, err
			}
			if len(vals) == 0 {
				return "", nil, errors.Ef(errors.Validation, "__in filter on %q needs at least one value", p.Field)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (?%s)", p.Field, strings.Repeat(", ?", len(vals)-1)))
			args = append(args, vals...)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
