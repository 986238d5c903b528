// Package export writes measurements (with nested items) matching
// keyword filters to JSON, CSV or XLSX.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// Exporter reads measurements through an injected reader and serializes
// them.
type Exporter struct {
	measurements store.MeasurementReader
}

// New creates an Exporter.
func New(measurements store.MeasurementReader) *Exporter {
	return &Exporter{measurements: measurements}
}

// JSON writes the matching measurements as an indented JSON array.
func (e *Exporter) JSON(ctx context.Context, w io.Writer, filters store.Filters) error {
	measurements, _, err := e.measurements.ReadMeasurementsBy(ctx, filters)
	if err != nil {
		return err
	}
	if measurements == nil {
		measurements = []models.Measurement{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(measurements); err != nil {
		return errors.Wrap(errors.DataAccess, err, "failed to encode measurements as JSON")
	}
	return nil
}

var csvHeader = []string{
	"id", "timestamp", "location_id", "method", "asset_type",
	"voltage_level_kv", "fault_resistance_ohm", "operator", "description", "items",
}

// CSV writes one row per measurement; the nested items are serialized
// into a JSON-encoded column.
func (e *Exporter) CSV(ctx context.Context, w io.Writer, filters store.Filters) error {
	measurements, _, err := e.measurements.ReadMeasurementsBy(ctx, filters)
	if err != nil {
		return err
	}
	if len(measurements) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(errors.DataAccess, err, "failed to write CSV header")
	}
	for _, m := range measurements {
		items, err := json.Marshal(m.Items)
		if err != nil {
			return errors.Wrapf(errors.DataAccess, err, "failed to encode items of measurement %d", m.ID)
		}
		row := []string{
			strconv.FormatInt(m.ID, 10),
			m.Timestamp.Format(time.RFC3339),
			optInt(m.LocationID),
			string(m.Method),
			m.AssetType,
			optFloat(m.VoltageLevelKV),
			optFloat(m.FaultResistanceOhm),
			optString(m.Operator),
			optString(m.Description),
			string(items),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(errors.DataAccess, err, "failed to write measurement %d", m.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(errors.DataAccess, cw.Error(), "failed to flush CSV output")
}

// XLSX writes a workbook with a Measurements sheet and an Items sheet.
func (e *Exporter) XLSX(ctx context.Context, w io.Writer, filters store.Filters) error {
	measurements, _, err := e.measurements.ReadMeasurementsBy(ctx, filters)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const measSheet = "Measurements"
	const itemSheet = "Items"
	if err := f.SetSheetName("Sheet1", measSheet); err != nil {
		return errors.Wrap(errors.DataAccess, err, "failed to prepare workbook")
	}
	if _, err := f.NewSheet(itemSheet); err != nil {
		return errors.Wrap(errors.DataAccess, err, "failed to prepare workbook")
	}

	measHeader := []any{
		"id", "timestamp", "location_id", "method", "asset_type",
		"voltage_level_kv", "fault_resistance_ohm", "operator", "description",
	}
	if err := writeRow(f, measSheet, 1, measHeader); err != nil {
		return err
	}
	itemHeader := []any{
		"id", "measurement_id", "measurement_type", "value", "value_real",
		"value_imag", "value_angle_deg", "unit", "frequency_hz",
		"measurement_distance_m", "distance_to_current_injection_m",
	}
	if err := writeRow(f, itemSheet, 1, itemHeader); err != nil {
		return err
	}

	itemRow := 2
	for i, m := range measurements {
		row := []any{
			m.ID, m.Timestamp.Format(time.RFC3339), optInt(m.LocationID),
			string(m.Method), m.AssetType, optFloat(m.VoltageLevelKV),
			optFloat(m.FaultResistanceOhm), optString(m.Operator), optString(m.Description),
		}
		if err := writeRow(f, measSheet, i+2, row); err != nil {
			return err
		}
		for _, item := range m.Items {
			row := []any{
				item.ID, item.MeasurementID, string(item.Type),
				optFloat(item.Value), optFloat(item.ValueReal), optFloat(item.ValueImag),
				optFloat(item.ValueAngleDeg), item.Unit, optFloat(item.FrequencyHz),
				optFloat(item.MeasurementDistanceM), optFloat(item.DistanceToCurrentInjectionM),
			}
			if err := writeRow(f, itemSheet, itemRow, row); err != nil {
				return err
			}
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(errors.DataAccess, err, "failed to write XLSX output")
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return errors.Wrap(errors.DataAccess, err, "failed to address workbook cell")
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return errors.Wrapf(errors.DataAccess, err, "failed to write cell %s", cell)
		}
	}
	return nil
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
