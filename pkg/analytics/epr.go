package analytics

import (
	"context"

	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// VoltageVtEPR derives per-ampere voltage ratios for each measurement at
// the given test frequency: the earth potential rise per ampere (the
// impedance magnitude) and the min/max prospective and effective touch
// voltage ratios (voltage items divided by the earthing current). A
// measurement missing its impedance or carrying a zero current is
// skipped with a warning so batch calls degrade gracefully.
func (s *Service) VoltageVtEPR(ctx context.Context, measurementIDs []int64, frequencyHz float64) (map[int64]models.VoltageEPR, error) {
	if len(measurementIDs) == 0 {
		return nil, errors.E(errors.Validation, "no measurement ids given")
	}

	out := make(map[int64]models.VoltageEPR)
	for _, id := range measurementIDs {
		items, _, err := s.items.ReadItemsBy(ctx, store.Filters{"measurement_id": id})
		if err != nil {
			return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load data for measurement %d", id)
		}

		var (
			epr     *float64
			current float64
			vtps    []float64
			vts     []float64
		)
		for _, item := range items {
			if !atFrequency(item, frequencyHz) {
				continue
			}
			switch item.Type {
			case models.EarthingImpedance:
				if item.Value != nil && epr == nil {
					epr = item.Value
				}
			case models.EarthingCurrent:
				if p, ok := itemPhasor(item); ok && current == 0 {
					current = p.Magnitude()
				}
			case models.ProspectiveTouchVoltage:
				if item.Value != nil {
					vtps = append(vtps, *item.Value)
				}
			case models.TouchVoltage:
				if item.Value != nil {
					vts = append(vts, *item.Value)
				}
			}
		}

		if epr == nil {
			s.warnf("measurement %d has no earthing_impedance at %g Hz; skipping", id, frequencyHz)
			continue
		}
		if current == 0 {
			s.warnf("measurement %d has no non-zero earthing_current at %g Hz; skipping", id, frequencyHz)
			continue
		}

		result := models.VoltageEPR{EPR: *epr}
		if len(vtps) > 0 {
			lo, hi := minMaxRatio(vtps, current)
			result.VTPMin, result.VTPMax = &lo, &hi
		}
		if len(vts) > 0 {
			lo, hi := minMaxRatio(vts, current)
			result.VTMin, result.VTMax = &lo, &hi
		}
		out[id] = result
	}
	return out, nil
}

func atFrequency(item models.MeasurementItem, frequencyHz float64) bool {
	return item.FrequencyHz != nil && *item.FrequencyHz == frequencyHz
}

func minMaxRatio(values []float64, current float64) (lo, hi float64) {
	lo = values[0] / current
	hi = lo
	for _, v := range values[1:] {
		r := v / current
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	return lo, hi
}
