package analytics

import (
	"context"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// CalculateSplitFactor computes the split factor between an earth fault
// current item and a set of shield current items. Shield ids that are
// not found are warned about and skipped; the calculation proceeds with
// the ones found.
func (s *Service) CalculateSplitFactor(ctx context.Context, earthFaultCurrentID int64, shieldCurrentIDs []int64) (groundmeas.SplitFactorResult, error) {
	if len(shieldCurrentIDs) == 0 {
		return groundmeas.SplitFactorResult{}, errors.E(errors.Validation, "no shield current ids given")
	}

	faultItems, _, err := s.items.ReadItemsBy(ctx, store.Filters{"id": earthFaultCurrentID})
	if err != nil {
		return groundmeas.SplitFactorResult{}, errors.Wrapf(errors.DataAccess, err, "Failed to load earth fault current item %d", earthFaultCurrentID)
	}
	if len(faultItems) == 0 {
		return groundmeas.SplitFactorResult{}, errors.Ef(errors.Validation, "earth_fault_current item %d not found", earthFaultCurrentID)
	}
	fault, ok := itemPhasor(faultItems[0])
	if !ok {
		return groundmeas.SplitFactorResult{}, errors.Ef(errors.Validation, "earth_fault_current item %d has no usable value", earthFaultCurrentID)
	}

	shieldItems, foundIDs, err := s.items.ReadItemsBy(ctx, store.Filters{"id__in": shieldCurrentIDs})
	if err != nil {
		return groundmeas.SplitFactorResult{}, errors.Wrap(errors.DataAccess, err, "Failed to load shield current items")
	}
	found := make(map[int64]bool, len(foundIDs))
	for _, id := range foundIDs {
		found[id] = true
	}
	for _, id := range shieldCurrentIDs {
		if !found[id] {
			s.warnf("shield current item %d not found; skipping", id)
		}
	}

	var shields []groundmeas.Phasor
	for _, item := range shieldItems {
		p, ok := itemPhasor(item)
		if !ok {
			s.warnf("shield current item %d has no usable value; skipping", item.ID)
			continue
		}
		shields = append(shields, p)
	}
	if len(shields) == 0 {
		return groundmeas.SplitFactorResult{}, errors.E(errors.Validation, "none of the shield current items carries a usable value")
	}

	return groundmeas.SplitFactor(fault, shields)
}

// ShieldCurrentsForLocation lists the earthing current items recorded on
// measurements at a location, optionally restricted to one frequency.
func (s *Service) ShieldCurrentsForLocation(ctx context.Context, locationID int64, frequencyHz *float64) ([]models.MeasurementItem, error) {
	if s.measurements == nil {
		return nil, errors.E(errors.Validation, "no measurement reader configured")
	}
	measurements, _, err := s.measurements.ReadMeasurementsBy(ctx, store.Filters{"location_id": locationID})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load measurements for location %d", locationID)
	}

	var out []models.MeasurementItem
	for _, m := range measurements {
		for _, item := range m.Items {
			if item.Type != models.EarthingCurrent {
				continue
			}
			if frequencyHz != nil && (item.FrequencyHz == nil || *item.FrequencyHz != *frequencyHz) {
				continue
			}
			out = append(out, item)
		}
	}
	return out, nil
}

// itemPhasor converts an item to a phasor, preferring the rectangular
// representation and falling back to magnitude plus angle (angle 0 when
// absent).
func itemPhasor(item models.MeasurementItem) (groundmeas.Phasor, bool) {
	if item.ValueReal != nil && item.ValueImag != nil {
		return groundmeas.PhasorFromRect(*item.ValueReal, *item.ValueImag), true
	}
	if item.Value != nil {
		angle := 0.0
		if item.ValueAngleDeg != nil {
			angle = *item.ValueAngleDeg
		}
		return groundmeas.PhasorFromPolar(*item.Value, angle), true
	}
	return 0, false
}
