package analytics

import (
	"context"
	"math"
	"sort"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// RhoFModel fits Z(rho, f) = k1*rho + (k2+i*k3)*f + (k4+i*k5)*rho*f
// across the given measurements. Each measurement contributes its
// complex impedance spectrum plus one soil resistivity; the depth for
// that resistivity is chosen per measurement so the spread of chosen
// depths across measurements is minimal.
func (s *Service) RhoFModel(ctx context.Context, measurementIDs []int64) (groundmeas.RhoFCoefficients, error) {
	if len(measurementIDs) == 0 {
		return groundmeas.RhoFCoefficients{}, errors.E(errors.Validation, "no measurement ids given")
	}

	spectra, err := s.RealImagOverFrequencyMulti(ctx, measurementIDs)
	if err != nil {
		return groundmeas.RhoFCoefficients{}, err
	}

	depthRho := make([]map[float64]float64, len(measurementIDs))
	depthSets := make([][]float64, len(measurementIDs))
	for i, id := range measurementIDs {
		byDepth, err := s.soilResistivityByDepth(ctx, id)
		if err != nil {
			return groundmeas.RhoFCoefficients{}, err
		}
		depthRho[i] = byDepth
		for depth := range byDepth {
			depthSets[i] = append(depthSets[i], depth)
		}
		sort.Float64s(depthSets[i])
	}

	chosen, err := groundmeas.SelectDepths(depthSets)
	if err != nil {
		return groundmeas.RhoFCoefficients{}, err
	}

	var points []groundmeas.RhoFPoint
	for i, id := range measurementIDs {
		rho := depthRho[i][chosen[i]]
		freqs := make([]float64, 0, len(spectra[id]))
		for f := range spectra[id] {
			freqs = append(freqs, f)
		}
		sort.Float64s(freqs)
		for _, f := range freqs {
			ri := spectra[id][f]
			if ri.Real == nil || ri.Imag == nil {
				continue
			}
			points = append(points, groundmeas.RhoFPoint{
				RhoOhmM:     rho,
				FrequencyHz: f,
				Real:        *ri.Real,
				Imag:        *ri.Imag,
			})
		}
	}
	if len(points) == 0 {
		return groundmeas.RhoFCoefficients{}, errors.E(errors.Validation, "No overlapping impedance data available for fitting")
	}

	coeffs, err := groundmeas.FitRhoF(points, s.backend)
	if err != nil {
		return groundmeas.RhoFCoefficients{}, err
	}
	return coeffs, nil
}

// soilResistivityByDepth maps measurement depth to soil resistivity for
// one measurement. No usable items is a validation failure: the rho-f
// fit cannot proceed without a resistivity.
func (s *Service) soilResistivityByDepth(ctx context.Context, measurementID int64) (map[float64]float64, error) {
	items, _, err := s.items.ReadItemsBy(ctx, store.Filters{
		"measurement_id":   measurementID,
		"measurement_type": string(models.SoilResistivity),
	})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load soil resistivity data for measurement %d", measurementID)
	}
	byDepth := make(map[float64]float64)
	for _, item := range items {
		if item.MeasurementDistanceM == nil || item.Value == nil || math.IsNaN(*item.Value) {
			continue
		}
		byDepth[*item.MeasurementDistanceM] = *item.Value
	}
	if len(byDepth) == 0 {
		return nil, errors.Ef(errors.Validation, "No soil_resistivity data for measurement %d", measurementID)
	}
	return byDepth, nil
}
