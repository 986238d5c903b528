package analytics

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
)

// JSONFloat is a float64 that marshals +/-Inf as strings so the
// inverse-distance extrapolation result (distance = infinity) stays
// JSON-encodable.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 1) {
		return []byte(`"inf"`), nil
	}
	if math.IsInf(v, -1) {
		return []byte(`"-inf"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *JSONFloat) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"inf"`:
		*f = JSONFloat(math.Inf(1))
		return nil
	case `"-inf"`:
		*f = JSONFloat(math.Inf(-1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// ProfileResult is the reduced representative value of a distance
// profile, together with the sweep it was derived from.
type ProfileResult struct {
	Value      float64                 `json:"result_value"`
	DistanceM  JSONFloat               `json:"result_distance_m"`
	Algorithm  string                  `json:"algorithm"`
	Gradient   *float64                `json:"gradient,omitempty"`
	WindowSize *int                    `json:"window_size,omitempty"`
	Points     []models.DistanceRecord `json:"points"`
}

// ProfileOptions carries per-algorithm parameters for
// DistanceProfileValue.
type ProfileOptions struct {
	// Window is the sliding-window length for the minimum_stddev
	// algorithm; 0 means the default.
	Window int
}

// DistanceProfileValue reduces the distance profile of the given
// measurement type to a representative far-earth value using the chosen
// algorithm.
func (s *Service) DistanceProfileValue(ctx context.Context, measurementID int64, measurementType models.MeasurementType, algorithm groundmeas.ReductionAlgorithm, opts ProfileOptions) (ProfileResult, error) {
	items, err := s.distanceItems(ctx, measurementID, measurementType)
	if err != nil {
		return ProfileResult{}, err
	}

	var points []groundmeas.ProfilePoint
	var records []models.DistanceRecord
	for _, item := range items {
		if item.MeasurementDistanceM == nil || item.Value == nil {
			continue
		}
		points = append(points, groundmeas.ProfilePoint{
			DistanceM:          *item.MeasurementDistanceM,
			Value:              *item.Value,
			InjectionDistanceM: item.DistanceToCurrentInjectionM,
		})
		records = append(records, models.DistanceRecord{
			DistanceM:   *item.MeasurementDistanceM,
			Value:       *item.Value,
			FrequencyHz: item.FrequencyHz,
		})
	}
	if len(points) == 0 {
		return ProfileResult{}, errors.Ef(errors.Validation, "No %s data with distances for measurement %d", measurementType, measurementID)
	}

	reduced, err := groundmeas.ReduceProfile(points, algorithm, groundmeas.ReduceOptions{Window: opts.Window})
	if err != nil {
		return ProfileResult{}, err
	}
	return ProfileResult{
		Value:      reduced.Value,
		DistanceM:  JSONFloat(reduced.DistanceM),
		Algorithm:  algorithm.String(),
		Gradient:   reduced.Gradient,
		WindowSize: reduced.WindowSize,
		Points:     records,
	}, nil
}
