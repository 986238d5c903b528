// Package analytics is the id-keyed analytics service over stored
// earthing measurements: frequency- and distance-domain extraction,
// model fitting, soil profiles, layered-earth inversion and split-factor
// calculations. All persistence access goes through injected readers;
// the service never writes.
package analytics

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ce1ectric/groundmeas"
	"github.com/Ce1ectric/groundmeas/internal/errors"
	"github.com/Ce1ectric/groundmeas/pkg/models"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

// Service runs analytics over injected measurement readers.
type Service struct {
	items        store.ItemReader
	measurements store.MeasurementReader
	backend      groundmeas.Backend
	log          *log.Logger
}

// Options holds the dependencies for a new Service. Items is required;
// Measurements is only needed for location-scoped batch reads. A zero
// Backend resolves to the default and a nil Logger to log.Default().
type Options struct {
	Items        store.ItemReader
	Measurements store.MeasurementReader
	Backend      groundmeas.Backend
	Logger       *log.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Backend.Solve == nil {
		opts.Backend = groundmeas.DefaultBackend()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Service{
		items:        opts.Items,
		measurements: opts.Measurements,
		backend:      opts.Backend,
		log:          opts.Logger,
	}
}

func (s *Service) warnf(format string, args ...any) {
	s.log.Printf("WARNING: "+format, args...)
}

// ImpedanceOverFrequency maps frequency (Hz) to impedance magnitude
// (Ohm) for a single measurement. Items without a frequency or a usable
// value are skipped with a warning; an id without any earthing_impedance
// items yields an empty map with a warning.
func (s *Service) ImpedanceOverFrequency(ctx context.Context, measurementID int64) (map[float64]float64, error) {
	items, _, err := s.items.ReadItemsBy(ctx, store.Filters{
		"measurement_id":   measurementID,
		"measurement_type": string(models.EarthingImpedance),
	})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load impedance data for measurement %d", measurementID)
	}
	if len(items) == 0 {
		s.warnf("No earthing_impedance measurements found for measurement_id=%d", measurementID)
		return map[float64]float64{}, nil
	}

	out := make(map[float64]float64)
	for _, item := range items {
		if item.FrequencyHz == nil {
			s.warnf("MeasurementItem id=%d missing frequency_hz; skipping", item.ID)
			continue
		}
		if item.Value == nil || math.IsNaN(*item.Value) {
			s.warnf("Could not convert item %d to floats; skipping", item.ID)
			continue
		}
		// last one wins on duplicate frequencies
		out[*item.FrequencyHz] = *item.Value
	}
	return out, nil
}

// ImpedanceOverFrequencyMulti is ImpedanceOverFrequency for several
// measurements, keyed by measurement id. Per-id content agrees with the
// single-id call. The ids are loaded concurrently.
func (s *Service) ImpedanceOverFrequencyMulti(ctx context.Context, measurementIDs []int64) (map[int64]map[float64]float64, error) {
	out := make(map[int64]map[float64]float64, len(measurementIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range measurementIDs {
		id := id
		g.Go(func() error {
			m, err := s.ImpedanceOverFrequency(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RealImagOverFrequency maps frequency (Hz) to the complex impedance
// parts of a single measurement. A point survives with one side absent;
// a NaN on either side is treated as a conversion failure and the item
// is skipped with a warning.
func (s *Service) RealImagOverFrequency(ctx context.Context, measurementID int64) (map[float64]models.RealImag, error) {
	items, _, err := s.items.ReadItemsBy(ctx, store.Filters{
		"measurement_id":   measurementID,
		"measurement_type": string(models.EarthingImpedance),
	})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load impedance data for measurement %d", measurementID)
	}
	if len(items) == 0 {
		s.warnf("No earthing_impedance measurements found for measurement_id=%d", measurementID)
		return map[float64]models.RealImag{}, nil
	}

	out := make(map[float64]models.RealImag)
	for _, item := range items {
		if item.FrequencyHz == nil {
			s.warnf("MeasurementItem id=%d missing frequency_hz; skipping", item.ID)
			continue
		}
		if (item.ValueReal != nil && math.IsNaN(*item.ValueReal)) ||
			(item.ValueImag != nil && math.IsNaN(*item.ValueImag)) {
			s.warnf("Could not convert real/imag for item %d; skipping", item.ID)
			continue
		}
		out[*item.FrequencyHz] = models.RealImag{Real: item.ValueReal, Imag: item.ValueImag}
	}
	return out, nil
}

// RealImagOverFrequencyMulti is RealImagOverFrequency for several
// measurements, keyed by measurement id. The ids are loaded
// concurrently.
func (s *Service) RealImagOverFrequencyMulti(ctx context.Context, measurementIDs []int64) (map[int64]map[float64]models.RealImag, error) {
	out := make(map[int64]map[float64]models.RealImag, len(measurementIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range measurementIDs {
		id := id
		g.Go(func() error {
			m, err := s.RealImagOverFrequency(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValueOverDistance maps measurement distance (m) to value magnitude for
// items of the given type. Items without a distance or value are skipped
// silently; profile sweeps routinely carry partial rows.
func (s *Service) ValueOverDistance(ctx context.Context, measurementID int64, measurementType models.MeasurementType) (map[float64]float64, error) {
	items, err := s.distanceItems(ctx, measurementID, measurementType)
	if err != nil {
		return nil, err
	}
	out := make(map[float64]float64)
	for _, item := range items {
		if item.MeasurementDistanceM == nil || item.Value == nil {
			continue
		}
		out[*item.MeasurementDistanceM] = *item.Value
	}
	return out, nil
}

// ValueOverDistanceDetailed returns the distance profile as ordered
// records including the item frequency, for consumers that plot or
// tabulate the raw sweep.
func (s *Service) ValueOverDistanceDetailed(ctx context.Context, measurementID int64, measurementType models.MeasurementType) ([]models.DistanceRecord, error) {
	items, err := s.distanceItems(ctx, measurementID, measurementType)
	if err != nil {
		return nil, err
	}
	var out []models.DistanceRecord
	for _, item := range items {
		if item.MeasurementDistanceM == nil || item.Value == nil {
			continue
		}
		out = append(out, models.DistanceRecord{
			DistanceM:   *item.MeasurementDistanceM,
			Value:       *item.Value,
			FrequencyHz: item.FrequencyHz,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}

func (s *Service) distanceItems(ctx context.Context, measurementID int64, measurementType models.MeasurementType) ([]models.MeasurementItem, error) {
	items, _, err := s.items.ReadItemsBy(ctx, store.Filters{
		"measurement_id":   measurementID,
		"measurement_type": string(measurementType),
	})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load data for measurement %d", measurementID)
	}
	return items, nil
}
