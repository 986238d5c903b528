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

// SoilResistivityProfile converts the stored soil resistivity sweep of a
// measurement into apparent resistivity over effective depth. For
// Wenner the electrode spacing a is measurement_distance_m; for
// Schlumberger AB/2 is measurement_distance_m and MN/2 is
// distance_to_current_injection_m. Resistance readings are scaled by
// the array's geometric factor; resistivity readings pass through.
func (s *Service) SoilResistivityProfile(ctx context.Context, measurementID int64, method groundmeas.ArrayMethod, kind groundmeas.ValueKind) ([]groundmeas.SoundingPoint, error) {
	items, _, err := s.items.ReadItemsBy(ctx, store.Filters{
		"measurement_id":   measurementID,
		"measurement_type": string(models.SoilResistivity),
	})
	if err != nil {
		return nil, errors.Wrapf(errors.DataAccess, err, "Failed to load soil resistivity data for measurement %d", measurementID)
	}

	var points []groundmeas.SoundingPoint
	for _, item := range items {
		if item.MeasurementDistanceM == nil || item.Value == nil {
			s.warnf("MeasurementItem id=%d missing spacing or value; skipping", item.ID)
			continue
		}
		var (
			point groundmeas.SoundingPoint
			perr  error
		)
		switch method {
		case groundmeas.Wenner:
			point, perr = groundmeas.ApparentResistivityWenner(*item.MeasurementDistanceM, *item.Value, kind)
		case groundmeas.Schlumberger:
			if item.DistanceToCurrentInjectionM == nil {
				return nil, errors.Ef(errors.Validation, "MeasurementItem id=%d has no MN/2 distance for Schlumberger", item.ID)
			}
			point, perr = groundmeas.ApparentResistivitySchlumberger(*item.MeasurementDistanceM, *item.DistanceToCurrentInjectionM, *item.Value, kind)
		default:
			return nil, errors.Ef(errors.Validation, "unsupported array method %d", method)
		}
		if perr != nil {
			return nil, perr
		}
		points = append(points, point)
	}
	if len(points) == 0 {
		return nil, errors.Ef(errors.Validation, "No soil_resistivity data for measurement %d", measurementID)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].DepthM < points[j].DepthM })
	return points, nil
}

// MultilayerSoilModel builds a layered earth model from per-layer
// resistivities and thicknesses.
func (s *Service) MultilayerSoilModel(rhosOhmM, thicknessesM []float64) (groundmeas.LayeredEarthModel, error) {
	return groundmeas.NewLayeredEarthModel(rhosOhmM, thicknessesM)
}

// LayeredEarthForward predicts apparent resistivity at the given
// spacings for a layer stack.
func (s *Service) LayeredEarthForward(spacingsM, rhosOhmM, thicknessesM []float64, opts groundmeas.ForwardOptions) ([]float64, error) {
	model, err := groundmeas.NewLayeredEarthModel(rhosOhmM, thicknessesM)
	if err != nil {
		return nil, err
	}
	return model.Apparent(spacingsM, opts)
}

// InvertOptions parameterizes InvertSoilResistivityLayers.
type InvertOptions struct {
	Method        groundmeas.ArrayMethod
	Kind          groundmeas.ValueKind
	Layers        int
	MaxIterations int
	Damping       float64
	Engine        groundmeas.InversionEngine
	ABIsFull      bool
	MNHalfM       float64
}

// InvertSoilResistivityLayers derives the observed apparent-resistivity
// curve of a measurement and inverts a layer stack from it. Initial
// guesses come from the observed curve: endpoint resistivities with
// geometric interpolation in between, and interface depths log-spaced
// over the sounded depth range.
func (s *Service) InvertSoilResistivityLayers(ctx context.Context, measurementID int64, opts InvertOptions) (groundmeas.InversionResult, error) {
	if opts.Layers < 1 {
		return groundmeas.InversionResult{}, errors.E(errors.Validation, "at least one layer is required")
	}
	profile, err := s.SoilResistivityProfile(ctx, measurementID, opts.Method, opts.Kind)
	if err != nil {
		return groundmeas.InversionResult{}, err
	}

	observed := make([]groundmeas.CurvePoint, len(profile))
	for i, p := range profile {
		observed[i] = groundmeas.CurvePoint{SpacingM: p.SpacingM, RhoOhmM: p.RhoOhmM}
	}
	sort.Slice(observed, func(i, j int) bool { return observed[i].SpacingM < observed[j].SpacingM })

	initRhos, initThicknesses := initialGuesses(observed, opts.Layers)
	cfg := groundmeas.InversionConfig{
		Forward: groundmeas.ForwardOptions{
			Method:   opts.Method,
			ABIsFull: opts.ABIsFull,
			MNHalfM:  opts.MNHalfM,
		},
		InitialRhos:        initRhos,
		InitialThicknesses: initThicknesses,
		MaxIterations:      opts.MaxIterations,
		Damping:            opts.Damping,
		Engine:             opts.Engine,
		Backend:            s.backend,
	}
	return groundmeas.InvertLayeredEarth(observed, cfg)
}

// initialGuesses builds starting parameters from the observed curve:
// the shallowest and deepest apparent resistivities anchor the first
// and last layer, intermediate layers interpolate geometrically, and
// layer interfaces are log-spaced across half the spacing range.
func initialGuesses(observed []groundmeas.CurvePoint, nLayers int) (rhos, thicknesses []float64) {
	first := observed[0].RhoOhmM
	last := observed[len(observed)-1].RhoOhmM
	if first <= 0 {
		first = 1
	}
	if last <= 0 {
		last = first
	}

	rhos = make([]float64, nLayers)
	for i := range rhos {
		if nLayers == 1 {
			rhos[i] = first
			continue
		}
		t := float64(i) / float64(nLayers-1)
		rhos[i] = first * math.Pow(last/first, t)
	}
	if nLayers == 1 {
		return rhos, nil
	}

	minDepth := observed[0].SpacingM / 2
	maxDepth := observed[len(observed)-1].SpacingM / 2
	if minDepth <= 0 || maxDepth <= minDepth {
		minDepth, maxDepth = 1, 10
	}
	depths := make([]float64, nLayers-1)
	for i := range depths {
		t := float64(i+1) / float64(nLayers)
		depths[i] = minDepth * math.Pow(maxDepth/minDepth, t)
	}
	thicknesses = make([]float64, nLayers-1)
	prev := 0.0
	for i, d := range depths {
		thicknesses[i] = d - prev
		prev = d
	}
	return rhos, thicknesses
}
