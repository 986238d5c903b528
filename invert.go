package groundmeas

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"

	"github.com/Ce1ectric/groundmeas/internal/errors"
)

// InversionEngine selects the nonlinear least-squares scheme.
type InversionEngine int

const (
	// GaussNewton is the damped Gauss-Newton iteration with a numerical
	// Jacobian.
	GaussNewton InversionEngine = iota
	// LevenbergMarquardt delegates to the lm package.
	LevenbergMarquardt
)

// ParseInversionEngine maps an engine name to its enum value.
func ParseInversionEngine(name string) (InversionEngine, error) {
	switch name {
	case "", "gauss-newton":
		return GaussNewton, nil
	case "lm", "levenberg-marquardt":
		return LevenbergMarquardt, nil
	}
	return 0, errors.Ef(errors.Validation, "unsupported inversion engine %q", name)
}

// CurvePoint is one apparent-resistivity sample of a sounding curve.
type CurvePoint struct {
	SpacingM float64 `json:"spacing_m"`
	RhoOhmM  float64 `json:"rho_ohm_m"`
}

// InversionConfig parameterizes a layered-earth inversion.
type InversionConfig struct {
	Forward            ForwardOptions
	InitialRhos        []float64
	InitialThicknesses []float64
	MaxIterations      int     // default 50
	Damping            float64 // default 1e-3
	Engine             InversionEngine
	Backend            Backend
}

// InversionResult is the recovered model with misfit diagnostics and the
// observed/predicted curve pair for external plotting.
type InversionResult struct {
	Model        LayeredEarthModel `json:"model"`
	RhoLayers    []float64         `json:"rho_layers"`
	ThicknessesM []float64         `json:"thicknesses_m"`
	Misfit       float64           `json:"misfit"`
	// Iterations is reported by the Gauss-Newton engine only; the
	// Levenberg-Marquardt engine does not expose its count and leaves
	// this zero.
	Iterations int          `json:"iterations"`
	Converged  bool         `json:"converged"`
	Observed   []CurvePoint `json:"observed_curve"`
	Predicted  []CurvePoint `json:"predicted_curve"`
}

const convergenceTol = 1e-6

// InvertLayeredEarth recovers per-layer resistivities and thicknesses
// minimizing the squared misfit between the forward response and the
// observed apparent resistivities. The last layer is semi-infinite and
// its thickness is not part of the parameter vector.
func InvertLayeredEarth(observed []CurvePoint, cfg InversionConfig) (InversionResult, error) {
	nLayers := len(cfg.InitialRhos)
	if nLayers == 0 {
		return InversionResult{}, errors.E(errors.Validation, "initial layer resistivities are required")
	}
	if len(cfg.InitialThicknesses) != nLayers-1 {
		return InversionResult{}, errors.Ef(errors.Validation,
			"expected %d initial thicknesses for %d layers, got %d", nLayers-1, nLayers, len(cfg.InitialThicknesses))
	}
	nParams := 2*nLayers - 1
	if len(observed) < nParams {
		return InversionResult{}, errors.Ef(errors.Validation,
			"%d observations cannot constrain %d parameters", len(observed), nParams)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.Damping <= 0 {
		cfg.Damping = 1e-3
	}
	if cfg.Backend.Solve == nil {
		cfg.Backend = DefaultBackend()
	}

	spacings := make([]float64, len(observed))
	obs := make([]float64, len(observed))
	for i, o := range observed {
		if o.SpacingM <= 0 {
			return InversionResult{}, errors.E(errors.Validation, "observed spacings must be positive")
		}
		spacings[i] = o.SpacingM
		obs[i] = o.RhoOhmM
	}

	params := make([]float64, 0, nParams)
	params = append(params, cfg.InitialRhos...)
	params = append(params, cfg.InitialThicknesses...)

	var (
		iterations int
		converged  bool
		err        error
	)
	switch cfg.Engine {
	case GaussNewton:
		params, iterations, converged, err = gaussNewton(params, nLayers, spacings, obs, cfg)
	case LevenbergMarquardt:
		params, err = lmInvert(params, nLayers, spacings, obs, cfg)
		converged = err == nil
	default:
		return InversionResult{}, errors.Ef(errors.Validation, "unsupported inversion engine %d", cfg.Engine)
	}
	if err != nil {
		return InversionResult{}, err
	}

	rhos := params[:nLayers]
	thicknesses := params[nLayers:]
	model, err := NewLayeredEarthModel(rhos, thicknesses)
	if err != nil {
		return InversionResult{}, errors.Wrap(errors.NumericSolve, err, "inversion produced an invalid layer stack")
	}
	pred, err := model.Apparent(spacings, cfg.Forward)
	if err != nil {
		return InversionResult{}, errors.Wrap(errors.NumericSolve, err, "forward evaluation of the recovered model failed")
	}

	res := InversionResult{
		Model:        model,
		RhoLayers:    append([]float64(nil), rhos...),
		ThicknessesM: append([]float64(nil), thicknesses...),
		Iterations:   iterations,
		Converged:    converged,
		Observed:     observed,
	}
	var sq float64
	for i, p := range pred {
		res.Predicted = append(res.Predicted, CurvePoint{SpacingM: spacings[i], RhoOhmM: p})
		d := p - obs[i]
		sq += d * d
	}
	res.Misfit = math.Sqrt(sq / float64(len(pred)))
	return res, nil
}

func forwardParams(params []float64, nLayers int, spacings []float64, opts ForwardOptions) ([]float64, error) {
	model, err := NewLayeredEarthModel(params[:nLayers], params[nLayers:])
	if err != nil {
		return nil, err
	}
	return model.Apparent(spacings, opts)
}

func gaussNewton(params []float64, nLayers int, spacings, obs []float64, cfg InversionConfig) ([]float64, int, bool, error) {
	nParams := len(params)
	m := len(obs)

	residual := func(p []float64) ([]float64, error) {
		pred, err := forwardParams(p, nLayers, spacings, cfg.Forward)
		if err != nil {
			return nil, errors.Wrap(errors.NumericSolve, err, "forward model evaluation failed")
		}
		r := make([]float64, m)
		for i := range r {
			r[i] = obs[i] - pred[i]
		}
		return r, nil
	}

	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		r, err := residual(params)
		if err != nil {
			return nil, iter, false, err
		}

		// forward-difference Jacobian of the residual, one column per
		// parameter
		jac := mat.NewDense(m, nParams, nil)
		for j := 0; j < nParams; j++ {
			step := 1e-6 * math.Max(math.Abs(params[j]), 1e-6)
			pj := append([]float64(nil), params...)
			pj[j] += step
			rj, err := residual(pj)
			if err != nil {
				return nil, iter, false, err
			}
			for i := 0; i < m; i++ {
				jac.Set(i, j, (rj[i]-r[i])/step)
			}
		}

		// damped normal equations (J^T J + damping I) dp = J^T r, solved
		// in augmented least-squares form for numerical stability
		aug := mat.NewDense(m+nParams, nParams, nil)
		bAug := mat.NewVecDense(m+nParams, nil)
		sqrtDamping := math.Sqrt(cfg.Damping)
		for i := 0; i < m; i++ {
			for j := 0; j < nParams; j++ {
				aug.Set(i, j, -jac.At(i, j))
			}
			bAug.SetVec(i, r[i])
		}
		for j := 0; j < nParams; j++ {
			aug.Set(m+j, j, sqrtDamping)
		}
		delta, err := cfg.Backend.Solve(aug, bAug)
		if err != nil {
			return nil, iter, false, errors.Wrap(errors.NumericSolve, err, "damped normal equations solve failed")
		}

		// apply the update, clamped so resistivities and thicknesses stay
		// positive and no parameter jumps by more than a decade
		var stepNorm, paramNorm float64
		for j := range params {
			next := params[j] + delta[j]
			if next <= 0 {
				next = params[j] / 2
			} else if next > 10*params[j] {
				next = 10 * params[j]
			}
			d := next - params[j]
			stepNorm += d * d
			paramNorm += params[j] * params[j]
			params[j] = next
		}
		if math.Sqrt(stepNorm) < convergenceTol*(math.Sqrt(paramNorm)+convergenceTol) {
			return params, iter + 1, true, nil
		}
	}
	return params, iter, false, nil
}

func lmInvert(params []float64, nLayers int, spacings, obs []float64, cfg InversionConfig) (out []float64, err error) {
	fnc := func(dst, x []float64) {
		p := make([]float64, len(x))
		for i, v := range x {
			p[i] = math.Abs(v)
		}
		pred, ferr := forwardParams(p, nLayers, spacings, cfg.Forward)
		if ferr != nil {
			panic(fmt.Sprintf("forward model evaluation failed: %v", ferr))
		}
		for i := range dst {
			dst[i] = pred[i] - obs[i]
		}
	}
	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        len(params),
		Size:       len(obs),
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: params,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	// the lm package panics on singular matrices
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Ef(errors.NumericSolve, "LM inversion failed: %v", r)
		}
	}()

	res, lmErr := lm.LM(problem, &lm.Settings{Iterations: cfg.MaxIterations, ObjectiveTol: 1e-16})
	if lmErr != nil {
		return nil, errors.Wrap(errors.NumericSolve, lmErr, "LM inversion failed")
	}
	out = make([]float64, len(res.X))
	for i, v := range res.X {
		out[i] = math.Abs(v)
	}
	return out, nil
}
