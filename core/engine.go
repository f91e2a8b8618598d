package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	DefaultNmesh = 1000
	DefaultNsim  = 10000
)

// DefaultLevels are the confidence levels used when a request does not name any
func DefaultLevels() []float64 {
	return []float64{0.01, 0.05}
}

// Error kinds surfaced by the engine. Everything is synchronous, there is no
// retry: a failed collaborator call aborts the whole computation.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrData          = errors.New("data error")
	ErrCollaborator  = errors.New("collaborator failure")
)

// ParamKind tags how the parameter rows were obtained. The variant is resolved
// once at the boundary; the engine downstream never dispatches on runtime type.
type ParamKind int

const (
	Specification ParamKind = iota
	PointEstimate
	PosteriorEnsemble
)

// Parameters is one row per draw. Specification and PointEstimate carry a
// single row; PosteriorEnsemble carries one row per posterior draw.
type Parameters struct {
	Kind  ParamKind
	Draws [][]float64
}

func (p Parameters) validate() error {
	if len(p.Draws) == 0 {
		return fmt.Errorf("%w: at least one parameter vector is required", ErrConfiguration)
	}
	if p.Kind != PosteriorEnsemble && len(p.Draws) != 1 {
		return fmt.Errorf("%w: %d parameter vectors given for a single-estimate input", ErrConfiguration, len(p.Draws))
	}
	return nil
}

// DensityEvaluator produces the predictive density of the outcome evaluated at
// each grid point. Rows correspond to in-sample time points when inSample is
// true, otherwise to the single one-step-ahead forecast.
type DensityEvaluator interface {
	PredictiveDensity(ctx context.Context, params [][]float64, grid []float64, history []float64, inSample bool) (*mat.Dense, error)
}

// PathSimulator returns a (nahead x nsim) matrix of simulated outcome draws
// conditioned on the parameters and history.
type PathSimulator interface {
	SimulatePaths(ctx context.Context, params [][]float64, history []float64, nahead, nsim int) (*mat.Dense, error)
}

// RiskSettings is the explicit configuration for one computation. Zero values
// take the documented defaults; validation happens once at entry.
type RiskSettings struct {
	Levels     []float64 `json:"levels"`
	Nahead     int       `json:"nahead"`
	Nmesh      int       `json:"nmesh"`
	Nsim       int       `json:"nsim"`
	InSample   bool      `json:"insample"`
	ES         bool      `json:"es"`
	Cumulative bool      `json:"cumulative"`
}

func (s *RiskSettings) normalize(kind ParamKind) error {
	if len(s.Levels) == 0 {
		s.Levels = DefaultLevels()
	}
	for _, a := range s.Levels {
		if a <= 0 || a >= 1 {
			return fmt.Errorf("%w: confidence level %v is outside (0,1)", ErrConfiguration, a)
		}
	}
	if s.Nmesh == 0 {
		s.Nmesh = DefaultNmesh
	}
	if s.Nmesh < 2 {
		return fmt.Errorf("%w: nmesh must be at least 2, got %d", ErrConfiguration, s.Nmesh)
	}
	if s.Nahead == 0 {
		s.Nahead = 1
	}
	if s.Nahead < 1 {
		return fmt.Errorf("%w: nahead must be at least 1, got %d", ErrConfiguration, s.Nahead)
	}
	if s.Nsim < 0 {
		return fmt.Errorf("%w: nsim must be positive, got %d", ErrConfiguration, s.Nsim)
	}
	if s.Nsim == 0 {
		// a posterior ensemble provides its own averaging, one path per draw
		if kind == PosteriorEnsemble {
			s.Nsim = 1
		} else {
			s.Nsim = DefaultNsim
		}
	}
	if s.Cumulative && s.InSample {
		return fmt.Errorf("%w: cumulative aggregation is only defined for out-of-sample measures", ErrConfiguration)
	}
	return nil
}

// totalPaths is the number of simulated paths requested from the simulator.
// For an ensemble the configured count is per posterior draw.
func (s *RiskSettings) totalPaths(kind ParamKind, ndraws int) int {
	if kind == PosteriorEnsemble {
		return s.Nsim * ndraws
	}
	return s.Nsim
}

// RiskRequest bundles everything one computation needs. Structures are created
// fresh per invocation, nothing persists across calls.
type RiskRequest struct {
	History  []float64
	Params   Parameters
	Settings RiskSettings
}

// RiskArtifact is the immutable output: VaR (and optionally ES) with one row
// per time point or horizon step and one column per confidence level.
type RiskArtifact struct {
	Levels    []float64
	RowLabels []string
	VaR       *mat.Dense
	ES        *mat.Dense // nil unless requested
}

// Summary renders the artifact as a plain table, one row per time point or
// horizon step.
func (a *RiskArtifact) Summary() string {
	var b strings.Builder
	b.WriteString("level")
	for _, alpha := range a.Levels {
		fmt.Fprintf(&b, "\tVaR %.3f", alpha)
		if a.ES != nil {
			fmt.Fprintf(&b, "\tES %.3f", alpha)
		}
	}
	b.WriteByte('\n')
	for r, label := range a.RowLabels {
		b.WriteString(label)
		for i := range a.Levels {
			fmt.Fprintf(&b, "\t%.6f", a.VaR.At(r, i))
			if a.ES != nil {
				fmt.Fprintf(&b, "\t%.6f", a.ES.At(r, i))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RiskEngine computes VaR and ES against a predictive-density collaborator and
// a path-simulation collaborator.
type RiskEngine struct {
	density   DensityEvaluator
	simulator PathSimulator
}

func NewRiskEngine(density DensityEvaluator, simulator PathSimulator) *RiskEngine {
	return &RiskEngine{density: density, simulator: simulator}
}

// Compute runs the full risk-measure pipeline. In-sample mode yields one row
// per history point; out-of-sample mode yields one row per horizon step, where
// step 1 always comes from the density grid and the remaining steps from
// simulated paths.
func (e *RiskEngine) Compute(ctx context.Context, req RiskRequest) (*RiskArtifact, error) {
	settings := req.Settings
	if err := req.Params.validate(); err != nil {
		return nil, err
	}
	if err := settings.normalize(req.Params.Kind); err != nil {
		return nil, err
	}

	grid, dx, err := BuildGrid(req.History, settings.Nmesh)
	if err != nil {
		return nil, err
	}

	density, err := e.density.PredictiveDensity(ctx, req.Params.Draws, grid, req.History, settings.InSample)
	if err != nil {
		return nil, fmt.Errorf("%w: predictive density: %w", ErrCollaborator, err)
	}

	densRows, densCols := density.Dims()
	if densCols != settings.Nmesh {
		return nil, fmt.Errorf("%w: density has %d columns, grid has %d points", ErrCollaborator, densCols, settings.Nmesh)
	}
	wantRows := 1
	if settings.InSample {
		wantRows = len(req.History)
	}
	if densRows != wantRows {
		return nil, fmt.Errorf("%w: density has %d rows, expected %d", ErrCollaborator, densRows, wantRows)
	}

	cdf := Cumulate(density, dx)

	rows := settings.Nahead
	if settings.InSample {
		rows = len(req.History)
	}

	varMatrix := mat.NewDense(rows, len(settings.Levels), nil)
	var esMatrix *mat.Dense
	if settings.ES {
		esMatrix = mat.NewDense(rows, len(settings.Levels), nil)
	}

	// grid-based rows: every in-sample time point, or horizon step 1 only
	for r := range densRows {
		for i, alpha := range settings.Levels {
			v := InvertQuantile(cdf.RawRowView(r), grid, alpha)
			varMatrix.Set(r, i, v)
			if esMatrix != nil {
				esMatrix.Set(r, i, ExpectedShortfall(density.RawRowView(r), grid, dx, alpha, v))
			}
		}
	}

	// horizon steps beyond the first are estimated from simulated paths
	if !settings.InSample && settings.Nahead > 1 {
		npaths := settings.totalPaths(req.Params.Kind, len(req.Params.Draws))
		draws, err := e.simulator.SimulatePaths(ctx, req.Params.Draws, req.History, settings.Nahead, npaths)
		if err != nil {
			return nil, fmt.Errorf("%w: path simulation: %w", ErrCollaborator, err)
		}
		drawRows, drawCols := draws.Dims()
		if drawRows != settings.Nahead || drawCols != npaths {
			return nil, fmt.Errorf("%w: simulated draws are %dx%d, expected %dx%d", ErrCollaborator, drawRows, drawCols, settings.Nahead, npaths)
		}

		if settings.Cumulative {
			CumulateDraws(draws)
		}

		for j := 1; j < settings.Nahead; j++ {
			for i, alpha := range settings.Levels {
				v, es := EmpiricalRisk(draws.RawRowView(j), alpha)
				varMatrix.Set(j, i, v)
				if esMatrix != nil {
					esMatrix.Set(j, i, es)
				}
			}
		}
	}

	return &RiskArtifact{
		Levels:    settings.Levels,
		RowLabels: rowLabels(settings.InSample, rows),
		VaR:       varMatrix,
		ES:        esMatrix,
	}, nil
}

// rowLabels are plain indices; calendar alignment is a decoration applied by
// the caller, the engine never knows about it.
func rowLabels(inSample bool, rows int) []string {
	labels := make([]string, rows)
	for r := range rows {
		if inSample {
			labels[r] = strconv.Itoa(r + 1)
		} else {
			labels[r] = fmt.Sprintf("h=%d", r+1)
		}
	}
	return labels
}
