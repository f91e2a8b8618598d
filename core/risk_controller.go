package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	m "github.com/kiprutobrian/MSGARCH/models"
)

// RunRiskMeasure resolves the request at the boundary (string codes to engine
// constants, config defaults for unset knobs), records the run when a database
// is attached, and computes the risk artifact.
func (sc *ServiceContext) RunRiskMeasure(settings m.RiskRequestSettings) (*m.RiskResponse, error) {
	start := time.Now()

	req, model, err := sc.resolveRequest(settings)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("paramKind", settings.ParamKind).
		Str("variance", settings.Variance).
		Str("distType", settings.DistType).
		Int("nahead", req.Settings.Nahead).
		Bool("insample", req.Settings.InSample).
		Bool("cumulative", req.Settings.Cumulative).
		Msg("received risk measure request")

	var runId int32
	if sc.PostgresConnection != nil {
		runId, err = sc.PostgresConnection.InsertRiskRunHistory(sc.Context, m.RiskRunHistory{
			ParamKind:     settings.ParamKind,
			VarianceModel: settings.Variance,
			DistType:      settings.DistType,
			Nahead:        req.Settings.Nahead,
			Nmesh:         req.Settings.Nmesh,
			Nsim:          req.Settings.Nsim,
			Seed:          settings.Seed,
			InSample:      req.Settings.InSample,
			Cumulative:    req.Settings.Cumulative,
		})
		if err != nil {
			log.Error().Err(err).Msg("error inserting risk run history")
			return nil, err
		}
	}

	engine := NewRiskEngine(model, model)
	artifact, err := engine.Compute(sc.Context, req)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("risk computation failed")
		return nil, sc.markRunAsFailure(runId, err)
	}

	if sc.PostgresConnection != nil {
		if err := sc.PostgresConnection.UpdateRiskRunAsSuccess(sc.Context, runId); err != nil {
			log.Error().Err(err).Int32("runId", runId).Msg("error updating risk run as success")
			return nil, err
		}
	}

	log.Info().
		Int("rows", len(artifact.RowLabels)).
		Int("levels", len(artifact.Levels)).
		Dur("elapsed", time.Since(start)).
		Msg("risk computation completed")

	return &m.RiskResponse{
		Levels:    artifact.Levels,
		RowLabels: artifact.RowLabels,
		VaR:       matrixRows(artifact.VaR),
		ES:        matrixRows(artifact.ES),
	}, nil
}

func (sc *ServiceContext) resolveRequest(settings m.RiskRequestSettings) (RiskRequest, *ConditionalModel, error) {
	kind, err := paramKindFromString(settings.ParamKind)
	if err != nil {
		return RiskRequest{}, nil, err
	}
	variance, err := varianceFromString(settings.Variance)
	if err != nil {
		return RiskRequest{}, nil, err
	}
	distType, err := distTypeFromString(settings.DistType)
	if err != nil {
		return RiskRequest{}, nil, err
	}

	riskSettings := RiskSettings{
		Levels:     settings.Levels,
		Nahead:     settings.Nahead,
		Nmesh:      settings.Nmesh,
		Nsim:       settings.Nsim,
		InSample:   settings.InSample,
		ES:         settings.ES,
		Cumulative: settings.Cumulative,
	}

	// service-level defaults; the ensemble keeps its one-path-per-draw default
	// unless a count is configured explicitly on the request
	if riskSettings.Nmesh == 0 {
		riskSettings.Nmesh = sc.Config.Risk.Nmesh
	}
	if len(riskSettings.Levels) == 0 {
		riskSettings.Levels = slices.Clone(sc.Config.Risk.Levels)
	}
	if riskSettings.Nsim == 0 && kind != PosteriorEnsemble {
		riskSettings.Nsim = sc.Config.Risk.Nsim
	}

	model := &ConditionalModel{
		Variance: variance,
		DistType: distType,
		Seed:     uint64(settings.Seed),
	}

	req := RiskRequest{
		History:  settings.Data,
		Params:   Parameters{Kind: kind, Draws: settings.Params},
		Settings: riskSettings,
	}

	return req, model, nil
}

func (sc *ServiceContext) markRunAsFailure(runId int32, cause error) error {
	if sc.PostgresConnection == nil {
		return cause
	}
	if err := sc.PostgresConnection.UpdateRiskRunAsFailure(sc.Context, runId, cause.Error()); err != nil {
		log.Error().Err(err).Int32("runId", runId).Msg("error updating risk run as failure")
	}
	return cause
}

func paramKindFromString(s string) (ParamKind, error) {
	switch s {
	case m.ParamKindSpecification:
		return Specification, nil
	case m.ParamKindPoint, "":
		return PointEstimate, nil
	case m.ParamKindEnsemble:
		return PosteriorEnsemble, nil
	default:
		return 0, fmt.Errorf("%w: unknown parameter kind %q", ErrConfiguration, s)
	}
}

func varianceFromString(s string) (int, error) {
	switch s {
	case m.VarianceConstant, "":
		return ConstantVariance, nil
	case m.VarianceGARCH:
		return GARCH, nil
	default:
		return 0, fmt.Errorf("%w: unknown variance model %q", ErrConfiguration, s)
	}
}

func distTypeFromString(s string) (int, error) {
	switch s {
	case m.DistStandardNormal, "":
		return StandardNormal, nil
	case m.DistStudentT:
		return StudentT, nil
	default:
		return 0, fmt.Errorf("%w: unknown distribution type %q", ErrConfiguration, s)
	}
}

func matrixRows(matrix *mat.Dense) [][]float64 {
	if matrix == nil {
		return nil
	}
	rows, _ := matrix.Dims()
	out := make([][]float64, rows)
	for r := range rows {
		out[r] = slices.Clone(matrix.RawRowView(r))
	}
	return out
}
