package core

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	ex "github.com/kiprutobrian/MSGARCH/extensions"
)

// standard normal references: 5% quantile and 5% expected shortfall
const (
	normalVaR05 = -1.6449
	normalES05  = -2.0627
)

func standardNormalData(t *testing.T, n int) []float64 {
	t.Helper()
	d := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(7, 0)}
	data := make([]float64, n)
	for i := range n {
		data[i] = d.Rand()
	}
	return data
}

func unitNormalModel(seed uint64) *ConditionalModel {
	return &ConditionalModel{Variance: ConstantVariance, DistType: StandardNormal, Seed: seed}
}

func unitNormalRequest(t *testing.T, settings RiskSettings) RiskRequest {
	t.Helper()
	return RiskRequest{
		History:  standardNormalData(t, 500),
		Params:   Parameters{Kind: PointEstimate, Draws: [][]float64{{0, 1}}},
		Settings: settings,
	}
}

func TestComputeOneStepVaRMatchesNormalQuantile(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	artifact, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{
		Levels: []float64{0.05},
		Nahead: 1,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "row count", 1, len(artifact.RowLabels))
	ex.AssertAreEqual(t, "row label", "h=1", artifact.RowLabels[0])
	ex.AssertInDelta(t, "one-step 5% VaR", normalVaR05, artifact.VaR.At(0, 0), 0.03)
	ex.AssertNillability(t, "ES matrix", true, artifact.ES)
}

func TestComputeOneStepESMatchesNormalShortfall(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	artifact, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{
		Levels: []float64{0.05},
		Nahead: 1,
		ES:     true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertNillability(t, "ES matrix", false, artifact.ES)
	ex.AssertInDelta(t, "one-step 5% ES", normalES05, artifact.ES.At(0, 0), 0.05)
}

func TestComputeVaRPropertiesAcrossLevels(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	levels := []float64{0.01, 0.025, 0.05, 0.1}
	req := unitNormalRequest(t, RiskSettings{Levels: levels, Nahead: 1, ES: true})
	artifact, err := engine.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sd := stat.StdDev(req.History, nil)
	xmin := slices.Min(req.History) - sd
	xmax := slices.Max(req.History) + sd

	for i := range levels {
		v := artifact.VaR.At(0, i)
		if v < xmin || v > xmax {
			t.Errorf("VaR at level %v outside grid bounds: %v not in [%v, %v]", levels[i], v, xmin, xmax)
		}
		if es := artifact.ES.At(0, i); es > v {
			t.Errorf("ES %v exceeds VaR %v at level %v", es, v, levels[i])
		}
		if i > 0 && v < artifact.VaR.At(0, i-1) {
			t.Errorf("VaR should be non-decreasing in alpha: %v < %v", v, artifact.VaR.At(0, i-1))
		}
	}
}

func TestComputeInSampleRowCount(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	req := unitNormalRequest(t, RiskSettings{InSample: true})
	artifact, err := engine.Compute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "in-sample row count", len(req.History), len(artifact.RowLabels))
	ex.AssertAreEqual(t, "first in-sample label", "1", artifact.RowLabels[0])

	rows, cols := artifact.VaR.Dims()
	ex.AssertAreEqual(t, "VaR rows", len(req.History), rows)
	ex.AssertAreEqual(t, "VaR cols", 2, cols) // default levels
}

func TestComputeRejectsCumulativeInSample(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	_, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{
		InSample:   true,
		Cumulative: true,
	}))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("cumulative in-sample should fail with a configuration error, got %v", err)
	}
}

func TestComputeCumulativeHorizonScalesWithSqrtTime(t *testing.T) {
	model := unitNormalModel(42)
	engine := NewRiskEngine(model, model)

	artifact, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{
		Levels:     []float64{0.05},
		Nahead:     5,
		Nsim:       20000,
		ES:         true,
		Cumulative: true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "horizon row count", 5, len(artifact.RowLabels))
	ex.AssertAreEqual(t, "last horizon label", "h=5", artifact.RowLabels[4])

	// under iid unit normals the cumulative 5-period quantile is sqrt(5)
	// times the one-period quantile
	var1 := artifact.VaR.At(0, 0)
	var5 := artifact.VaR.At(4, 0)
	ex.AssertInDelta(t, "sqrt-time scaling of cumulative VaR", math.Sqrt(5), var5/var1, 0.25)

	// cumulative risk magnitude must grow with the horizon
	for j := 1; j < 5; j++ {
		if artifact.VaR.At(j, 0) > artifact.VaR.At(j-1, 0) {
			t.Errorf("cumulative VaR should get more extreme with horizon: step %d %v vs %v",
				j+1, artifact.VaR.At(j, 0), artifact.VaR.At(j-1, 0))
		}
		if es := artifact.ES.At(j, 0); es > artifact.VaR.At(j, 0) {
			t.Errorf("ES %v exceeds VaR %v at step %d", es, artifact.VaR.At(j, 0), j+1)
		}
	}
}

func TestComputeIsIdempotentWithSeededSimulator(t *testing.T) {
	settings := RiskSettings{Levels: []float64{0.01, 0.05}, Nahead: 3, Nsim: 5000, ES: true}

	run := func() *RiskArtifact {
		model := unitNormalModel(99)
		engine := NewRiskEngine(model, model)
		artifact, err := engine.Compute(context.Background(), unitNormalRequest(t, settings))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return artifact
	}

	first := run()
	second := run()

	if !mat.Equal(first.VaR, second.VaR) {
		t.Error("VaR matrices differ between identical seeded runs")
	}
	if !mat.Equal(first.ES, second.ES) {
		t.Error("ES matrices differ between identical seeded runs")
	}
}

type failingDensity struct{}

func (failingDensity) PredictiveDensity(ctx context.Context, params [][]float64, grid []float64, history []float64, inSample bool) (*mat.Dense, error) {
	return nil, errors.New("density backend down")
}

type fixedShapeDensity struct{ rows, cols int }

func (d fixedShapeDensity) PredictiveDensity(ctx context.Context, params [][]float64, grid []float64, history []float64, inSample bool) (*mat.Dense, error) {
	return mat.NewDense(d.rows, d.cols, nil), nil
}

type recordingSimulator struct {
	npaths int
}

func (s *recordingSimulator) SimulatePaths(ctx context.Context, params [][]float64, history []float64, nahead, nsim int) (*mat.Dense, error) {
	s.npaths = nsim
	return mat.NewDense(nahead, nsim, nil), nil
}

func TestComputePropagatesCollaboratorFailures(t *testing.T) {
	engine := NewRiskEngine(failingDensity{}, unitNormalModel(0))

	_, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{}))
	if !errors.Is(err, ErrCollaborator) {
		t.Fatalf("density failure should surface as a collaborator failure, got %v", err)
	}
}

func TestComputeRejectsMismatchedDensityShape(t *testing.T) {
	engine := NewRiskEngine(fixedShapeDensity{rows: 3, cols: 100}, unitNormalModel(0))

	_, err := engine.Compute(context.Background(), unitNormalRequest(t, RiskSettings{Nmesh: 100}))
	if !errors.Is(err, ErrCollaborator) {
		t.Fatalf("row mismatch should surface as a collaborator failure, got %v", err)
	}
}

func TestComputeEnsembleDefaultsToOnePathPerDraw(t *testing.T) {
	sim := &recordingSimulator{}
	engine := NewRiskEngine(unitNormalModel(0), sim)

	draws := [][]float64{{0, 1}, {0, 1.1}, {0, 0.9}}
	_, err := engine.Compute(context.Background(), RiskRequest{
		History:  standardNormalData(t, 200),
		Params:   Parameters{Kind: PosteriorEnsemble, Draws: draws},
		Settings: RiskSettings{Nahead: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ex.AssertAreEqual(t, "simulated path count", len(draws), sim.npaths)
}

func TestComputeRejectsMultipleDrawsForPointEstimate(t *testing.T) {
	model := unitNormalModel(0)
	engine := NewRiskEngine(model, model)

	_, err := engine.Compute(context.Background(), RiskRequest{
		History: standardNormalData(t, 100),
		Params:  Parameters{Kind: PointEstimate, Draws: [][]float64{{0, 1}, {0, 2}}},
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("multiple draws for a point estimate should be a configuration error, got %v", err)
	}
}
