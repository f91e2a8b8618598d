package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	ex "github.com/kiprutobrian/MSGARCH/extensions"
)

const (
	StandardNormal = iota
	StudentT
)

const (
	ConstantVariance = iota
	GARCH
)

const (
	SimulationWorkers   = 8
	SimulationBatchSize = 2_048
)

// ConditionalModel is the built-in reference collaborator: a location-scale
// conditional-distribution model with Normal or Student-t innovations and
// either constant or GARCH(1,1) conditional variance. It implements both
// DensityEvaluator and PathSimulator.
//
// Parameter vector layouts:
//
//	ConstantVariance + StandardNormal: [mu, sigma]
//	ConstantVariance + StudentT:       [mu, sigma, nu]
//	GARCH + StandardNormal:            [mu, omega, arch, garch]
//	GARCH + StudentT:                  [mu, omega, arch, garch, nu]
type ConditionalModel struct {
	Variance int
	DistType int
	Seed     uint64
}

type modelParams struct {
	mu    float64
	sigma float64 // constant-variance scale
	omega float64
	arch  float64
	garch float64
	nu    float64 // student t degrees of freedom
}

func (m *ConditionalModel) parseParams(v []float64) (modelParams, error) {
	want := 2
	if m.Variance == GARCH {
		want = 4
	}
	if m.DistType == StudentT {
		want++
	}
	if len(v) != want {
		return modelParams{}, fmt.Errorf("expected %d parameters, got %d", want, len(v))
	}

	p := modelParams{mu: v[0]}
	rest := v[1:]
	if m.Variance == GARCH {
		p.omega, p.arch, p.garch = rest[0], rest[1], rest[2]
		rest = rest[3:]
		if p.omega <= 0 || p.arch < 0 || p.garch < 0 {
			return modelParams{}, fmt.Errorf("invalid variance recursion coefficients (omega %v, arch %v, garch %v)", p.omega, p.arch, p.garch)
		}
	} else {
		p.sigma = rest[0]
		rest = rest[1:]
		if p.sigma <= 0 {
			return modelParams{}, fmt.Errorf("scale must be positive, got %v", p.sigma)
		}
	}
	if m.DistType == StudentT {
		p.nu = rest[0]
		if p.nu <= 2 {
			return modelParams{}, fmt.Errorf("student t degrees of freedom must exceed 2, got %v", p.nu)
		}
	}

	return p, nil
}

// dist positions the innovation distribution at (mu, sigma). The Student-t
// scale is shrunk so sigma is the conditional standard deviation, not the raw
// scale parameter.
func (m *ConditionalModel) dist(p modelParams, sigma float64, src rand.Source) outcomeDist {
	if m.DistType == StudentT {
		return distuv.StudentsT{Mu: p.mu, Sigma: sigma * math.Sqrt((p.nu-2)/p.nu), Nu: p.nu, Src: src}
	}
	return distuv.Normal{Mu: p.mu, Sigma: sigma, Src: src}
}

type outcomeDist interface {
	Prob(x float64) float64
	Rand() float64
}

// filterVariances runs the conditional-variance recursion over the history.
// Returns the variance of each observation given its past plus the one-step
// ahead variance. The recursion starts at the unconditional variance, falling
// back to the sample variance when the process is not stationary.
func (m *ConditionalModel) filterVariances(p modelParams, history []float64) ([]float64, float64) {
	sig2 := make([]float64, len(history))
	if m.Variance == ConstantVariance {
		for t := range sig2 {
			sig2[t] = p.sigma * p.sigma
		}
		return sig2, p.sigma * p.sigma
	}

	cur := 0.0
	if persistence := p.arch + p.garch; persistence < 1 {
		cur = p.omega / (1 - persistence)
	}
	if cur <= 0 && len(history) > 1 {
		cur = stat.Variance(history, nil)
	}

	for t, y := range history {
		sig2[t] = cur
		eps := y - p.mu
		cur = p.omega + p.arch*eps*eps + p.garch*cur
	}
	return sig2, cur
}

// PredictiveDensity evaluates the model's predictive density at each grid
// point. For an ensemble of parameter draws the result is the equal-weight
// mixture of the per-draw densities.
func (m *ConditionalModel) PredictiveDensity(ctx context.Context, draws [][]float64, grid []float64, history []float64, inSample bool) (*mat.Dense, error) {
	rows := 1
	if inSample {
		rows = len(history)
	}

	out := mat.NewDense(rows, len(grid), nil)
	weight := 1 / float64(len(draws))

	for _, v := range draws {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := m.parseParams(v)
		if err != nil {
			return nil, err
		}

		sig2, next := m.filterVariances(p, history)
		for r := range rows {
			s2 := next
			if inSample {
				s2 = sig2[r]
			}
			d := m.dist(p, math.Sqrt(s2), nil)
			row := out.RawRowView(r)
			for j, x := range grid {
				row[j] += weight * d.Prob(x)
			}
		}
	}

	return out, nil
}

type job struct {
	index int
	start int
	end   int
}

// splitJobs divides the paths into batches and caps the worker count at the
// number of batches, truncating the last batch to the path count.
func splitJobs(npaths, batchSize, workers int) ([]job, int) {
	nJobs := int(math.Ceil(float64(npaths) / float64(batchSize)))
	nWorkers := ex.Min(nJobs, workers)

	jobs := make([]job, nJobs)
	for i := range nJobs {
		jobs[i] = job{
			index: i,
			start: i * batchSize,
			end:   ex.Min((i+1)*batchSize, npaths),
		}
	}

	return jobs, nWorkers
}

// SimulatePaths simulates npaths future paths over the horizon, returning a
// (nahead x npaths) draw matrix. Paths cycle over the parameter draws, so an
// ensemble contributes every draw evenly. The random stream is derived from
// the batch index rather than the worker, so a fixed Seed yields identical
// output no matter which worker picks up which batch.
func (m *ConditionalModel) SimulatePaths(ctx context.Context, draws [][]float64, history []float64, nahead, npaths int) (*mat.Dense, error) {
	params := make([]modelParams, len(draws))
	startVar := make([]float64, len(draws))
	for i, v := range draws {
		p, err := m.parseParams(v)
		if err != nil {
			return nil, err
		}
		_, next := m.filterVariances(p, history)
		params[i] = p
		startVar[i] = next
	}

	out := mat.NewDense(nahead, npaths, nil)
	jobs, nWorkers := splitJobs(npaths, SimulationBatchSize, SimulationWorkers)

	seed := m.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	log.Debug().
		Int("paths", npaths).
		Int("horizon", nahead).
		Int("batches", len(jobs)).
		Int("workers", nWorkers).
		Msg("starting path simulation")

	jobsChannel := make(chan job, len(jobs))
	for _, j := range jobs {
		jobsChannel <- j
	}
	close(jobsChannel)

	g, gctx := errgroup.WithContext(ctx)
	for range nWorkers {
		g.Go(func() error {
			for j := range jobsChannel {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				rng := rand.NewPCG(seed, uint64(j.index+1))
				for path := j.start; path < j.end; path++ {
					p := params[path%len(params)]
					sig2 := startVar[path%len(params)]

					for step := range nahead {
						y := m.dist(p, math.Sqrt(sig2), rng).Rand()
						out.Set(step, path, y)

						if m.Variance == GARCH {
							eps := y - p.mu
							sig2 = p.omega + p.arch*eps*eps + p.garch*sig2
						}
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
