package experiment

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/dtolpin/sonig/config"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/report"
	"bitbucket.org/dtolpin/sonig/sonig"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// small is a configuration that runs in a fraction of a second.
func small(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Out = t.TempDir()
	cfg.Format = "svg"
	cfg.Workbook = true

	cfg.Value.N = 40
	cfg.Value.Test = 20
	cfg.Value.Grid = 11
	cfg.Value.Inducing = 10

	cfg.Sysid.Steps = 60
	cfg.Sysid.Test = 20
	cfg.Sysid.Inducing = 15
	cfg.Sysid.TuneN = 30

	cfg.Tune.N = 15
	cfg.Tune.Grid = 11
	cfg.Tune.MaxIterations = 20

	cfg.Samples.Grid = 21
	cfg.Samples.Draws = 2
	return cfg
}

func results(run *report.Run) map[string]report.Metrics {
	m := map[string]report.Metrics{}
	for _, r := range run.Results {
		m[r.Model] = r.Metrics
	}
	return m
}

func checkArtifacts(t *testing.T, cfg *config.Config, run *report.Run, files ...string) {
	dir := filepath.Join(cfg.Out, run.Experiment, run.ID.String())
	for _, f := range append(files, "config.yaml", "summary.csv", "run.xlsx") {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, f)
	}
	for _, r := range run.Results {
		assert.False(t, math.IsNaN(r.NLPD) || math.IsInf(r.NLPD, 0), "%s: nlpd %v", r.Model, r.NLPD)
		assert.Positive(t, r.N, r.Model)
	}
}

func TestList(t *testing.T) {
	var names []string
	for _, e := range List() {
		names = append(names, e.Name)
		assert.NotEmpty(t, e.Description)
	}
	assert.Equal(t, []string{"samples", "sysid", "tune", "value"}, names)

	_, err := Run("nothing", config.Default())
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestValue(t *testing.T) {
	cfg := small(t)
	run, err := Run("value", cfg)
	require.NoError(t, err)
	checkArtifacts(t, cfg, run, "value.svg", "pitch.csv")

	m := results(run)
	require.Len(t, m, 3)
	// The cost-to-go is exactly quadratic.
	assert.Negative(t, m["quadratic"].MSLL)
	assert.Less(t, m["quadratic"].RMSE, m["sonig"].RMSE+m["exact"].RMSE)
}

func TestValueUnstable(t *testing.T) {
	cfg := small(t)
	cfg.System.U = 30
	run, err := Run("value", cfg)
	assert.ErrorIs(t, err, ErrUnstable)

	// The configuration of a failed run is kept.
	require.NotNil(t, run)
	saved, err := config.Load(
		filepath.Join(cfg.Out, "value", run.ID.String(), "config.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, 30., saved.System.U)
}

func TestSysid(t *testing.T) {
	cfg := small(t)
	run, err := Run("sysid", cfg)
	require.NoError(t, err)
	checkArtifacts(t, cfg, run, "sysid.svg", "trajectory.svg", "rollout.svg",
		"onestep.csv", "rollout.csv")

	m := results(run)
	// Three models for four states, and the free run.
	require.Len(t, m, 13)
	for _, name := range []string{"sonig/alpha", "fitc/alpha", "exact/alpha"} {
		assert.Equal(t, cfg.Sysid.Test, m[name].N, name)
	}
	assert.Equal(t, min(rollout, cfg.Sysid.Test), m["rollout/alpha"].N)
}

func TestTune(t *testing.T) {
	cfg := small(t)
	cfg.Trials = 2
	run, err := Run("tune", cfg)
	require.NoError(t, err)
	checkArtifacts(t, cfg, run, "tune.svg", "hyper-0.csv", "moment-1.csv")

	m := results(run)
	for trial := 0; trial != 2; trial++ {
		for _, name := range []string{"initial", "tuned", "gogp"} {
			_, ok := m[fmt.Sprintf("%s-%d", name, trial)]
			assert.True(t, ok, "%s-%d", name, trial)
		}
	}
	// The initial noise is as large as the signal; tuning finds the
	// smooth moment under it.
	assert.Less(t, m["tuned-0"].RMSE, m["initial-0"].RMSE)
}

func TestSamples(t *testing.T) {
	cfg := small(t)
	run, err := Run("samples", cfg)
	require.NoError(t, err)
	checkArtifacts(t, cfg, run, "prior.svg", "posterior.svg", "samples.csv")

	require.Len(t, run.Tables, 1)
	tb := run.Tables[0]
	assert.Equal(t, []string{"alpha", "moment", "prior_0", "prior_1", "posterior_0", "posterior_1"},
		tb.Columns)
	assert.Len(t, tb.Rows, cfg.Samples.Grid)
	m := results(run)
	assert.Less(t, m["posterior"].NLPD, m["prior"].NLPD)
}

func TestRestarts(t *testing.T) {
	cfg := config.Default()
	cfg.MaxRestarts = 2
	env := &Env{
		Config: cfg,
		Run:    report.NewRun("restarts", cfg.Seed),
		Log:    log.WithField("test", t.Name()),
	}

	// Fails twice, then succeeds on the third stream.
	var firsts []float64
	err := env.attempt(1, func(trial int, s *gauss.Sampler) error {
		firsts = append(firsts, s.Normal())
		if len(firsts) < 3 {
			return fmt.Errorf("step 3: %w", sonig.ErrInvalidUpdate)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, firsts, 3)
	assert.NotEqual(t, firsts[0], firsts[1])
	// Trial 1 starts after the three streams of trial 0.
	assert.Equal(t, gauss.NewSampler(cfg.Seed, 3).Normal(), firsts[0])

	// Gives up after the last restart.
	calls := 0
	err = env.attempt(0, func(int, *gauss.Sampler) error {
		calls++
		return gauss.ErrNotPositiveDefinite
	})
	assert.ErrorIs(t, err, gauss.ErrNotPositiveDefinite)
	assert.Equal(t, 3, calls)

	// Other errors are not retried.
	calls = 0
	err = env.attempt(0, func(int, *gauss.Sampler) error {
		calls++
		return os.ErrNotExist
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, 1, calls)
}

func TestRestartDiscards(t *testing.T) {
	cfg := config.Default()
	env := &Env{
		Config: cfg,
		Run:    report.NewRun("restarts", cfg.Seed),
		Log:    log.WithField("test", t.Name()),
	}
	env.Run.Record("earlier", report.Metrics{N: 1})

	// The first attempt records and attaches, then fails.
	calls := 0
	err := env.attempt(0, func(trial int, s *gauss.Sampler) error {
		calls++
		env.Run.Record("prior", report.Metrics{N: calls})
		env.Run.Attach(report.NewTable("samples", "x"))
		if calls == 1 {
			return gauss.ErrNotPositiveDefinite
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, env.Run.Results, 2)
	assert.Equal(t, "earlier", env.Run.Results[0].Model)
	assert.Equal(t, "prior", env.Run.Results[1].Model)
	assert.Equal(t, 2, env.Run.Results[1].N)
	assert.Len(t, env.Run.Tables, 1)

	// Giving up drops the attempts too.
	err = env.attempt(1, func(int, *gauss.Sampler) error {
		env.Run.Record("posterior", report.Metrics{})
		return sonig.ErrInvalidUpdate
	})
	assert.ErrorIs(t, err, sonig.ErrInvalidUpdate)
	assert.Len(t, env.Run.Results, 2)
}

func TestScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s := FitScaler(X)
	assert.Equal(t, []float64{3, 5}, s.Mean)
	assert.Equal(t, []float64{2, 1}, s.Std)

	z := s.Apply([]float64{5, 6})
	assert.Equal(t, []float64{1, 1}, z)
	assert.Equal(t, []float64{5, 6}, s.Restore(z))

	b := s.Belief(gauss.Diag([]float64{3, 5}, []float64{4, 1}))
	assert.Equal(t, []float64{0, 0}, b.MeanSlice())
	assert.InDelta(t, 1, b.Var(0), 1e-12)
	assert.InDelta(t, 1, b.Var(1), 1e-12)

	mean, variance := s.Marginal(0, 1, 0.25)
	assert.Equal(t, 5., mean)
	assert.Equal(t, 1., variance)
}

func TestLabel(t *testing.T) {
	cfg := config.Default()
	env := &Env{Config: cfg}
	assert.Equal(t, "exact", env.label("exact", 0))
	cfg.Trials = 3
	assert.Equal(t, "exact-2", env.label("exact", 2))
	assert.True(t, strings.HasSuffix(env.figure("value"), "value.png"))
}
