// Package experiment runs the regression experiments on the
// pitch-plunge system and saves their figures and tables.
package experiment

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"bitbucket.org/dtolpin/sonig/config"
	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/report"
	"bitbucket.org/dtolpin/sonig/sonig"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknown  = errors.New("unknown experiment")
	ErrUnstable = errors.New("system is not stable")
)

// Experiment is a named entry of the registry.
type Experiment struct {
	Name        string
	Description string
	run         func(env *Env) error
}

var registry = map[string]Experiment{}

func register(name, description string, run func(env *Env) error) {
	registry[name] = Experiment{Name: name, Description: description, run: run}
}

func init() {
	register("value", "cost-to-go of the linear system: exact GP, sparse GP and quadratic regression", value)
	register("sysid", "one-step dynamics from noisy state measurements: SONIG against FITC and exact GP", sysid)
	register("tune", "hyperparameter tuning on the pitch spring moment", tune)
	register("samples", "functions drawn from the prior and the posterior", samples)
}

// List returns the registered experiments sorted by name.
func List() []Experiment {
	es := make([]Experiment, 0, len(registry))
	for _, e := range registry {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
	return es
}

// Env is what an experiment runs in.
type Env struct {
	Config *config.Config
	Dir    string // artifacts of the run
	Run    *report.Run
	Log    *log.Entry
}

// Run runs the named experiment and saves the configuration, the
// tables and the figures into a directory of its own under cfg.Out.
// The run is returned with what was recorded even on failure.
func Run(name string, cfg *config.Config) (*report.Run, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	run := report.NewRun(name, cfg.Seed)
	env := &Env{
		Config: cfg,
		Dir:    filepath.Join(cfg.Out, name, run.ID.String()),
		Run:    run,
		Log: log.WithFields(log.Fields{
			"experiment": name,
			"run":        run.ID.String(),
		}),
	}
	start := time.Now()
	env.Log.WithField("dir", env.Dir).Info("starting")
	// A failed run is reproduced from its configuration.
	if _, err := cfg.Save(env.Dir); err != nil {
		return run, err
	}
	if err := e.run(env); err != nil {
		return run, err
	}

	if _, err := run.SaveCSV(env.Dir); err != nil {
		return run, err
	}
	if cfg.Workbook {
		if err := run.SaveWorkbook(filepath.Join(env.Dir, "run.xlsx")); err != nil {
			return run, err
		}
	}
	run.Log()
	env.Log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("done")
	return run, nil
}

// trials runs f for each trial of the configuration.
func (env *Env) trials(f func(trial int, s *gauss.Sampler) error) error {
	for trial := 0; trial != env.Config.Trials; trial++ {
		if err := env.attempt(trial, f); err != nil {
			return err
		}
	}
	return nil
}

// attempt runs a trial, restarting it on a fresh random stream while
// it fails numerically. What a failed attempt recorded is dropped. Trial t, restart r draws from the stream
// t(R+1)+r, R the maximum number of restarts, so that no two
// attempts of a run share a stream.
func (env *Env) attempt(trial int, f func(trial int, s *gauss.Sampler) error) error {
	maxRestarts := env.Config.MaxRestarts
	mark := env.Run.Mark()
	for restart := 0; ; restart++ {
		stream := uint64(trial*(maxRestarts+1) + restart)
		s := gauss.NewSampler(env.Config.Seed, stream)
		s.Jitter = env.Config.Jitter
		err := f(trial, s)
		if err == nil || !degenerate(err) {
			return err
		}
		env.Run.Rollback(mark)
		if restart == maxRestarts {
			return fmt.Errorf("trial %d failed after %d restarts: %w", trial, restart, err)
		}
		env.Log.WithFields(log.Fields{
			"trial":   trial,
			"restart": restart + 1,
		}).WithError(err).Warn("degenerate trial, restarting")
	}
}

func degenerate(err error) bool {
	return errors.Is(err, sonig.ErrInvalidUpdate) ||
		errors.Is(err, gauss.ErrNotPositiveDefinite)
}

// label names a model or a table of a trial; the trial is omitted
// when there is only one.
func (env *Env) label(name string, trial int) string {
	if env.Config.Trials == 1 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, trial)
}

// figure is the path of a figure of the run.
func (env *Env) figure(name string) string {
	return filepath.Join(env.Dir, name+"."+env.Config.Format)
}

// record evaluates the predictions of a model and adds the metrics
// to the run.
func (env *Env) record(model string, truth, mean, variance []float64, base report.Baseline) error {
	m, err := report.Evaluate(truth, mean, variance, base)
	if err != nil {
		return fmt.Errorf("%s: %w", model, err)
	}
	env.Run.Record(model, m)
	return nil
}
