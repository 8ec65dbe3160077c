// Package config holds the settings of an experiment run.
package config

import (
	"errors"
	"fmt"
	"math"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	"bitbucket.org/dtolpin/sonig/priors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration of a run.
type Config struct {
	Seed        uint64 `mapstructure:"seed" yaml:"seed"`
	Trials      int    `mapstructure:"trials" yaml:"trials"`
	MaxRestarts int    `mapstructure:"max-restarts" yaml:"max-restarts"`
	Out         string `mapstructure:"out" yaml:"out"`           // artifact directory
	Format      string `mapstructure:"format" yaml:"format"`     // figure format: png, svg, pdf
	Workbook    bool   `mapstructure:"workbook" yaml:"workbook"` // also write an xlsx workbook
	LogLevel    string `mapstructure:"log-level" yaml:"log-level"`

	Dt     float64            `mapstructure:"dt" yaml:"dt"`
	System pitchplunge.Params `mapstructure:"system" yaml:"system"`
	Jitter gauss.Jitter       `mapstructure:"jitter" yaml:"jitter"`

	Value   Value   `mapstructure:"value" yaml:"value"`
	Sysid   Sysid   `mapstructure:"sysid" yaml:"sysid"`
	Tune    Tune    `mapstructure:"tune" yaml:"tune"`
	Samples Samples `mapstructure:"samples" yaml:"samples"`
}

// Value configures the regression of the cost-to-go of the linear
// system.
type Value struct {
	N        int          `mapstructure:"n" yaml:"n"`                 // training states
	Test     int          `mapstructure:"test" yaml:"test"`           // test states
	Box      []float64    `mapstructure:"box" yaml:"box"`             // half-widths of the sampled states
	Cost     []float64    `mapstructure:"cost" yaml:"cost"`           // diagonal of the stage cost
	Noise    float64      `mapstructure:"noise" yaml:"noise"`         // value noise, relative to the value spread
	Grid     int          `mapstructure:"grid" yaml:"grid"`           // points along the pitch axis
	Inducing int          `mapstructure:"inducing" yaml:"inducing"`   // inducing points of the sparse model
	PriorStd float64      `mapstructure:"prior-std" yaml:"prior-std"` // weight prior of the linear baseline
	Hyper    kernel.Hyper `mapstructure:"hyper" yaml:"hyper"`
}

// Sysid configures the identification of the dynamics.
type Sysid struct {
	Steps      int          `mapstructure:"steps" yaml:"steps"`             // training trajectory
	Test       int          `mapstructure:"test" yaml:"test"`               // test trajectory
	Excitation float64      `mapstructure:"excitation" yaml:"excitation"`   // std of the random flap input
	Initial    []float64    `mapstructure:"initial" yaml:"initial"`         // std of the initial state
	StateNoise []float64    `mapstructure:"state-noise" yaml:"state-noise"` // measurement noise std per state
	Inducing   int          `mapstructure:"inducing" yaml:"inducing"`
	Hyper      kernel.Hyper `mapstructure:"hyper" yaml:"hyper"` // of every output, standardized
	Tune       bool         `mapstructure:"tune" yaml:"tune"`
	TuneN      int          `mapstructure:"tune-n" yaml:"tune-n"` // samples used for tuning
}

// Tune configures hyperparameter tuning, and the tuning experiment
// on the pitch spring moment.
type Tune struct {
	N             int          `mapstructure:"n" yaml:"n"`
	Range         float64      `mapstructure:"range" yaml:"range"` // pitch angles in ±range
	Noise         float64      `mapstructure:"noise" yaml:"noise"` // moment noise std
	Grid          int          `mapstructure:"grid" yaml:"grid"`
	MaxIterations int          `mapstructure:"max-iterations" yaml:"max-iterations"`
	MinScale      float64      `mapstructure:"min-scale" yaml:"min-scale"` // bounds of every scale
	MaxScale      float64      `mapstructure:"max-scale" yaml:"max-scale"`
	Hyper         kernel.Hyper `mapstructure:"hyper" yaml:"hyper"` // initial
	Priors        priors.Hyper `mapstructure:"priors" yaml:"priors"`
}

// Samples configures drawing functions from the prior and the
// posterior of the spring moment regression.
type Samples struct {
	N     int          `mapstructure:"n" yaml:"n"`
	Draws int          `mapstructure:"draws" yaml:"draws"`
	Grid  int          `mapstructure:"grid" yaml:"grid"`
	Hyper kernel.Hyper `mapstructure:"hyper" yaml:"hyper"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	system := pitchplunge.Default()
	system.Nonlinear = true
	return &Config{
		Seed:        1,
		Trials:      1,
		MaxRestarts: 5,
		Out:         "out",
		Format:      "png",
		LogLevel:    "info",
		Dt:          0.01,
		System:      system,
		Jitter:      gauss.DefaultJitter,
		Value: Value{
			N:        200,
			Test:     200,
			Box:      []float64{0.02, 0.1, 0.2, 2},
			Cost:     []float64{2500, 100, 25, 0.25},
			Noise:    0.05,
			Grid:     101,
			Inducing: 40,
			PriorStd: 10,
			Hyper: kernel.Hyper{
				LengthScales: []float64{1.5, 1.5, 1.5, 1.5},
				SignalStd:    1,
				NoiseStd:     0.05,
			},
		},
		Sysid: Sysid{
			Steps:      300,
			Test:       200,
			Excitation: 0.1,
			Initial:    []float64{0.005, 0.05, 0.05, 0.5},
			StateNoise: []float64{1e-4, 1e-3, 1e-3, 1e-2},
			Inducing:   50,
			Hyper: kernel.Hyper{
				LengthScales: []float64{2, 2, 2, 2, 2},
				SignalStd:    1,
				NoiseStd:     0.05,
			},
			Tune:  true,
			TuneN: 100,
		},
		Tune: Tune{
			N:             30,
			Range:         0.25,
			Noise:         0.05,
			Grid:          101,
			MaxIterations: 100,
			MinScale:      1e-3,
			MaxScale:      1e3,
			Hyper: kernel.Hyper{
				LengthScales: []float64{0.2},
				SignalStd:    0.5,
				NoiseStd:     0.5,
			},
			Priors: *priors.Default(),
		},
		Samples: Samples{
			N:     8,
			Draws: 5,
			Grid:  101,
			Hyper: kernel.Hyper{
				LengthScales: []float64{0.5},
				SignalStd:    1,
				NoiseStd:     0.1,
			},
		},
	}
}

// Validate checks the configuration before a run.
func (c *Config) Validate() error {
	if c.Trials < 1 {
		return fmt.Errorf("%w: trials must be at least 1, got %d", ErrInvalid, c.Trials)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("%w: max-restarts is negative", ErrInvalid)
	}
	if c.Out == "" {
		return fmt.Errorf("%w: no output directory", ErrInvalid)
	}
	switch c.Format {
	case "png", "svg", "pdf", "eps", "jpg", "tif":
	default:
		return fmt.Errorf("%w: unsupported figure format %q", ErrInvalid, c.Format)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalid, c.Dt)
	}
	if err := c.System.Validate(); err != nil {
		return fmt.Errorf("%w: system: %v", ErrInvalid, err)
	}

	nx := pitchplunge.NState
	for _, c := range []struct {
		name  string
		n     int
		hyper kernel.Hyper
		dim   int
	}{
		{"value", c.Value.N, c.Value.Hyper, nx},
		{"sysid", c.Sysid.Steps, c.Sysid.Hyper, nx + pitchplunge.NInput},
		{"tune", c.Tune.N, c.Tune.Hyper, 1},
		{"samples", c.Samples.N, c.Samples.Hyper, 1},
	} {
		if c.n < 2 {
			return fmt.Errorf("%w: %s: at least two samples needed, got %d",
				ErrInvalid, c.name, c.n)
		}
		if err := c.hyper.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, c.name, err)
		}
		if len(c.hyper.LengthScales) != c.dim {
			return fmt.Errorf("%w: %s: %d length scales for %d inputs",
				ErrInvalid, c.name, len(c.hyper.LengthScales), c.dim)
		}
	}

	for _, c := range []struct {
		name string
		v    []float64
	}{
		{"value.box", c.Value.Box},
		{"value.cost", c.Value.Cost},
		{"sysid.initial", c.Sysid.Initial},
		{"sysid.state-noise", c.Sysid.StateNoise},
	} {
		if len(c.v) != nx {
			return fmt.Errorf("%w: %s needs %d values, got %d", ErrInvalid, c.name, nx, len(c.v))
		}
		for _, x := range c.v {
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s has invalid value %v", ErrInvalid, c.name, x)
			}
		}
	}
	for _, b := range c.Value.Box {
		if b == 0 {
			return fmt.Errorf("%w: value.box must be positive", ErrInvalid)
		}
	}
	if c.Value.Inducing < 1 || c.Value.Inducing > c.Value.N {
		return fmt.Errorf("%w: value.inducing must be in 1..%d", ErrInvalid, c.Value.N)
	}
	if c.Sysid.Inducing < 1 || c.Sysid.Inducing > c.Sysid.Steps {
		return fmt.Errorf("%w: sysid.inducing must be in 1..%d", ErrInvalid, c.Sysid.Steps)
	}
	if c.Sysid.Tune && (c.Sysid.TuneN < 2 || c.Sysid.TuneN > c.Sysid.Steps) {
		return fmt.Errorf("%w: sysid.tune-n must be in 2..%d", ErrInvalid, c.Sysid.Steps)
	}
	if !(c.Tune.MinScale > 0) || !(c.Tune.MaxScale > c.Tune.MinScale) {
		return fmt.Errorf("%w: tune scale bounds [%v, %v]", ErrInvalid, c.Tune.MinScale, c.Tune.MaxScale)
	}
	if !(c.Tune.Range > 0) {
		return fmt.Errorf("%w: tune.range must be positive", ErrInvalid)
	}
	for _, p := range []priors.LogNormal{c.Tune.Priors.LengthScale, c.Tune.Priors.SignalStd, c.Tune.Priors.NoiseStd} {
		if !(p.Std > 0) {
			return fmt.Errorf("%w: prior std must be positive, got %v", ErrInvalid, p.Std)
		}
	}
	if c.Value.Test < 1 || c.Sysid.Test < 1 || c.Samples.Draws < 1 {
		return fmt.Errorf("%w: test sizes and draws must be positive", ErrInvalid)
	}
	for _, g := range []int{c.Value.Grid, c.Tune.Grid, c.Samples.Grid} {
		if g < 2 {
			return fmt.Errorf("%w: grids need at least two points", ErrInvalid)
		}
	}
	return nil
}
