package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/kernel"
	"bitbucket.org/dtolpin/sonig/model"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	"bitbucket.org/dtolpin/sonig/priors"
	"bitbucket.org/dtolpin/sonig/regress"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"
)

var (
	START   = 2
	MAXITER = 0
	SEED    = uint64(1)
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr,
			`One-step-ahead GP forecasting with tuned hyperparameters. Invocation:
  %s [OPTIONS] < INPUT > OUTPUT
or
  %s [OPTIONS] selfcheck
INPUT has the inputs in the leading columns and the output in the last
one. In 'selfcheck' mode a noisy pitch trace of the wing is forecast,
to demonstrate basic functionality.
`, os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.IntVar(&START, "start", START, "observations before the first forecast")
	flag.IntVar(&MAXITER, "max-iterations", MAXITER, "optimizer iterations, 0 until convergence")
	flag.Uint64Var(&SEED, "seed", SEED, "random seed of the selfcheck trace")
}

func main() {
	var input io.Reader = os.Stdin

	flag.Parse()
	switch {
	case flag.NArg() == 0:
	case flag.NArg() == 1 && flag.Arg(0) == "selfcheck":
		input = strings.NewReader(selfCheckData())
	default:
		flag.Usage()
		os.Exit(2)
	}

	log.Info("loading")
	X, Y, err := load(input)
	if err != nil {
		log.Fatal(err)
	}
	if len(X) <= START || START < 2 {
		log.Fatalf("%d observations, forecasting from %d", len(X), START)
	}

	// Normalize Y
	meany, stdy := stat.MeanStdDev(Y, nil)
	for i := range Y {
		Y[i] = (Y[i] - meany) / stdy
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	h := kernel.Hyper{
		LengthScales: make([]float64, len(X[0])),
		SignalStd:    1,
		NoiseStd:     0.1,
	}
	for j := range h.LengthScales {
		h.LengthScales[j] = 1
	}

	log.Info("forecasting")
	for end := START; end != len(X); end++ {
		m := &model.LML{X: X[:end], Y: Y[:end], Priors: priors.Default()}
		// Each fit starts from the previous one.
		tuned, err := model.Tune(m, h.Theta(), model.Options{MaxIterations: MAXITER})
		if err != nil {
			log.WithError(err).WithField("end", end).Warn("failed to optimize")
		}
		h = kernel.FromTheta(tuned.Theta)

		Z := X[end : end+1]
		mu, sigma, err := regress.Forecast(regress.GoGP(h), X[:end], Y[:end], Z)
		if err != nil {
			log.WithError(err).WithField("end", end).Error("failed to forecast")
			continue
		}

		var record []string
		for _, z := range Z[0] {
			record = append(record, format(z))
		}
		record = append(record,
			format(meany+stdy*Y[end]), format(meany+stdy*mu[0]), format(stdy*sigma[0]),
			format(tuned.LML0), format(tuned.LML))
		for _, theta := range tuned.Theta {
			record = append(record, format(math.Exp(theta)))
		}
		if err := w.Write(record); err != nil {
			log.Fatal(err)
		}
	}
	log.Info("done")
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// load parses the data from csv and returns inputs and outputs,
// suitable for feeding to the GP.
func load(rdr io.Reader) (x [][]float64, y []float64, err error) {
	r := csv.NewReader(rdr)
	for {
		record, err := r.Read()
		switch err {
		case nil:
		case io.EOF:
			return x, y, nil
		default:
			return x, y, err
		}
		values := make([]float64, len(record))
		for i := range record {
			if values[i], err = strconv.ParseFloat(record[i], 64); err != nil {
				return x, y, fmt.Errorf("record %d: %w", len(y), err)
			}
		}
		x = append(x, values[:len(values)-1])
		y = append(y, values[len(values)-1])
	}
}

// selfCheckData is a noisy pitch trace of the wing settling into
// its limit cycle, sampled every 0.05 s.
func selfCheckData() string {
	p := pitchplunge.Default()
	p.Nonlinear = true
	sys, err := pitchplunge.NewSystem(p)
	if err != nil {
		panic(err)
	}
	const (
		dt    = 0.01
		every = 5
		n     = 40
	)
	x0 := make([]float64, pitchplunge.NState)
	x0[pitchplunge.Alpha] = 0.1
	tr := sys.Simulate(x0, pitchplunge.Hold(0), dt, every*n)
	s := gauss.NewSampler(SEED, 0)

	var b strings.Builder
	for i := 0; i <= every*n; i += every {
		fmt.Fprintf(&b, "%.2f,%.6e\n", tr.T[i], tr.X[i][pitchplunge.Alpha]+0.005*s.Normal())
	}
	return b.String()
}
