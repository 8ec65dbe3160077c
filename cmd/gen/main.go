package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"bitbucket.org/dtolpin/sonig/gauss"
	"bitbucket.org/dtolpin/sonig/pitchplunge"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var (
	SEED       = uint64(1)
	STREAM     = uint64(0)
	STEPS      = 500
	DT         = 0.01
	U          = 10.
	LINEAR     = false
	EXCITATION = 0.1
	ALPHA0     = 0.05
	NOISE      = []float64{1e-4, 1e-3, 1e-3, 1e-2}
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr,
			`Simulate the pitch-plunge wing under random flap input. Invocation:
	%s [OPTIONS] > trajectory.csv
The columns are the time, the true state, the measured state and the flap
deflection applied until the next row.
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Uint64Var(&SEED, "seed", SEED, "random seed")
	flag.Uint64Var(&STREAM, "stream", STREAM, "random stream")
	flag.IntVar(&STEPS, "steps", STEPS, "number of steps")
	flag.Float64Var(&DT, "dt", DT, "time step, s")
	flag.Float64Var(&U, "u", U, "free stream velocity, m/s")
	flag.BoolVar(&LINEAR, "linear", LINEAR, "linear pitch stiffness")
	flag.Float64Var(&EXCITATION, "excitation", EXCITATION, "std of the flap deflection, rad")
	flag.Float64Var(&ALPHA0, "alpha0", ALPHA0, "initial pitch, rad")
	flag.Float64SliceVar(&NOISE, "noise", NOISE, "measurement noise std per state")
}

func main() {
	flag.Parse()
	if len(NOISE) != pitchplunge.NState {
		log.Fatalf("%d noise values for %d states", len(NOISE), pitchplunge.NState)
	}

	p := pitchplunge.Default()
	p.U = U
	p.Nonlinear = !LINEAR
	sys, err := pitchplunge.NewSystem(p)
	if err != nil {
		log.Fatal(err)
	}

	s := gauss.NewSampler(SEED, STREAM)
	x0 := make([]float64, pitchplunge.NState)
	x0[pitchplunge.Alpha] = ALPHA0
	tr := sys.Simulate(x0, func(float64, []float64) float64 {
		return EXCITATION * s.Normal()
	}, DT, STEPS)

	w := csv.NewWriter(os.Stdout)
	header := []string{"t", "h", "alpha", "hdot", "alphadot",
		"h_meas", "alpha_meas", "hdot_meas", "alphadot_meas", "beta"}
	if err := w.Write(header); err != nil {
		log.Fatal(err)
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
	record := make([]string, len(header))
	for i, x := range tr.X {
		y := s.Perturb(x, NOISE)
		record[0] = format(tr.T[i])
		for j := range x {
			record[1+j] = format(x[j])
			record[1+pitchplunge.NState+j] = format(y[j])
		}
		// The last state has no input after it.
		u := 0.
		if i < len(tr.U) {
			u = tr.U[i]
		}
		record[len(record)-1] = format(u)
		if err := w.Write(record); err != nil {
			log.Fatal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatal(err)
	}
}
