package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"bitbucket.org/dtolpin/sonig/report"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

var (
	COMMA  = ","
	SKIP   = 0
	JY     = 1
	JMEAN  = 2
	JSTD   = 3
	JNOISE = -1
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr,
			`Computes the average negative log predictive density and the
accuracy of predictions in a CSV file with a header. Invocation:
	%s [OPTIONS] < predictions.csv
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&COMMA, "comma", COMMA, "field separator")
	flag.IntVarP(&SKIP, "skip", "s", SKIP, "initial records to skip")
	flag.IntVar(&JY, "y", JY, "index of the observed value")
	flag.IntVar(&JMEAN, "mean", JMEAN, "index of the predictive mean")
	flag.IntVar(&JSTD, "std", JSTD, "index of the predictive standard deviation")
	flag.IntVarP(&JNOISE, "noise", "j", JNOISE,
		"index of the noise standard deviation to add, negative from the end, none if -1")
}

func main() {
	flag.Parse()

	rdr := csv.NewReader(os.Stdin)
	rdr.Comma = rune(COMMA[0])
	if _, err := rdr.Read(); err != nil {
		log.Fatalf("header: %v", err)
	}

	var y, mean, variance []float64
	for n := 0; ; n++ {
		record, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		if n < SKIP {
			continue
		}

		field := func(j int) float64 {
			if j < 0 {
				j += len(record)
			}
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				log.Fatalf("record %d, field %d: %v", n, j, err)
			}
			return v
		}
		std := field(JSTD)
		vr := std * std
		if JNOISE != -1 {
			noise := field(JNOISE)
			vr += noise * noise
		}
		y = append(y, field(JY))
		mean = append(mean, field(JMEAN))
		variance = append(variance, vr)
	}

	m, err := report.Evaluate(y, mean, variance, report.Baseline{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%f\n", m.NLPD)
	log.WithFields(log.Fields{
		"n":        m.N,
		"rmse":     m.RMSE,
		"max_abs":  m.MaxAbs,
		"outliers": m.Outliers,
	}).Info("evaluated")
}
