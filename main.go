package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"bitbucket.org/dtolpin/sonig/config"
	"bitbucket.org/dtolpin/sonig/experiment"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	// Variables from .env are visible to the configuration as
	// SONIG_* overrides.
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file, using the environment")
	}

	var file string
	root := &cobra.Command{
		Use:          "sonig",
		Short:        "Sequential GP regression with noisy inputs on a pitch-plunge wing",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&file, "config", "c", "", "YAML configuration file")
	config.Flags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(file, cmd.Flags())
		if err != nil {
			return nil, err
		}
		level, _ := log.ParseLevel(cfg.LogLevel)
		log.SetLevel(level)
		return cfg, nil
	}

	root.AddCommand(
		newRunCmd(load),
		newListCmd(),
		newConfigCmd(load),
		newSelfcheckCmd(load),
	)

	if err := root.Execute(); err != nil {
		log.WithError(err).Error("failed")
		os.Exit(1)
	}
}

type loader func(cmd *cobra.Command) (*config.Config, error)

func newRunCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "run [experiment...]",
		Short: "Run experiments, all when none is named",
		Long: `Run experiments and write their figures, tables and configuration
into <out>/<experiment>/<run id>.

Example: sonig run sysid --trials 5 --seed 3 --format pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return runAll(cfg, args)
		},
	}
}

func runAll(cfg *config.Config, names []string) error {
	if len(names) == 0 {
		for _, e := range experiment.List() {
			names = append(names, e.Name)
		}
	}
	for _, name := range names {
		if _, err := experiment.Run(name, cfg); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range experiment.List() {
				fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Long: `Print the configuration after applying the file, the SONIG_*
environment variables and the flags. The output is a valid
configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return cfg.Dump(cmd.OutOrStdout())
		},
	}
}

func newSelfcheckCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "selfcheck",
		Short: "Run every experiment on small data",
		Long: `In 'selfcheck' mode every experiment runs with a few dozen
points, to demonstrate basic functionality in seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			shrink(cfg)
			return runAll(cfg, nil)
		},
	}
}

// shrink reduces the data sizes of cfg for a quick run.
func shrink(cfg *config.Config) {
	cfg.Value.N, cfg.Value.Test = 40, 20
	cfg.Value.Grid, cfg.Value.Inducing = 21, 10
	cfg.Sysid.Steps, cfg.Sysid.Test = 80, 40
	cfg.Sysid.Inducing, cfg.Sysid.TuneN = 20, 40
	cfg.Tune.N, cfg.Tune.Grid = 15, 21
	cfg.Tune.MaxIterations = 30
	cfg.Samples.Grid = 41
}
