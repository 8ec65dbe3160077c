package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables, SONIG_VALUE_N sets
// value.n.
const EnvPrefix = "SONIG"

// flagBindings maps viper keys to pflag names.
var flagBindings = map[string]string{
	"seed":         "seed",
	"trials":       "trials",
	"max-restarts": "max-restarts",
	"out":          "out",
	"format":       "format",
	"workbook":     "workbook",
	"log-level":    "log-level",
	"dt":           "dt",
}

// Flags registers the command-line flags that override the
// configuration.
func Flags(fs *pflag.FlagSet) {
	d := Default()
	fs.Uint64("seed", d.Seed, "random seed")
	fs.Int("trials", d.Trials, "independent trials")
	fs.Int("max-restarts", d.MaxRestarts, "restarts of a degenerate trial")
	fs.String("out", d.Out, "output directory")
	fs.String("format", d.Format, "figure format")
	fs.Bool("workbook", d.Workbook, "write an xlsx workbook")
	fs.String("log-level", d.LogLevel, "log level")
	fs.Float64("dt", d.Dt, "time step, s")
}

// Load resolves the configuration.
// Precedence: flags > env > file > defaults.
// file and flagSet may be empty.
func Load(file string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults are read as a configuration so that every key is
	// known to viper and can be overridden from the environment.
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flagSet != nil {
		for key, name := range flagBindings {
			if f := flagSet.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dump writes the configuration as YAML, in the format Load reads.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// Save writes the configuration into dir/config.yaml.
func (c *Config) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "config.yaml")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := c.Dump(f); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
