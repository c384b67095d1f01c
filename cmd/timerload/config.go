package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ygrebnov/metrics/v2"
)

type config struct {
	Workers  int           `yaml:"workers"`
	For      time.Duration `yaml:"for"`
	Interval time.Duration `yaml:"interval"`
	// Work is the mean duration of one synthetic work item.
	Work       time.Duration       `yaml:"work"`
	ErrorRatio float64             `yaml:"error_ratio"`
	Seed       uint64              `yaml:"seed"`
	Timer      metrics.TimerConfig `yaml:"timer"`
	// MetricsAddr, when set, serves the registry in the Prometheus format.
	MetricsAddr string `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		Workers:    4,
		For:        10 * time.Second,
		Interval:   time.Second,
		Work:       5 * time.Millisecond,
		ErrorRatio: 0.05,
		Timer: metrics.TimerConfig{
			DurationUnit: metrics.Milliseconds,
			RateUnit:     metrics.Seconds,
		},
	}
}

// loadConfig reads path over the defaults. Keys missing from the file keep
// their default values.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c config) validate() error {
	switch {
	case c.Workers < 1:
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	case c.For < 0:
		return errors.Errorf("run duration must not be negative, got %s", c.For)
	case c.Interval <= 0:
		return errors.Errorf("report interval must be positive, got %s", c.Interval)
	case c.Work < 0:
		return errors.Errorf("work duration must not be negative, got %s", c.Work)
	case c.ErrorRatio < 0 || c.ErrorRatio > 1:
		return errors.Errorf("error ratio must be within [0, 1], got %v", c.ErrorRatio)
	}
	return errors.Wrap(c.Timer.Validate(), "timer")
}

// unitValue adapts a TimeUnit to a command line flag.
type unitValue struct {
	u *metrics.TimeUnit
}

func (v unitValue) String() string {
	if v.u == nil {
		return ""
	}
	return v.u.String()
}

func (v unitValue) Set(s string) error {
	u, err := metrics.ParseTimeUnit(s)
	if err != nil {
		return err
	}
	*v.u = u
	return nil
}

func (unitValue) Type() string { return "unit" }
