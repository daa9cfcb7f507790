package tasks

import (
	"bytes"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/automl/learning"
	"github.com/neurlang/automl/parallel"
	"github.com/neurlang/automl/trainer"
)

// Config configures a task runner. The zero value is usable; WithDefaults
// documents the value of every unset field.
type Config struct {
	// NumTrials bounds the number of hyperparameter trials. Zero means 1.
	NumTrials int `yaml:"num_trials"`

	// SearchStrategy picks the trials after the first: random or grid.
	SearchStrategy trainer.Strategy `yaml:"search_strategy"`

	Seed int64 `yaml:"seed"`

	// Threads bounds the concurrency of feature extraction and training.
	Threads int `yaml:"threads"`

	// ParallelTrials is the number of trials run at the same time.
	ParallelTrials int `yaml:"parallel_trials"`

	// ValidFraction is the share of the training data held out for validation.
	ValidFraction float64 `yaml:"valid_fraction"`

	// TimeLimit stops starting new trials and cancels running ones. Zero
	// means no limit.
	TimeLimit time.Duration `yaml:"time_limit"`

	// Attempts is the number of salts the solver tries per step.
	Attempts uint32 `yaml:"attempts"`
}

// Defaults of Config.
const (
	DefaultNumTrials      = 1
	DefaultSeed           = 1
	DefaultParallelTrials = 1
	DefaultValidFraction  = 0.1
)

// WithDefaults returns a copy of c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.NumTrials == 0 {
		c.NumTrials = DefaultNumTrials
	}
	if c.SearchStrategy == "" {
		c.SearchStrategy = trainer.Random
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Threads <= 0 {
		c.Threads = parallel.DefaultThreads()
	}
	if c.ParallelTrials <= 0 {
		c.ParallelTrials = DefaultParallelTrials
	}
	if c.ValidFraction == 0 {
		c.ValidFraction = DefaultValidFraction
	}
	if c.Attempts == 0 {
		c.Attempts = learning.DefaultAttempts
	}
	return c
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	switch {
	case c.NumTrials < 0:
		return errors.Errorf("num_trials must not be negative, got %d", c.NumTrials)
	case c.SearchStrategy != "" && !c.SearchStrategy.Valid():
		return errors.Errorf("unknown search_strategy %q", c.SearchStrategy)
	case c.ValidFraction < 0 || c.ValidFraction >= 1:
		return errors.Errorf("valid_fraction must be in [0, 1), got %v", c.ValidFraction)
	case c.TimeLimit < 0:
		return errors.Errorf("time_limit must not be negative, got %v", c.TimeLimit)
	case c.ParallelTrials < 0:
		return errors.Errorf("parallel_trials must not be negative, got %d", c.ParallelTrials)
	}
	return nil
}

// ParseConfig decodes a YAML config. Unknown fields are rejected.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading config")
	}
	return ParseConfig(data)
}

func (c Config) hyperParameters(seed int64, logger *slog.Logger) learning.HyperParameters {
	return learning.HyperParameters{
		Threads:  c.Threads,
		Seed:     seed,
		Attempts: c.Attempts,
		Logger:   logger,
	}
}
