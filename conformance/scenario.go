package conformance

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neurlang/automl/tasks"
)

// Task names a task runner.
type Task string

// Known tasks.
const (
	ImageClassification Task = "image_classification"
	ObjectDetection     Task = "object_detection"
)

// Benchmark datasets of the default scenarios.
const (
	ShopeeURL        = "https://autogluon.s3.amazonaws.com/datasets/shopee-iet.zip"
	TinyMotorbikeURL = "https://autogluon.s3.amazonaws.com/datasets/tiny_motorbike.zip"
)

// Scenario is one conformance check.
type Scenario struct {
	// Name identifies the scenario in results and logs.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	Task Task `yaml:"task"`

	// Dataset is the location passed to the loader: a directory, an archive,
	// an http(s) URL or an s3:// URI.
	Dataset string `yaml:"dataset"`

	Config tasks.Config `yaml:"config"`

	// Metric is the summary key checked after the fit.
	Metric string `yaml:"metric,omitempty"`

	// Threshold is the value the metric has to exceed.
	Threshold float64 `yaml:"threshold,omitempty"`
}

// metric returns the checked summary key.
func (s *Scenario) metric() string {
	if s.Metric != "" {
		return s.Metric
	}
	if s.Task == ObjectDetection {
		return tasks.KeyValidMAP
	}
	return tasks.KeyValidAcc
}

// DefaultScenarios returns the two benchmark scenarios: one trial of each
// task on its benchmark dataset, requiring a positive validation metric.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:        "image_classification",
			Description: "one trial on the shopee-iet folder dataset reaches valid_acc > 0",
			Task:        ImageClassification,
			Dataset:     ShopeeURL,
			Config:      tasks.Config{NumTrials: 1},
			Metric:      tasks.KeyValidAcc,
		},
		{
			Name:        "object_detection",
			Description: "one trial on the tiny_motorbike VOC dataset reaches valid_map > 0",
			Task:        ObjectDetection,
			Dataset:     TinyMotorbikeURL,
			Config:      tasks.Config{NumTrials: 1},
			Metric:      tasks.KeyValidMAP,
		},
	}
}

// ParseScenarios decodes every YAML document in data.
func ParseScenarios(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var out []Scenario
	for {
		var s Scenario
		err := dec.Decode(&s)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML")
		}
		if err := validateScenario(&s); err != nil {
			return nil, errors.Wrapf(err, "invalid scenario %d", len(out))
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("no scenarios")
	}
	return out, nil
}

// LoadScenarios reads a scenario file.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseScenarios(data)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	switch s.Task {
	case ImageClassification, ObjectDetection:
	case "":
		return errors.New("task is required")
	default:
		return errors.Errorf("unknown task %q", s.Task)
	}
	if s.Dataset == "" {
		return errors.New("dataset is required")
	}
	if err := s.Config.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	if s.Threshold < 0 {
		return errors.Errorf("threshold must not be negative, got %v", s.Threshold)
	}
	return nil
}
