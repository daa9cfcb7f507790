package conformance

import (
	"time"

	"github.com/neurlang/automl/tasks"
)

// Result is the outcome of a scenario.
type Result struct {
	Name   string `json:"name"`
	Task   Task   `json:"task"`
	Metric string `json:"metric"`

	// Value is the metric read from the summary, zero when it is missing.
	Value float64 `json:"value"`

	// Pass is true when the fit succeeded and Value exceeded the threshold.
	Pass bool `json:"pass"`

	Errors []string `json:"errors,omitempty"`

	Summary tasks.Summary `json:"summary,omitempty"`

	Duration time.Duration `json:"duration"`
}

// NewResult creates a passing result for s.
func NewResult(s *Scenario) *Result {
	return &Result{
		Name:   s.Name,
		Task:   s.Task,
		Metric: s.metric(),
		Pass:   true,
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
