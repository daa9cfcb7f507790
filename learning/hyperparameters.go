package learning

import (
	"log/slog"

	"github.com/neurlang/automl/parallel"
)

// HyperParameters configures the hashtron solver.
type HyperParameters struct {
	Threads int // number of threads for learning

	Seed int64 // salts are searched starting from a value derived from Seed

	Attempts uint32 // salts tried per reduction step and for the final step

	MaxSteps int // maximum number of reduction steps

	// Factor scales the initial modulo, which is Factor times the product of
	// the false and true set sizes.
	Factor uint32

	// the modulo is reduced by Numerator/Denominator and then by Subtractor
	Numerator   uint32
	Denominator uint32
	Subtractor  uint32

	Logger *slog.Logger
}

// Default solver settings.
const (
	DefaultAttempts    = 1 << 14
	DefaultMaxSteps    = 64
	DefaultFactor      = 1
	DefaultNumerator   = 3
	DefaultDenominator = 4
	DefaultSubtractor  = 1
)

// WithDefaults returns a copy of h with unset fields filled in.
func (h HyperParameters) WithDefaults() HyperParameters {
	if h.Threads <= 0 {
		h.Threads = parallel.DefaultThreads()
	}
	if h.Attempts == 0 {
		h.Attempts = DefaultAttempts
	}
	if h.MaxSteps <= 0 {
		h.MaxSteps = DefaultMaxSteps
	}
	if h.Factor == 0 {
		h.Factor = DefaultFactor
	}
	if h.Numerator == 0 || h.Denominator == 0 || h.Numerator >= h.Denominator {
		h.Numerator = DefaultNumerator
		h.Denominator = DefaultDenominator
	}
	if h.Subtractor == 0 {
		h.Subtractor = DefaultSubtractor
	}
	if h.Logger == nil {
		h.Logger = slog.New(slog.DiscardHandler)
	}
	return h
}
