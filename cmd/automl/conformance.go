package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neurlang/automl/conformance"
)

// conformanceOptions holds flags for the conformance command.
type conformanceOptions struct {
	*rootOptions
	JSON bool
}

// conformanceReport is the JSON output of the conformance command.
type conformanceReport struct {
	Results []*conformance.Result `json:"results"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Total   int                   `json:"total"`
}

func newConformanceCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &conformanceOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "conformance [scenarios.yaml ...]",
		Short: "Run task conformance scenarios",
		Long: `Run conformance scenarios. Without arguments the built-in scenarios run:
one trial of image classification on shopee-iet and one trial of object
detection on tiny_motorbike, each requiring a positive validation metric.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid scenario file, etc.)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConformance(cmd, opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the results as JSON")
	return cmd
}

func runConformance(cmd *cobra.Command, opts *conformanceOptions, files []string) error {
	scenarios := conformance.DefaultScenarios()
	if len(files) > 0 {
		scenarios = nil
		for _, f := range files {
			s, err := conformance.LoadScenarios(f)
			if err != nil {
				return commandError(f, err)
			}
			scenarios = append(scenarios, s...)
		}
	}

	h := conformance.New(opts.fetcher(),
		conformance.WithLogger(opts.logger),
		conformance.WithMetrics(opts.metrics))

	w := cmd.OutOrStdout()
	report := conformanceReport{Total: len(scenarios)}
	for _, s := range scenarios {
		result, err := h.Run(cmd.Context(), s)
		if err != nil {
			result = conformance.NewResult(&s)
			result.AddError(err.Error())
		}
		report.Results = append(report.Results, result)
		if result.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		if opts.JSON {
			continue
		}
		if result.Pass {
			fmt.Fprintf(w, "✓ %s %s=%.4f (%s)\n", s.Name, result.Metric, result.Value, humanize.FtoaWithDigits(result.Duration.Seconds(), 1)+"s")
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
	}
	if report.Failed > 0 {
		return &exitError{code: exitFailure, message: fmt.Sprintf("%d of %d scenarios failed", report.Failed, report.Total)}
	}
	return nil
}
