package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/neurlang/automl/fetch"
	"github.com/neurlang/automl/logging"
	"github.com/neurlang/automl/tasks"
)

// rootOptions holds the global flags and what is built from them.
type rootOptions struct {
	LogLevel    string
	LogFormat   string
	CacheDir    string
	MetricsAddr string

	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *tasks.Metrics
	server   *http.Server
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "automl",
		Short: "Hashtron AutoML for images",
		Long: `Fit image classification and object detection models with a small
hyperparameter search, and check them against conformance scenarios.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.shutdown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.LogFormat, "log-format", string(logging.FormatText), "log format (text|json)")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "dataset cache directory (default $"+fetch.CacheDirEnv+" or the user cache dir)")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	cmd.AddCommand(newFitCommand(opts))
	cmd.AddCommand(newConformanceCommand(opts))
	cmd.AddCommand(newSynthCommand(opts))

	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Config{
		Level:  o.LogLevel,
		Format: logging.Format(o.LogFormat),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return commandError("invalid logging flags", err)
	}
	o.logger = logger

	o.registry = prometheus.NewRegistry()
	o.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	o.metrics = tasks.NewMetrics(o.registry)

	if o.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))
		o.server = &http.Server{Addr: o.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				o.logger.Error("metrics server failed", "addr", o.MetricsAddr, "error", err)
			}
		}()
		o.logger.Info("serving metrics", "addr", o.MetricsAddr)
	}
	return nil
}

func (o *rootOptions) shutdown() error {
	if o.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return o.server.Shutdown(ctx)
}

func (o *rootOptions) fetcher() *fetch.Fetcher {
	return fetch.New(o.CacheDir, o.logger)
}
