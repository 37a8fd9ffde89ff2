package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/opalsecrets/observe"
	"github.com/jonwraymond/opalsecrets/secret"
)

// shutdownTimeout bounds telemetry flushing on exit.
const shutdownTimeout = 5 * time.Second

// options holds the global flags.
type options struct {
	mode            string
	project         string
	envFiles        []string
	logLevel        string
	logFormat       string
	metricsExporter string
	tracingExporter string
}

// app carries what the root command builds for its subcommands.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer

	observer observe.Observer
	logger   observe.Logger
	registry *prometheus.Registry
	resolver *secret.Resolver
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "opalsecrets",
		Short: "Resolve secrets from the environment, the OS keychain and Secret Manager",
		Long: `opalsecrets resolves named secrets by querying, in order:
  - the process environment (after loading dotenv files)
  - the OS keychain under the OpalSuite service
  - Google Secret Manager, only in cloud mode

Environment variables:
  OPALSUITE_ENV                 Deployment mode; "cloud" enables Secret Manager
  OPALSECRETS_PROJECT_ID        Secret Manager project (default: ambient credentials)
  OPALSECRETS_ENV_FILES         Comma-separated dotenv files (default: .env)
  OPALSECRETS_KEYCHAIN_SERVICE  Keychain service namespace (default: OpalSuite)
  OPALSECRETS_CACHE_SIZE        Resolver cache entries (default: 128)
  OPALSECRETS_RETRY_ATTEMPTS    Secret Manager attempts per lookup (default: 3)
  OPALSECRETS_RETRY_DELAY       Delay between attempts (default: 2s)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.mode, "mode", "", "deployment mode; overrides $OPALSUITE_ENV")
	flags.StringVar(&a.opts.project, "project", "", "Secret Manager project ID")
	flags.StringSliceVar(&a.opts.envFiles, "env-file", nil, "dotenv file to load (repeatable)")
	flags.StringVar(&a.opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&a.opts.logFormat, "log-format", observe.FormatConsole, "log format: json, console")
	flags.StringVar(&a.opts.metricsExporter, "metrics-exporter", "none", "metrics exporter: prometheus, otlp, stdout, none")
	flags.StringVar(&a.opts.tracingExporter, "tracing-exporter", "none", "tracing exporter: otlp, stdout, none")

	root.AddCommand(
		newGetCmd(a),
		newCredentialCmd(a),
		newExpandCmd(a),
		newHealthCmd(a),
	)
	return root
}

// run wraps a subcommand so the observer and resolver are built before it
// and released after it, whether or not it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.setup(cmd); err != nil {
			return errors.Join(err, a.teardown(cmd))
		}
		err := fn(cmd, args)
		return errors.Join(err, a.teardown(cmd))
	}
}

// setup builds the observer and the resolver once for the invoked command.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	obsCfg := observe.Config{
		ServiceName: "opalsecrets",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(a.opts.tracingExporter),
			Exporter:  a.opts.tracingExporter,
			SamplePct: 1.0,
			Output:    a.stderr,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(a.opts.metricsExporter),
			Exporter: a.opts.metricsExporter,
			Output:   a.stderr,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   a.opts.logLevel,
			Format:  a.opts.logFormat,
			Output:  a.stderr,
		},
	}
	if a.opts.metricsExporter == "prometheus" {
		a.registry = prometheus.NewRegistry()
		obsCfg.Metrics.Registerer = a.registry
	}

	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	a.observer = obs
	a.logger = obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	cfg, err := secret.ConfigFromEnv()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = a.opts.mode
	}
	if cmd.Flags().Changed("project") {
		cfg.ProjectID = a.opts.project
	}
	if cmd.Flags().Changed("env-file") {
		cfg.EnvFiles = a.opts.envFiles
	}
	cfg.Logger = a.logger
	cfg.Middleware = mw

	a.resolver, err = secret.New(ctx, cfg)
	return err
}

func (a *app) teardown(cmd *cobra.Command) error {
	var errs []error
	if a.resolver != nil {
		errs = append(errs, a.resolver.Close())
		a.resolver = nil
	}
	if a.observer != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.observer.Shutdown(ctx))
		a.observer = nil
	}
	return errors.Join(errs...)
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}
