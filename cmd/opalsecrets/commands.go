package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/opalsecrets/health"
	"github.com/jonwraymond/opalsecrets/observe"
	"github.com/jonwraymond/opalsecrets/secret"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		def     string
		require bool
	)
	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Print the value of a secret",
		Long: `Print the first value found for NAME across the backend chain.

Without flags a missing secret prints nothing. --default prints a fallback
instead and --require makes a missing secret an error.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			var (
				value string
				err   error
			)
			switch {
			case require:
				value, err = a.resolver.Require(ctx, name)
			case cmd.Flags().Changed("default"):
				value, err = a.resolver.GetOrDefault(ctx, name, def)
			default:
				var found bool
				value, found, err = a.resolver.GetSecret(ctx, name)
				if err == nil && !found {
					fmt.Fprintf(a.stderr, "%s: not found\n", name)
					return nil
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, value)
			return nil
		}),
	}
	cmd.Flags().StringVar(&def, "default", "", "value to print when the secret is missing")
	cmd.Flags().BoolVar(&require, "require", false, "fail when the secret is missing")
	cmd.MarkFlagsMutuallyExclusive("default", "require")
	return cmd
}

func newCredentialCmd(a *app) *cobra.Command {
	var (
		audience string
		ttl      time.Duration
		token    bool
	)
	cmd := &cobra.Command{
		Use:   "credential NAME",
		Short: "Inspect a service-account credential",
		Long: `Resolve NAME as a service-account JSON document and print it with key
material masked. With --token, print a self-signed JWT for the account instead.`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			cred, found, err := a.resolver.GetServiceAccountJSON(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %q is missing or not a service-account document", secret.ErrNotFound, args[0])
			}

			if token {
				signed, err := cred.SignedJWT(audience, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, signed)
				return nil
			}

			out, err := json.MarshalIndent(cred.Redacted(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(out))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&token, "token", false, "print a self-signed JWT")
	cmd.Flags().StringVar(&audience, "audience", "", "JWT audience")
	cmd.Flags().DurationVar(&ttl, "ttl", secret.DefaultTokenTTL, "JWT lifetime")
	return cmd
}

func newExpandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expand VALUE",
		Short: "Expand ${VAR} and secretref:NAME references in a value",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			out, err := a.resolver.ResolveValue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, out)
			return nil
		}),
	}
}

func newHealthCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report backend health",
		Long: `Check every backend once and print the report as JSON. With --listen,
serve /healthz, /readyz and /health (and /metrics with the prometheus
exporter) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			agg := health.NewAggregator()
			agg.RegisterAll(a.resolver.HealthCheckers()...)

			if listen != "" {
				return a.serveHealth(cmd.Context(), listen, agg)
			}

			report := agg.CheckAll(cmd.Context())
			out, err := json.MarshalIndent(health.NewHealthResponse(report), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, string(out))
			if report.Status == health.StatusUnhealthy {
				return errors.New("one or more backends are unhealthy")
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&listen, "listen", "", "serve health endpoints on this address")
	return cmd
}

func (a *app) serveHealth(ctx context.Context, addr string, agg *health.Aggregator) error {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	if a.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Info(ctx, "serving health endpoints", observe.Field{Key: "addr", Value: ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
