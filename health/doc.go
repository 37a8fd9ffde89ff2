// Package health provides health checking for secret backends.
//
// Every backend can report whether it is usable: the environment backend
// reports which dotenv files it loaded, the keychain backend probes the OS
// store, and the cloud backend reports whether it is configured. An
// Aggregator runs those checks and produces an ordered Report.
//
//	agg := health.NewAggregator()
//	agg.RegisterAll(resolver.HealthCheckers()...)
//
//	report := agg.CheckAll(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    // at least one backend cannot serve lookups
//	}
//
// The package also exposes the report over HTTP:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health, /health/{name}
package health
