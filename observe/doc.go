// Package observe provides observability primitives for secret resolution.
//
// It carries a redacting structured logger (zerolog underneath), OpenTelemetry
// metrics and tracing for backend lookups, and a Middleware that instruments a
// single lookup without ever recording the resolved value. Exporter selection
// lives in the exporters subpackage.
package observe
