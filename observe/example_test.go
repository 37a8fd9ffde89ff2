package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/opalsecrets/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "example-service",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleLookupMeta_SpanName() {
	fmt.Println(observe.LookupMeta{Backend: "env", Secret: "API_KEY"}.SpanName())
	fmt.Println(observe.LookupMeta{Backend: "cloud", Secret: "SA", Operation: "credential"}.SpanName())
	// Output:
	// secret.fetch.env
	// secret.credential.cloud
}

func ExampleLogger_WithBackend() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf).WithBackend("keychain")

	logger.Info(context.Background(), "lookup complete",
		observe.Field{Key: "secret.name", Value: "GITHUB_TOKEN"},
		observe.Field{Key: "secret.value", Value: "ghp_abc"},
	)

	fmt.Println("backend tagged:", bytes.Contains(buf.Bytes(), []byte(`"backend":"keychain"`)))
	fmt.Println("name logged:", bytes.Contains(buf.Bytes(), []byte("GITHUB_TOKEN")))
	fmt.Println("value logged:", bytes.Contains(buf.Bytes(), []byte("ghp_abc")))
	// Output:
	// backend tagged: true
	// name logged: true
	// value logged: false
}

func ExampleRedactMessage() {
	fmt.Println(observe.RedactMessage("connecting with password=hunter2"))
	fmt.Println(observe.RedactMessage("resolving API_KEY"))
	// Output:
	// connecting with password=[REDACTED]
	// resolving API_KEY
}

func ExampleMiddleware_Wrap() {
	ctx := context.Background()

	obs, _ := observe.NewObserver(ctx, observe.Config{
		ServiceName: "example",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
	})
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	mw, _ := observe.MiddlewareFromObserver(obs)

	fetch := mw.Wrap(func(ctx context.Context, meta observe.LookupMeta) (string, bool, error) {
		return "abc123", true, nil
	})

	_, found, err := fetch(ctx, observe.LookupMeta{Backend: "env", Secret: "API_KEY"})
	fmt.Println("found:", found, "err:", err)
	// Output:
	// found: true err: <nil>
}

func ExampleParseLogLevel() {
	for _, s := range []string{"debug", "info", "warn", "error", "unknown"} {
		fmt.Printf("%s -> %s\n", s, observe.ParseLogLevel(s))
	}
	// Output:
	// debug -> debug
	// info -> info
	// warn -> warn
	// error -> error
	// unknown -> info
}
