package telemetry

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// untraced paths are polled by probes and scrapers.
var untraced = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
	"/events":  true,
}

// spanName collapses script IDs so /scripts/{id} is one span name rather
// than one per script.
func spanName(_ string, r *http.Request) string {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) > 2 && parts[1] == "scripts" && parts[2] != "" {
		parts[2] = "{id}"
	}
	return r.Method + " " + strings.Join(parts, "/")
}

// WrapHandler traces inbound requests, skipping probe and stream endpoints.
func WrapHandler(handler http.Handler, serverName string) http.Handler {
	return otelhttp.NewHandler(handler, serverName,
		otelhttp.WithFilter(func(r *http.Request) bool { return !untraced[r.URL.Path] }),
		otelhttp.WithSpanNameFormatter(spanName),
	)
}

// WrapTransport propagates trace context on outbound requests. A nil
// transport means http.DefaultTransport.
func WrapTransport(transport http.RoundTripper) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return otelhttp.NewTransport(transport)
}
