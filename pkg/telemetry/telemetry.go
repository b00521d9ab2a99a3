package telemetry

import (
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
)

// Setup configures the global OpenTelemetry SDK from the standard OTEL_*
// and HONEYCOMB_* environment variables. The returned function flushes and
// shuts the exporters down.
func Setup(serviceName string) (func(), error) {
	bsp := honeycomb.NewBaggageSpanProcessor()

	return otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
		otelconfig.WithSpanProcessor(bsp),
	)
}
