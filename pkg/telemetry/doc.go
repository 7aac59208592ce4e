// Package telemetry wires OpenTelemetry tracing, OpenTelemetry metrics and
// the Prometheus exposition endpoint for the gateway. Request handling never
// blocks on telemetry; recording failures are dropped silently.
package telemetry
