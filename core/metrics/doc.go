// Package metrics defines the sinks recording committed plans, detected
// conflicts and urgent insertions. Sinks are built from configuration through
// a registry; several configured sinks are combined into a MultiSink.
// Implementations live in infra/metrics.
package metrics
