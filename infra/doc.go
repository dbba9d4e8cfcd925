// Package infra holds the adapters behind the core scheduling interfaces:
// plan storage, MQTT, metrics sinks, error monitoring and logging. Core
// packages never import infra.
package infra
