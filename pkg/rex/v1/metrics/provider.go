package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider defines the interface for accessing the runtime's metrics
// registry. It lets embedders expose store and effect-queue metrics through
// their chosen surface (e.g. a Prometheus HTTP endpoint).
type RegistryProvider interface {
	// Registry returns the Prometheus registry containing go-rex metrics.
	Registry() *prometheus.Registry
}
