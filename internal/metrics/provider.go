package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1/metrics"
)

// PrometheusRegistryProvider implements the RegistryProvider interface
// using a standard Prometheus registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a new metrics provider backed by a
// fresh Prometheus registry.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

var _ rex.RegistryProvider = (*PrometheusRegistryProvider)(nil)
