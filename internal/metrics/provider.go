package metrics

import (
	jhmetrics "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRegistryProvider owns a dedicated Prometheus registry, so
// jobhunter metrics never collide with the process default registry.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

var _ jhmetrics.RegistryProvider = (*PrometheusRegistryProvider)(nil)
