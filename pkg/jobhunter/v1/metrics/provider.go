package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider gives access to the Prometheus registry holding the
// jobhunter collectors, so callers can expose it however they like.
type RegistryProvider interface {
	Registry() *prometheus.Registry
}
