// Package exporters serves collected metrics over HTTP.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus handler for the default registry, which
// holds every promauto metric plus the collectors passed here.
func HTTPHandler(collectors ...prometheus.Collector) http.Handler {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
	return promhttp.Handler()
}
