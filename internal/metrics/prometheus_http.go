package metrics

import (
	"net/http"

	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves the recorder's metrics.
func (p *PrometheusRecorder) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
