package netatmo

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/prometheus/client_golang/prometheus"
)

// NewAPIMetrics creates request metrics for calls to the Netatmo API. Paths
// are collapsed to the endpoint name so home ids don't blow up cardinality.
func NewAPIMetrics(labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   "netatmo",
		Subsystem:   "bridge",
		ConstLabels: labels,
		LabelValues: func(request *http.Request, statusCode int) (string, string, string) {
			path := request.URL.Path
			if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
				path = path[idx+1:]
			}
			return request.Method, path, strconv.Itoa(statusCode)
		},
	})
}

// Instrument wraps the client's transport so every API call is measured.
func (c *Client) Instrument(m metrics.RequestMetrics) {
	rt := c.HTTPClient.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.HTTPClient = &http.Client{
		Timeout: c.HTTPClient.Timeout,
		Transport: roundtripper.New(
			roundtripper.WithRequestMetrics(m),
			roundtripper.WithRoundTripper(rt),
		),
	}
}
