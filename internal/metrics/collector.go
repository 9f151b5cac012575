package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsDesc = prometheus.NewDesc(
		"microservice_requests_total",
		"Total requests received",
		nil, nil,
	)
	byStatusDesc = prometheus.NewDesc(
		"microservice_requests_by_status",
		"Requests by response status code",
		[]string{"status"}, nil,
	)
	byEndpointDesc = prometheus.NewDesc(
		"microservice_requests_by_endpoint",
		"Requests by endpoint",
		[]string{"endpoint"}, nil,
	)
	serviceCallsDesc = prometheus.NewDesc(
		"microservice_service_calls_total",
		"Attempted downstream service calls",
		[]string{"service"}, nil,
	)
	inFlightDesc = prometheus.NewDesc(
		"microservice_requests_in_flight",
		"Requests currently being handled",
		nil, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		"microservice_uptime_seconds",
		"Process uptime in seconds",
		nil, nil,
	)
)

// Collector exposes the aggregator's counters to prometheus. It emits
// const metrics from a Snapshot at scrape time, so the exposition view
// is always derived from the same counters as the status endpoint.
type Collector struct {
	agg *Aggregator
}

func NewCollector(agg *Aggregator) *Collector {
	return &Collector{agg: agg}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- byStatusDesc
	ch <- byEndpointDesc
	ch <- serviceCallsDesc
	ch <- inFlightDesc
	ch <- uptimeDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.agg.Snapshot()

	ch <- prometheus.MustNewConstMetric(requestsDesc, prometheus.CounterValue, float64(snap.TotalRequests))
	ch <- prometheus.MustNewConstMetric(inFlightDesc, prometheus.GaugeValue, float64(snap.InFlight))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, snap.UptimeSeconds)

	for status, count := range snap.ByStatus {
		ch <- prometheus.MustNewConstMetric(byStatusDesc, prometheus.CounterValue, float64(count), status)
	}
	for endpoint, count := range snap.ByEndpoint {
		ch <- prometheus.MustNewConstMetric(byEndpointDesc, prometheus.CounterValue, float64(count), endpoint)
	}
	for service, count := range snap.ByService {
		ch <- prometheus.MustNewConstMetric(serviceCallsDesc, prometheus.CounterValue, float64(count), service)
	}
}

// Handler serves the exposition format for the aggregator on a private
// registry.
func Handler(agg *Aggregator) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(agg))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
