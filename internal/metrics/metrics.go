// Package metrics aggregates process-wide request counters. The JSON
// status view and the prometheus scrape view are both derived from the
// same counters via Snapshot; there is no second set of counters.
package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator holds the request counters. Increments are atomic per
// entry; cross-map consistency inside a single Snapshot is not
// guaranteed and not required.
type Aggregator struct {
	start time.Time

	totalRequests atomic.Int64
	inFlight      atomic.Int64

	byEndpoint sync.Map // string -> *atomic.Int64
	byStatus   sync.Map // string -> *atomic.Int64
	byService  sync.Map // string -> *atomic.Int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{start: time.Now()}
}

// RecordRequestStart counts an admitted request against its endpoint
// signature (e.g. "GET /health").
func (a *Aggregator) RecordRequestStart(endpoint string) {
	a.totalRequests.Add(1)
	a.inFlight.Add(1)
	incr(&a.byEndpoint, endpoint)
}

// RecordRequestEnd counts the response status for a finished request.
func (a *Aggregator) RecordRequestEnd(endpoint string, statusCode int) {
	a.inFlight.Add(-1)
	incr(&a.byStatus, strconv.Itoa(statusCode))
}

// RecordServiceCall counts one attempted downstream call.
func (a *Aggregator) RecordServiceCall(service string) {
	incr(&a.byService, service)
}

// Snapshot is a read-only view of the counters.
type Snapshot struct {
	TotalRequests int64            `json:"requests_total"`
	InFlight      int64            `json:"requests_in_flight"`
	ByEndpoint    map[string]int64 `json:"requests_by_endpoint"`
	ByStatus      map[string]int64 `json:"requests_by_status"`
	ByService     map[string]int64 `json:"service_calls"`
	Uptime        time.Duration    `json:"-"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}

func (a *Aggregator) Snapshot() Snapshot {
	uptime := time.Since(a.start)
	return Snapshot{
		TotalRequests: a.totalRequests.Load(),
		InFlight:      a.inFlight.Load(),
		ByEndpoint:    collect(&a.byEndpoint),
		ByStatus:      collect(&a.byStatus),
		ByService:     collect(&a.byService),
		Uptime:        uptime,
		UptimeSeconds: uptime.Seconds(),
	}
}

func incr(m *sync.Map, key string) {
	v, ok := m.Load(key)
	if !ok {
		v, _ = m.LoadOrStore(key, new(atomic.Int64))
	}
	v.(*atomic.Int64).Add(1)
}

func collect(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}
