package api

import (
	"net/http"
	"time"

	"github.com/svcgateway/backend/internal/store"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument records request counters around every request and feeds
// the relational audit log when that backend is up. The audit write is
// fire-and-forget; it never delays the response.
func (h *Handlers) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig := r.Method + " " + r.URL.Path
		started := time.Now()

		h.agg.RecordRequestStart(sig)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		h.agg.RecordRequestEnd(sig, rec.status)

		entry := store.RequestLog{
			Endpoint:     r.URL.Path,
			Method:       r.Method,
			StatusCode:   rec.status,
			ResponseTime: int(time.Since(started) / time.Millisecond),
			IPAddress:    r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		}
		go h.mgr.LogRequest(entry)
	})
}
