package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/svcgateway/backend/internal/dispatch"
	"github.com/svcgateway/backend/internal/metrics"
	"github.com/svcgateway/backend/internal/store"
)

// newTestHandlers builds a handler set with no backend configured, so
// every store call fails fast with ErrUnavailable.
func newTestHandlers(t *testing.T, targets []dispatch.Target) *Handlers {
	t.Helper()

	mgr := store.NewManager(store.ManagerConfig{})
	agg := metrics.NewAggregator()
	d := dispatch.NewDispatcher(targets, agg.RecordServiceCall)
	return NewHandlers(mgr, d, agg, "service-gateway", "1.0.0")
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "application/json") {
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestRootHandler(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["service"] != "service-gateway" {
		t.Errorf("service = %v, want service-gateway", body["service"])
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v, want running", body["status"])
	}
}

func TestHealthHandler_AlwaysHealthy(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with no backend up", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestReadyHandler_DegradedStillReady(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/ready", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	deps, ok := body["dependencies"].(map[string]any)
	if !ok {
		t.Fatalf("dependencies missing: %v", body)
	}
	for _, name := range []string{"postgresql", "redis", "dynamodb"} {
		if deps[name] != false {
			t.Errorf("dependencies[%s] = %v, want false", name, deps[name])
		}
	}
}

func TestServicesHandler(t *testing.T) {
	h := newTestHandlers(t, []dispatch.Target{
		{Name: "user-service", Host: "h", Port: 1},
		{Name: "order-service", Host: "h", Port: 2},
	})
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/services", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestCallHandler_UnknownService(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodPost, "/call/no-such-service", `{}`)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "no-such-service") {
		t.Errorf("error = %v, want the service name in the message", body["error"])
	}
}

func TestCallHandler_PassThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"created":true}`))
	}))
	defer ts.Close()

	h := newTestHandlers(t, []dispatch.Target{testTarget(t, ts.URL, "echo")})
	rec, _ := doJSON(t, h.Routes(), http.MethodPost, "/call/echo", `{"k":"v"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want the upstream 201 passed through", rec.Code)
	}
	if got := rec.Body.String(); got != `{"created":true}` {
		t.Errorf("body = %q, want the upstream body verbatim", got)
	}
}

func TestCallHandler_TransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	h := newTestHandlers(t, []dispatch.Target{{Name: "dead", Host: host, Port: port, Timeout: time.Second}})
	rec, _ := doJSON(t, h.Routes(), http.MethodPost, "/call/dead", `{}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestDBHandlers_Unavailable(t *testing.T) {
	h := newTestHandlers(t, nil)
	mux := h.Routes()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"create user", http.MethodPost, "/db/users", `{"username":"a","email":"a@x.com","full_name":"A"}`},
		{"get user", http.MethodGet, "/db/users/6a1f0f3e-3f49-4b54-9c6e-000000000001", ""},
		{"user activity", http.MethodGet, "/db/users/u1/activity", ""},
		{"cache set", http.MethodPost, "/db/cache/k", `{"v":1}`},
		{"cache get", http.MethodGet, "/db/cache/k", ""},
		{"cache delete", http.MethodDelete, "/db/cache/k", ""},
		{"store session", http.MethodPost, "/db/sessions", `{"session_id":"s1","data":{"k":"v"}}`},
		{"get session", http.MethodGet, "/db/sessions/s1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doJSON(t, mux, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503 when the backend is absent", rec.Code)
			}
		})
	}
}

func TestCreateUserHandler_BadRequest(t *testing.T) {
	h := newTestHandlers(t, nil)
	mux := h.Routes()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing fields", `{"username":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doJSON(t, mux, http.MethodPost, "/db/users", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetUserHandler_InvalidID(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, _ := doJSON(t, h.Routes(), http.MethodGet, "/db/users/not-a-uuid", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCacheSetHandler_RejectsNonJSON(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, _ := doJSON(t, h.Routes(), http.MethodPost, "/db/cache/k", "not json at all")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDBHealthHandler_AllDown(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/db/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
	dbs, ok := body["databases"].(map[string]any)
	if !ok {
		t.Fatalf("databases missing: %v", body)
	}
	for _, name := range []string{"postgresql", "redis", "dynamodb"} {
		if dbs[name] != false {
			t.Errorf("databases[%s] = %v, want false", name, dbs[name])
		}
	}
}

func TestStatusAndMetrics_SingleSourceOfTruth(t *testing.T) {
	h := newTestHandlers(t, nil)
	handler := h.Instrument(h.Routes())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("health status = %d, want 200", rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/call/unknown", strings.NewReader(`{}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("call status = %d, want 404", rec.Code)
	}

	// JSON view.
	statusRec, body := doJSON(t, handler, http.MethodGet, "/status", "")
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", statusRec.Code)
	}
	m, ok := body["metrics"].(map[string]any)
	if !ok {
		t.Fatalf("metrics missing: %v", body)
	}
	// 3 healths + 1 call + this status request itself.
	if m["requests_total"] != float64(5) {
		t.Errorf("requests_total = %v, want 5", m["requests_total"])
	}
	byStatus, _ := m["requests_by_status"].(map[string]any)
	if byStatus["200"] != float64(3) {
		t.Errorf(`requests_by_status["200"] = %v, want 3`, byStatus["200"])
	}
	if byStatus["404"] != float64(1) {
		t.Errorf(`requests_by_status["404"] = %v, want 1`, byStatus["404"])
	}

	// Exposition view reports the same counters.
	expRec := httptest.NewRecorder()
	handler.ServeHTTP(expRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if expRec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", expRec.Code)
	}
	exp := expRec.Body.String()
	for _, want := range []string{
		"microservice_requests_total 6",
		`microservice_requests_by_status{status="404"} 1`,
		`microservice_requests_by_endpoint{endpoint="GET /health"} 3`,
	} {
		if !strings.Contains(exp, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestDBStatsHandler(t *testing.T) {
	h := newTestHandlers(t, nil)
	rec, body := doJSON(t, h.Routes(), http.MethodGet, "/db/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["postgresql_connected"] != false {
		t.Errorf("postgresql_connected = %v, want false", body["postgresql_connected"])
	}
}

func testTarget(t *testing.T, rawURL, name string) dispatch.Target {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return dispatch.Target{Name: name, Host: host, Port: port, Timeout: time.Second}
}
