package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/svcgateway/backend/internal/dispatch"
	"github.com/svcgateway/backend/internal/metrics"
	"github.com/svcgateway/backend/internal/store"
)

const (
	defaultCacheTTL   = 3600  // seconds
	defaultSessionTTL = 86400 // seconds
)

type Handlers struct {
	mgr        *store.Manager
	dispatcher *dispatch.Dispatcher
	agg        *metrics.Aggregator
	service    string
	version    string
}

func NewHandlers(mgr *store.Manager, d *dispatch.Dispatcher, agg *metrics.Aggregator, service, version string) *Handlers {
	return &Handlers{
		mgr:        mgr,
		dispatcher: d,
		agg:        agg,
		service:    service,
		version:    version,
	}
}

// Routes registers all gateway endpoints.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.RootHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.HandleFunc("GET /ready", h.ReadyHandler)
	mux.HandleFunc("GET /status", h.StatusHandler)
	mux.HandleFunc("GET /services", h.ServicesHandler)
	mux.Handle("GET /metrics", metrics.Handler(h.agg))
	mux.HandleFunc("POST /call/{service}", h.CallHandler)

	mux.HandleFunc("GET /db/health", h.DBHealthHandler)
	mux.HandleFunc("GET /db/stats", h.DBStatsHandler)
	mux.HandleFunc("POST /db/users", h.CreateUserHandler)
	mux.HandleFunc("GET /db/users/{id}", h.GetUserHandler)
	mux.HandleFunc("GET /db/users/{id}/activity", h.UserActivityHandler)
	mux.HandleFunc("POST /db/cache/{key}", h.CacheSetHandler)
	mux.HandleFunc("GET /db/cache/{key}", h.CacheGetHandler)
	mux.HandleFunc("DELETE /db/cache/{key}", h.CacheDeleteHandler)
	mux.HandleFunc("POST /db/sessions", h.StoreSessionHandler)
	mux.HandleFunc("GET /db/sessions/{id}", h.GetSessionHandler)

	return mux
}

func (h *Handlers) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: "Welcome to the service gateway",
		Service: h.service,
		Version: h.version,
		Status:  "running",
	})
}

// HealthHandler reports liveness of the HTTP layer itself; it is
// always 200 regardless of backend state.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   h.service,
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler reports readiness with per-dependency booleans. The
// service is considered ready whenever the HTTP layer answers, even in
// degraded mode; the booleans reflect connection state, not live probes.
func (h *Handlers) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	states := h.mgr.States()
	writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Dependencies: map[string]bool{
			"postgresql": states[store.BackendPostgres] == store.StateConnected,
			"redis":      states[store.BackendRedis] == store.StateConnected,
			"dynamodb":   states[store.BackendDynamo] == store.StateConnected,
		},
	})
}

func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.agg.Snapshot()
	writeJSON(w, http.StatusOK, StatusResponse{
		Service:       h.service,
		Version:       h.version,
		Status:        "running",
		UptimeSeconds: snap.UptimeSeconds,
		Metrics:       snap,
	})
}

func (h *Handlers) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	names := h.dispatcher.Names()
	writeJSON(w, http.StatusOK, ServicesResponse{Services: names, Count: len(names)})
}

// CallHandler proxies a request body to the named downstream service.
// Unknown services map to 404, timeouts to 504, transport failures to
// 502; a completed downstream response passes through verbatim.
func (h *Handlers) CallHandler(w http.ResponseWriter, r *http.Request) {
	serviceName := r.PathValue("service")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	result, err := h.dispatcher.Dispatch(serviceName, payload)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownService) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("service '%s' not found", serviceName))
			return
		}
		var dispErr *dispatch.Error
		if errors.As(err, &dispErr) {
			switch dispErr.Kind {
			case dispatch.KindTimeout:
				writeError(w, http.StatusGatewayTimeout, fmt.Sprintf("service '%s' timed out", serviceName))
			default:
				writeError(w, http.StatusBadGateway, fmt.Sprintf("service '%s' unreachable", serviceName))
			}
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.Status)
	w.Write(result.Body)
}

func (h *Handlers) DBHealthHandler(w http.ResponseWriter, r *http.Request) {
	report := h.mgr.Health(r.Context())
	writeJSON(w, http.StatusOK, DatabaseHealthResponse{
		Status: report.Status,
		Databases: DatabaseStatus{
			PostgreSQL: report.Backends[store.BackendPostgres].Available,
			Redis:      report.Backends[store.BackendRedis].Available,
			DynamoDB:   report.Backends[store.BackendDynamo].Available,
			LastCheck:  report.LastCheck,
		},
	})
}

func (h *Handlers) DBStatsHandler(w http.ResponseWriter, r *http.Request) {
	states := h.mgr.States()
	writeJSON(w, http.StatusOK, StatsResponse{
		PostgresConnected: states[store.BackendPostgres] == store.StateConnected,
		RedisConnected:    states[store.BackendRedis] == store.StateConnected,
		DynamoConnected:   states[store.BackendDynamo] == store.StateConnected,
		Timestamp:         time.Now().UTC(),
	})
}

func (h *Handlers) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Username == "" || req.Email == "" || req.FullName == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.mgr.CreateUser(r.Context(), req.Username, req.Email, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "PostgreSQL not available")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "username or email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.mgr.GetUser(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "PostgreSQL not available")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) UserActivityHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	activities, err := h.mgr.GetUserActivity(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "DynamoDB not available")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get user activity")
		return
	}

	if activities == nil {
		activities = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

func (h *Handlers) CacheSetHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(value) {
		writeError(w, http.StatusBadRequest, "body must be valid JSON")
		return
	}

	ttl := defaultCacheTTL
	if v := r.URL.Query().Get("ttl"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid ttl")
			return
		}
		ttl = parsed
	}

	if err := h.mgr.CacheSet(r.Context(), key, value, time.Duration(ttl)*time.Second); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Redis not available")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set cache")
		return
	}

	writeJSON(w, http.StatusOK, ServiceResponse{
		Success:   true,
		Message:   fmt.Sprintf("Cache key '%s' set successfully", key),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) CacheGetHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := h.mgr.CacheGet(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "Redis not available")
		case errors.Is(err, store.ErrCacheMiss):
			writeError(w, http.StatusNotFound, "cache key not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get cache")
		}
		return
	}

	writeJSON(w, http.StatusOK, ServiceResponse{
		Success:   true,
		Message:   "Cache value retrieved successfully",
		Data:      value,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) CacheDeleteHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := h.mgr.CacheDelete(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Redis not available")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete cache")
		return
	}

	writeJSON(w, http.StatusOK, ServiceResponse{
		Success:   true,
		Message:   fmt.Sprintf("Cache key '%s' deleted successfully", key),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) StoreSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SessionID == "" || len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.TTL <= 0 {
		req.TTL = defaultSessionTTL
	}

	err := h.mgr.StoreSession(r.Context(), req.SessionID, req.Data, time.Duration(req.TTL)*time.Second)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "DynamoDB not available")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}

	writeJSON(w, http.StatusOK, ServiceResponse{
		Success:   true,
		Message:   "Session data stored successfully",
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handlers) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	data, err := h.mgr.GetSession(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "DynamoDB not available")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to get session")
		}
		return
	}

	writeJSON(w, http.StatusOK, ServiceResponse{
		Success:   true,
		Message:   "Session data retrieved successfully",
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
