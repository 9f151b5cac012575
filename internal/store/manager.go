package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const probeTimeout = 2 * time.Second

type Backend string

const (
	BackendPostgres Backend = "postgresql"
	BackendRedis    Backend = "redis"
	BackendDynamo   Backend = "dynamodb"
)

// HandleState tags the lifecycle state of one backend handle.
type HandleState string

const (
	StateNotConfigured HandleState = "not_configured"
	StateConnected     HandleState = "connected"
	StateFailed        HandleState = "failed"
)

// ManagerConfig carries the connection parameters for the three
// backends. Each is independently optional; an empty value means the
// backend is not deployed.
type ManagerConfig struct {
	DatabaseURL   string
	RedisEndpoint string
	Dynamo        DynamoConfig
}

type handleStatus struct {
	state     HandleState
	lastError string
}

// Manager owns the three backend handles. Availability is decided once
// at Initialize time and re-checked only via explicit Health calls,
// never implicitly inside a data operation.
type Manager struct {
	cfg ManagerConfig

	mu     sync.Mutex // guards initialize/close transitions only
	closed bool

	pg     *PostgresHandle
	redis  *RedisHandle
	dynamo *DynamoHandle

	status map[Backend]*handleStatus
}

// NewManager creates a manager; no connections are made until Initialize.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg: cfg,
		status: map[Backend]*handleStatus{
			BackendPostgres: {state: StateNotConfigured},
			BackendRedis:    {state: StateNotConfigured},
			BackendDynamo:   {state: StateNotConfigured},
		},
	}
}

// Initialize attempts to bring up each backend independently. A failure
// in one backend never aborts the others or the service; the outcome of
// each attempt is logged and recorded. Initialize never returns an error.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL not provided, skipping postgres initialization")
	} else if pg, err := OpenPostgres(m.cfg.DatabaseURL); err != nil {
		log.Printf("failed to initialize postgres connection: %v", err)
		m.status[BackendPostgres] = &handleStatus{state: StateFailed, lastError: err.Error()}
	} else {
		m.pg = pg
		m.status[BackendPostgres] = &handleStatus{state: StateConnected}
		log.Printf("postgres connection initialized")
	}

	if m.cfg.RedisEndpoint == "" {
		log.Printf("REDIS_ENDPOINT not provided, skipping redis initialization")
	} else if rd, err := OpenRedis(m.cfg.RedisEndpoint); err != nil {
		log.Printf("failed to initialize redis connection: %v", err)
		m.status[BackendRedis] = &handleStatus{state: StateFailed, lastError: err.Error()}
	} else {
		m.redis = rd
		m.status[BackendRedis] = &handleStatus{state: StateConnected}
		log.Printf("redis connection initialized")
	}

	if m.cfg.Dynamo.TableName == "" {
		log.Printf("DYNAMO_TABLE_NAME not provided, skipping dynamodb initialization")
	} else if dy, err := OpenDynamo(ctx, m.cfg.Dynamo); err != nil {
		log.Printf("failed to initialize dynamodb connection: %v", err)
		m.status[BackendDynamo] = &handleStatus{state: StateFailed, lastError: err.Error()}
	} else {
		m.dynamo = dy
		m.status[BackendDynamo] = &handleStatus{state: StateConnected}
		log.Printf("dynamodb connection initialized")
	}
}

// BackendHealth is the result of one active probe.
type BackendHealth struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// HealthReport aggregates active probe results across backends.
type HealthReport struct {
	Status    string                    `json:"status"`
	Backends  map[Backend]BackendHealth `json:"backends"`
	LastCheck time.Time                 `json:"last_check"`
}

// Health actively probes each connected backend with its own timeout.
// A probe failure marks the backend unavailable for this call only; it
// does not tear down the stored connection.
func (m *Manager) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Backends:  make(map[Backend]BackendHealth, 3),
		LastCheck: time.Now().UTC(),
	}

	if m.pg != nil {
		report.Backends[BackendPostgres] = m.probe(ctx, m.pg.Probe)
	} else {
		report.Backends[BackendPostgres] = BackendHealth{Error: ErrUnavailable.Error()}
	}
	if m.redis != nil {
		report.Backends[BackendRedis] = m.probe(ctx, m.redis.Probe)
	} else {
		report.Backends[BackendRedis] = BackendHealth{Error: ErrUnavailable.Error()}
	}
	if m.dynamo != nil {
		report.Backends[BackendDynamo] = m.probe(ctx, m.dynamo.Probe)
	} else {
		report.Backends[BackendDynamo] = BackendHealth{Error: ErrUnavailable.Error()}
	}

	report.Status = "healthy"
	for _, b := range report.Backends {
		if !b.Available {
			report.Status = "degraded"
			break
		}
	}
	return report
}

func (m *Manager) probe(ctx context.Context, fn func(context.Context) error) BackendHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := fn(probeCtx); err != nil {
		log.Printf("health probe failed: %v", err)
		return BackendHealth{Available: false, Error: err.Error()}
	}
	return BackendHealth{Available: true}
}

// States reports the lifecycle state of each backend without any I/O.
func (m *Manager) States() map[Backend]HandleState {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[Backend]HandleState, len(m.status))
	for k, v := range m.status {
		states[k] = v.state
	}
	return states
}

// Connected reports whether a backend currently holds a live handle.
func (m *Manager) Connected(b Backend) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[b].state == StateConnected
}

// Close releases all held connections. Idempotent; individual close
// errors are logged and swallowed so shutdown always completes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	if m.pg != nil {
		if err := m.pg.Close(); err != nil {
			log.Printf("failed to close postgres connection: %v", err)
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			log.Printf("failed to close redis connection: %v", err)
		}
	}
	if m.dynamo != nil {
		if err := m.dynamo.Close(); err != nil {
			log.Printf("failed to close dynamodb connection: %v", err)
		}
	}
}

// Relational accessors. Each fails fast with ErrUnavailable when the
// handle is absent rather than attempting a connect on demand.

func (m *Manager) CreateUser(ctx context.Context, username, email, fullName string) (*User, error) {
	if m.pg == nil {
		return nil, ErrUnavailable
	}
	return m.pg.CreateUser(ctx, username, email, fullName)
}

func (m *Manager) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	if m.pg == nil {
		return nil, ErrUnavailable
	}
	return m.pg.GetUser(ctx, id)
}

// LogRequest records a request in the audit table when the relational
// backend is up; otherwise it is a no-op.
func (m *Manager) LogRequest(entry RequestLog) {
	if m.pg == nil {
		return
	}
	m.pg.LogAPIRequest(entry)
}

// Cache accessors.

func (m *Manager) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.redis == nil {
		return ErrUnavailable
	}
	return m.redis.CacheSet(ctx, key, value, ttl)
}

func (m *Manager) CacheGet(ctx context.Context, key string) ([]byte, error) {
	if m.redis == nil {
		return nil, ErrUnavailable
	}
	return m.redis.CacheGet(ctx, key)
}

func (m *Manager) CacheDelete(ctx context.Context, key string) error {
	if m.redis == nil {
		return ErrUnavailable
	}
	return m.redis.CacheDelete(ctx, key)
}

// Wide-column accessors.

func (m *Manager) StoreSession(ctx context.Context, sessionID string, data []byte, ttl time.Duration) error {
	if m.dynamo == nil {
		return ErrUnavailable
	}
	return m.dynamo.StoreSession(ctx, sessionID, data, ttl)
}

func (m *Manager) GetSession(ctx context.Context, sessionID string) ([]byte, error) {
	if m.dynamo == nil {
		return nil, ErrUnavailable
	}
	return m.dynamo.GetSession(ctx, sessionID)
}

func (m *Manager) GetUserActivity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if m.dynamo == nil {
		return nil, ErrUnavailable
	}
	return m.dynamo.GetUserActivity(ctx, userID, limit)
}
