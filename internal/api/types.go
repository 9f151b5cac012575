package api

import (
	"encoding/json"
	"time"

	"github.com/svcgateway/backend/internal/metrics"
)

// Request types
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type SessionRequest struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	TTL       int             `json:"ttl"` // seconds
}

// Response types
type RootResponse struct {
	Message string `json:"message"`
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type ReadyResponse struct {
	Status       string          `json:"status"`
	Dependencies map[string]bool `json:"dependencies"`
}

type StatusResponse struct {
	Service       string           `json:"service"`
	Version       string           `json:"version"`
	Status        string           `json:"status"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Metrics       metrics.Snapshot `json:"metrics"`
}

type ServicesResponse struct {
	Services []string `json:"services"`
	Count    int      `json:"count"`
}

type DatabaseStatus struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	DynamoDB   bool      `json:"dynamodb"`
	LastCheck  time.Time `json:"last_check"`
}

type DatabaseHealthResponse struct {
	Status    string         `json:"status"`
	Databases DatabaseStatus `json:"databases"`
}

type ServiceResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type StatsResponse struct {
	PostgresConnected bool      `json:"postgresql_connected"`
	RedisConnected    bool      `json:"redis_connected"`
	DynamoConnected   bool      `json:"dynamodb_connected"`
	Timestamp         time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
