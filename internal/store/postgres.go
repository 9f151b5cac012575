package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresHandle wraps the relational backend used for user records
// and the request audit log.
type PostgresHandle struct {
	db *sql.DB
}

// NewPostgresHandle wraps an existing connection pool.
func NewPostgresHandle(db *sql.DB) *PostgresHandle {
	return &PostgresHandle{db: db}
}

// OpenPostgres opens a connection pool and verifies it with a ping.
func OpenPostgres(connStr string) (*PostgresHandle, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresHandle{db: db}, nil
}

// User is a row in the users table.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestLog is one entry in the api_requests audit table.
type RequestLog struct {
	Endpoint     string
	Method       string
	StatusCode   int
	ResponseTime int // milliseconds
	UserID       *uuid.UUID
	IPAddress    string
	UserAgent    string
}

// CreateUser inserts a new user keyed by a freshly generated ID.
// Duplicate usernames or emails surface as ErrConflict.
func (h *PostgresHandle) CreateUser(ctx context.Context, username, email, fullName string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		FullName:  fullName,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.Email, u.FullName, u.IsActive, u.CreatedAt, u.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (h *PostgresHandle) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := h.db.QueryRowContext(ctx, `
		SELECT id, username, email, full_name, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// LogAPIRequest records a request in the audit table. Best effort: a
// failed write is dropped, never surfaced to the caller.
func (h *PostgresHandle) LogAPIRequest(entry RequestLog) {
	if h == nil || h.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h.db.ExecContext(ctx, `
		INSERT INTO api_requests (id, user_id, endpoint, method, status_code, response_time, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), entry.UserID, entry.Endpoint, entry.Method, entry.StatusCode,
		entry.ResponseTime, entry.IPAddress, entry.UserAgent, time.Now().UTC())
}

// Probe executes a trivial round-trip query.
func (h *PostgresHandle) Probe(ctx context.Context) error {
	var one int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("postgres probe failed: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (h *PostgresHandle) Close() error {
	return h.db.Close()
}
