package models

import (
	"time"
)

// Platform represents an isolated tenant with its own database
type Platform struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DatabaseName returns the name of the platform's dedicated database
func (p *Platform) DatabaseName() string {
	return "omni_p_" + p.Name
}

// User represents an operator account in the main database
type User struct {
	ID            int64      `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Salt          string     `db:"salt" json:"-"`
	Active        bool       `db:"active" json:"active"`
	Status        string     `db:"status" json:"status"`
	LoginAttempts int        `db:"login_attempts" json:"login_attempts"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	LastLoginAt   *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

// UserSession represents a cookie-backed login session
type UserSession struct {
	ID           int64     `db:"id" json:"id"`
	SessionToken string    `db:"session_token" json:"session_token"`
	UserID       int64     `db:"user_id" json:"user_id"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Valid reports whether the session can authenticate a request
func (s *UserSession) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// AuditEntry records a mutating operation against the main database
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	UserID    *int64    `db:"user_id" json:"user_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination describes one page of a paginated listing
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the envelope for a page over total records
func NewPagination(page, perPage, totalCount int) Pagination {
	totalPages := 0
	if perPage > 0 {
		totalPages = (totalCount + perPage - 1) / perPage
	}
	return Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}
