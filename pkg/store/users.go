package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// Users provides access to users and user_sessions in the main database
type Users struct {
	db *sqlx.DB
}

// NewUsers creates a user repository over the main pool
func NewUsers(db *sqlx.DB) *Users {
	return &Users{db: db}
}

const userColumns = `id, email, password_hash, salt, active, status, login_attempts,
	created_at, updated_at, last_login_at`

// Create inserts a user row and fills in its id
func (r *Users) Create(ctx context.Context, u *models.User) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, salt, active, status) VALUES (?, ?, ?, ?, ?)",
		u.Email, u.PasswordHash, u.Salt, u.Active, u.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return apierrors.Newf(apierrors.KindConflict, "user %q already exists", u.Email)
		}
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read user id")
	}
	u.ID = id
	return nil
}

// GetByID fetches a user by id
func (r *Users) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("user", id)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch user")
	}
	return &u, nil
}

// GetByEmail fetches a user by email
func (r *Users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("user", email)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch user")
	}
	return &u, nil
}

// RecordLoginSuccess resets login_attempts and stamps last_login_at
func (r *Users) RecordLoginSuccess(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET login_attempts = 0, last_login_at = ? WHERE id = ?", now, userID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to record login")
	}
	return nil
}

// RecordLoginFailure increments login_attempts
func (r *Users) RecordLoginFailure(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET login_attempts = login_attempts + 1 WHERE id = ?", userID)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to record login failure")
	}
	return nil
}

// CreateSession inserts a session row
func (r *Users) CreateSession(ctx context.Context, s *models.UserSession) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (session_token, user_id, expires_at, is_active, last_activity)
		 VALUES (?, ?, ?, ?, ?)`,
		s.SessionToken, s.UserID, s.ExpiresAt, s.IsActive, s.LastActivity)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to insert session")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to read session id")
	}
	s.ID = id
	return nil
}

// GetSession fetches a session by its opaque token
func (r *Users) GetSession(ctx context.Context, token string) (*models.UserSession, error) {
	var s models.UserSession
	err := r.db.GetContext(ctx, &s,
		`SELECT id, session_token, user_id, expires_at, is_active, last_activity, created_at
		 FROM user_sessions WHERE session_token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("session", token)
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to fetch session")
	}
	return &s, nil
}

// TouchSession updates last_activity for a live session
func (r *Users) TouchSession(ctx context.Context, token string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET last_activity = ? WHERE session_token = ?", now, token)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to touch session")
	}
	return nil
}

// DeactivateSession marks a session inactive (logout)
func (r *Users) DeactivateSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE user_sessions SET is_active = FALSE WHERE session_token = ?", token)
	if err != nil {
		return apierrors.Wrap(apierrors.KindConnectionError, err, "failed to deactivate session")
	}
	return nil
}
