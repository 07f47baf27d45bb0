package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/auth"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

// sessionTTL bounds cookie-backed sessions; JWTs carry their own expiry.
const sessionTTL = 24 * time.Hour

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if apierrors.Is(err, apierrors.KindNotFound) {
			renderError(w, r, apierrors.New(apierrors.KindUnauthorized, "invalid credentials"))
			return
		}
		renderError(w, r, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		if err := s.users.RecordLoginFailure(r.Context(), user.ID); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record login failure")
		}
		renderError(w, r, apierrors.New(apierrors.KindUnauthorized, "invalid credentials"))
		return
	}
	if !user.Active {
		renderError(w, r, apierrors.New(apierrors.KindForbidden, "user is inactive"))
		return
	}

	now := time.Now()
	token, err := auth.IssueToken(s.cfg.JWTSecret, user, now)
	if err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindInternal, err, "failed to issue token"))
		return
	}

	session := &models.UserSession{
		SessionToken: uuid.NewString(),
		UserID:       user.ID,
		ExpiresAt:    now.Add(sessionTTL),
		IsActive:     true,
		LastActivity: now,
	}
	if err := s.users.CreateSession(r.Context(), session); err != nil {
		renderError(w, r, err)
		return
	}
	if err := s.users.RecordLoginSuccess(r.Context(), user.ID, now); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record login")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    session.SessionToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.auditLog(r, &user.ID, "login", "user", user.Email)
	renderJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "valid email is required"))
		return
	}
	if len(req.Password) < 8 {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "password must be at least 8 characters"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindInternal, err, "failed to hash password"))
		return
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Active:       true,
		Status:       "active",
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		renderError(w, r, err)
		return
	}

	s.auditLog(r, &user.ID, "create", "user", user.Email)
	renderJSON(w, http.StatusOK, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, apierrors.New(apierrors.KindUnauthorized, "missing credentials"))
		return
	}
	renderJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := s.users.DeactivateSession(r.Context(), cookie.Value); err != nil {
			renderError(w, r, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	if user, ok := auth.UserFromContext(r.Context()); ok {
		s.auditLog(r, &user.ID, "logout", "user", user.Email)
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// auditLog appends one audit row; failures are logged, never surfaced
func (s *Server) auditLog(r *http.Request, userID *int64, action, entity, entityID string) {
	entry := &models.AuditEntry{
		UserID:   userID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	if err := s.audit.Append(r.Context(), entry); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to append audit entry")
	}
}
