package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// SessionCookieName is the cookie carrying the opaque session token
const SessionCookieName = "session_id"

type contextKey string

const userContextKey contextKey = "omni.user"

// UserFromContext returns the authenticated user attached to a request
// context, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userContextKey).(*models.User)
	return u, ok
}

// ContextWithUser attaches a user to a context (exported for tests)
func ContextWithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// Gate authenticates requests by bearer JWT or session cookie and
// populates the request context with the loaded user.
type Gate struct {
	users  *store.Users
	secret string

	// Now is the clock; tests substitute a fixed one.
	Now func() time.Time
}

// NewGate creates an authentication gate
func NewGate(users *store.Users, secret string) *Gate {
	return &Gate{users: users, secret: secret, Now: time.Now}
}

// Authenticate produces a User from the request credentials or a typed
// error: unauthorized when credentials are absent or invalid, forbidden
// when the user is inactive.
func (g *Gate) Authenticate(r *http.Request) (*models.User, error) {
	now := g.Now()

	userID, err := g.identify(r, now)
	if err != nil {
		return nil, err
	}

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		if apierrors.Is(err, apierrors.KindNotFound) {
			return nil, apierrors.New(apierrors.KindUnauthorized, "unknown user")
		}
		return nil, err
	}
	if !user.Active {
		return nil, apierrors.New(apierrors.KindForbidden, "user is inactive")
	}

	return user, nil
}

// identify resolves the request credentials to a user id. Bearer tokens
// take precedence over the session cookie.
func (g *Gate) identify(r *http.Request, now time.Time) (int64, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return 0, apierrors.New(apierrors.KindUnauthorized, "malformed authorization header")
		}
		return ParseToken(g.secret, strings.TrimSpace(raw))
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		session, err := g.users.GetSession(r.Context(), cookie.Value)
		if err != nil {
			if apierrors.Is(err, apierrors.KindNotFound) {
				return 0, apierrors.New(apierrors.KindUnauthorized, "unknown session")
			}
			return 0, err
		}
		if !session.Valid(now) {
			return 0, apierrors.New(apierrors.KindUnauthorized, "session expired")
		}
		if err := g.users.TouchSession(r.Context(), cookie.Value, now); err != nil {
			lg := log.WithComponent("auth")
			lg.Warn().Err(err).Msg("failed to touch session")
		}
		return session.UserID, nil
	}

	return 0, apierrors.New(apierrors.KindUnauthorized, "missing credentials")
}

// Middleware wraps a handler, rejecting unauthenticated requests. The
// renderError callback writes the HTTP error body.
func (g *Gate) Middleware(renderError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.Authenticate(r)
			if err != nil {
				renderError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
