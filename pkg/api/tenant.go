package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

type tenantKeyType string

const tenantContextKey tenantKeyType = "omni.tenant"

// Tenant is the per-request resolution of a platform id to its record
// and dedicated pool. Handlers never cache it across requests.
type Tenant struct {
	Platform *models.Platform
	DB       *sqlx.DB
}

// TenantFromContext returns the tenant resolved for this request
func TenantFromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(*Tenant)
	return t, ok
}

// tenantResolver resolves the {pid} path parameter into a Tenant. An
// unknown platform is a 404 before any handler work happens.
func (s *Server) tenantResolver(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pid, err := parseID(chi.URLParam(r, "pid"))
		if err != nil {
			renderError(w, r, err)
			return
		}

		platform, err := s.db.GetPlatformByID(r.Context(), pid)
		if err != nil {
			renderError(w, r, err)
			return
		}

		pool, err := s.db.GetPlatformPool(r.Context(), platform.ID, platform.Name)
		if err != nil {
			lg := log.WithPlatformID(s.logger, platform.ID)
			lg.Error().
				Err(err).
				Str("platform", platform.Name).
				Msg("failed to acquire platform pool")
			renderError(w, r, apierrors.Wrap(apierrors.KindConnectionError, err, "failed to acquire platform pool"))
			return
		}

		tenant := &Tenant{Platform: platform, DB: pool}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantContextKey, tenant)))
	})
}

// tenant pulls the resolved tenant out of the request context. The
// resolver middleware guarantees presence on the tenant subtree.
func tenant(r *http.Request) *Tenant {
	t, _ := TenantFromContext(r.Context())
	return t
}
