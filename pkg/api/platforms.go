package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/auth"
	"github.com/cuemby/omni-orchestrator/pkg/models"
)

type createPlatformRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreatePlatform(w http.ResponseWriter, r *http.Request) {
	var req createPlatformRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}

	platform := &models.Platform{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := s.db.CreatePlatform(r.Context(), platform); err != nil {
		renderError(w, r, err)
		return
	}

	if user, ok := auth.UserFromContext(r.Context()); ok {
		s.auditLog(r, &user.ID, "create", "platform", platform.Name)
	}
	renderJSON(w, http.StatusCreated, platform)
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.db.ListPlatforms(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"platforms": platforms})
}

func (s *Server) handleDeletePlatform(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		// The {id} segment doubles as the cloud name for bootstrap
		// status routes; a non-numeric value here is simply not found.
		renderError(w, r, apierrors.NotFound("platform", chi.URLParam(r, "id")))
		return
	}

	platform, err := s.db.GetPlatformByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	if err := s.db.DeletePlatform(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}

	if user, ok := auth.UserFromContext(r.Context()); ok {
		s.auditLog(r, &user.ID, "delete", "platform", platform.Name)
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
