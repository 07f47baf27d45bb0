package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/bootstrap"
)

// handleBootstrapInit starts a cloud rollout in the background
func (s *Server) handleBootstrapInit(w http.ResponseWriter, r *http.Request) {
	var config bootstrap.CloudConfig
	if err := decodeJSON(r, &config); err != nil {
		renderError(w, r, err)
		return
	}

	if err := s.bootstrap.Init(r.Context(), config); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusAccepted, map[string]string{
		"cloud_name": config.CloudName,
		"status":     "bootstrapping",
	})
}

func (s *Server) handleBootstrapStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.bootstrap.Status(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, status)
}

// handleBootstrapHost re-runs the ladder for one host
func (s *Server) handleBootstrapHost(w http.ResponseWriter, r *http.Request) {
	cloud := chi.URLParam(r, "id")
	host := chi.URLParam(r, "name")

	if err := s.bootstrap.BootstrapHost(cloud, host); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "bootstrapped"})
}

func (s *Server) handleConfigureNetwork(w http.ResponseWriter, r *http.Request) {
	if err := s.bootstrap.ConfigureNetwork(chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "network_configured"})
}

func (s *Server) handleSetupMonitoring(w http.ResponseWriter, r *http.Request) {
	if err := s.bootstrap.SetupMonitoring(chi.URLParam(r, "id")); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "monitoring_configured"})
}

type setupBackupsRequest struct {
	RetentionDays int `json:"retention_days"`
}

func (s *Server) handleSetupBackups(w http.ResponseWriter, r *http.Request) {
	var req setupBackupsRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.RetentionDays < 1 {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "retention_days must be positive"))
		return
	}

	if err := s.bootstrap.SetupBackups(chi.URLParam(r, "id"), req.RetentionDays); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "backups_configured"})
}
