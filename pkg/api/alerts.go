package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/auth"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

type createAlertRequest struct {
	AlertType  string               `json:"alert_type"`
	Severity   models.AlertSeverity `json:"severity"`
	Service    string               `json:"service"`
	Message    string               `json:"message"`
	OrgID      *int64               `json:"org_id"`
	AppID      *int64               `json:"app_id"`
	InstanceID *int64               `json:"instance_id"`
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.AlertType == "" || req.Service == "" {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "alert_type and service are required"))
		return
	}

	alert := &models.Alert{
		AlertType:  req.AlertType,
		Severity:   req.Severity,
		Service:    req.Service,
		Message:    req.Message,
		OrgID:      req.OrgID,
		AppID:      req.AppID,
		InstanceID: req.InstanceID,
	}
	if err := store.NewAlerts(tenant(r).DB).Create(r.Context(), alert); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		renderError(w, r, err)
		return
	}
	status := models.AlertStatus(r.URL.Query().Get("status"))

	alerts, total, err := store.NewAlerts(tenant(r).DB).List(r.Context(), status, page)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":     alerts,
		"pagination": models.NewPagination(page.Page, page.PerPage, total),
	})
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	alert, err := store.NewAlerts(tenant(r).DB).GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, alert)
}

type alertStatusRequest struct {
	Status models.AlertStatus `json:"status"`
	Note   string             `json:"note"`
}

func (s *Server) handleAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req alertStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	s.updateAlertStatus(w, r, req.Status, req.Note)
}

func (s *Server) handleAlertAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.updateAlertStatus(w, r, models.AlertStatusAcknowledged, "acknowledged")
}

func (s *Server) handleAlertResolve(w http.ResponseWriter, r *http.Request) {
	s.updateAlertStatus(w, r, models.AlertStatusResolved, "resolved")
}

func (s *Server) updateAlertStatus(w http.ResponseWriter, r *http.Request, status models.AlertStatus, note string) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	if !status.Valid() {
		renderError(w, r, apierrors.Newf(apierrors.KindBadRequest, "invalid alert status %q", status))
		return
	}

	var changedBy *int64
	if user, ok := auth.UserFromContext(r.Context()); ok {
		changedBy = &user.ID
	}

	alert, err := store.NewAlerts(tenant(r).DB).UpdateStatus(r.Context(), id, status, changedBy, note, time.Now())
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, alert)
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	history, err := store.NewAlerts(tenant(r).DB).History(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
