package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/backup"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// backupFormatVersion is stamped on every backup this build produces
const backupFormatVersion = "1.0"

type createBackupRequest struct {
	Name              string            `json:"name"`
	BackupType        models.BackupType `json:"backup_type"`
	SourceEnvironment string            `json:"source_environment"`
	EncryptionMethod  string            `json:"encryption_method"`
	IncludedApps      []string          `json:"included_apps"`
	IncludedServices  []string          `json:"included_services"`
}

// handleCreateBackup registers the backup and starts the coordinator in
// the background; the caller polls the record for progress.
func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.Name == "" || req.SourceEnvironment == "" {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "name and source_environment are required"))
		return
	}
	switch req.BackupType {
	case models.BackupTypeFull, models.BackupTypeSystem, models.BackupTypeApp, models.BackupTypeIncremental:
	case "":
		req.BackupType = models.BackupTypeFull
	default:
		renderError(w, r, apierrors.Newf(apierrors.KindBadRequest, "invalid backup_type %q", req.BackupType))
		return
	}

	backups := store.NewBackups(tenant(r).DB)
	b := &models.Backup{
		Name:              req.Name,
		Status:            models.BackupStatusPending,
		SourceEnvironment: req.SourceEnvironment,
		BackupType:        req.BackupType,
		FormatVersion:     backupFormatVersion,
		EncryptionMethod:  req.EncryptionMethod,
		IncludedApps:      models.JSONList(req.IncludedApps),
		IncludedServices:  models.JSONList(req.IncludedServices),
	}
	if err := backups.Create(r.Context(), b); err != nil {
		renderError(w, r, err)
		return
	}

	// The run outlives the request; a dropped client never cancels it.
	go func() {
		if err := s.backups.Run(context.Background(), b, backups); err != nil {
			lg := log.WithBackupID(s.logger, b.ID)
			lg.Error().Err(err).Msg("backup run failed")
		}
	}()

	renderJSON(w, http.StatusAccepted, b)
}

func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	b, err := store.NewBackups(tenant(r).DB).GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, b)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	backups, total, err := store.NewBackups(tenant(r).DB).List(r.Context(), page)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{
		"backups":    backups,
		"pagination": models.NewPagination(page.Page, page.PerPage, total),
	})
}

type validateBackupRequest struct {
	Level backup.ValidationLevel `json:"level"`
}

func (s *Server) handleValidateBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	var req validateBackupRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.Level == "" {
		req.Level = backup.ValidationStructural
	}

	backups := store.NewBackups(tenant(r).DB)
	b, err := backups.GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	result, err := s.validator.Validate(r.Context(), b, req.Level)
	if err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindBadRequest, err, "validation failed to run"))
		return
	}
	if err := backups.Update(r.Context(), b); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}
