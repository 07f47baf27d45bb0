package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/models"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// maxUploadBytes caps release artifact uploads
const maxUploadBytes = 512 << 20

type createAppRequest struct {
	Name        string `json:"name"`
	OrgID       int64  `json:"org_id"`
	RegionID    int64  `json:"region_id"`
	Description string `json:"description"`
	GitRepo     string `json:"git_repo"`
	GitBranch   string `json:"git_branch"`
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := decodeJSON(r, &req); err != nil {
		renderError(w, r, err)
		return
	}
	if req.Name == "" {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "name is required"))
		return
	}

	app := &models.App{
		Name:        req.Name,
		OrgID:       req.OrgID,
		RegionID:    req.RegionID,
		Description: req.Description,
		GitRepo:     req.GitRepo,
		GitBranch:   req.GitBranch,
	}
	if err := store.NewApps(tenant(r).DB).Create(r.Context(), app); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	apps, total, err := store.NewApps(tenant(r).DB).List(r.Context(), page)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{
		"apps":       apps,
		"pagination": models.NewPagination(page.Page, page.PerPage, total),
	})
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	app, err := store.NewApps(tenant(r).DB).GetByID(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, app)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	if err := store.NewApps(tenant(r).DB).Terminate(r.Context(), id); err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}

	instances, err := store.NewApps(tenant(r).DB).ListInstances(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"instances": instances})
}

// handleUploadRelease accepts a multipart artifact for one app version,
// stores it and registers a pending build.
func (s *Server) handleUploadRelease(w http.ResponseWriter, r *http.Request) {
	appID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, err)
		return
	}
	version := chi.URLParam(r, "version")
	if version == "" {
		renderError(w, r, apierrors.New(apierrors.KindBadRequest, "version is required"))
		return
	}

	t := tenant(r)
	if _, err := store.NewApps(t.DB).GetByID(r.Context(), appID); err != nil {
		renderError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("artifact")
	if err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindBadRequest, err, "artifact form file is required"))
		return
	}
	defer file.Close()

	dir := filepath.Join(s.uploadDir, t.Platform.Name, fmt.Sprintf("app-%d", appID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindInternal, err, "failed to create upload directory"))
		return
	}
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s", version, filepath.Base(header.Filename)))

	out, err := os.Create(dest)
	if err != nil {
		renderError(w, r, apierrors.Wrap(apierrors.KindInternal, err, "failed to store artifact"))
		return
	}
	written, err := io.Copy(out, file)
	out.Close()
	if err != nil {
		os.Remove(dest)
		renderError(w, r, apierrors.Wrap(apierrors.KindInternal, err, "failed to store artifact"))
		return
	}

	build := &models.Build{
		AppID:       appID,
		Version:     version,
		Status:      models.BuildStatusPending,
		ArtifactURL: dest,
	}
	if err := store.NewDeployments(t.DB).CreateBuild(r.Context(), build); err != nil {
		os.Remove(dest)
		renderError(w, r, err)
		return
	}

	s.logger.Info().
		Int64("app_id", appID).
		Str("version", version).
		Int64("bytes", written).
		Msg("release artifact uploaded")

	renderJSON(w, http.StatusCreated, map[string]interface{}{
		"build":      build,
		"size_bytes": written,
		"uploaded":   time.Now().UTC(),
	})
}
