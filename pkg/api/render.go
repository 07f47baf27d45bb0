package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/log"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// errorBody is the uniform JSON failure envelope
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func renderJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lg := log.WithComponent("api")
		lg.Error().Err(err).Msg("failed to encode response")
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierrors.StatusOf(err)
	kind := apierrors.KindOf(err)

	message := err.Error()
	if status >= 500 {
		// Internal detail stays in the log, not the response.
		lg := log.WithComponent("api")
		lg.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		message = "internal error"
	}

	renderJSON(w, status, errorBody{Error: string(kind), Message: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierrors.Wrap(apierrors.KindBadRequest, err, "invalid request body")
	}
	return nil
}

// parsePage extracts the mandatory page/per_page pair. page=0 selects
// the first page.
func parsePage(r *http.Request) (store.Page, error) {
	q := r.URL.Query()
	rawPage, rawPer := q.Get("page"), q.Get("per_page")
	if rawPage == "" || rawPer == "" {
		return store.Page{}, apierrors.New(apierrors.KindBadRequest, "page and per_page are required")
	}

	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 0 {
		return store.Page{}, apierrors.Newf(apierrors.KindBadRequest, "invalid page %q", rawPage)
	}
	perPage, err := strconv.Atoi(rawPer)
	if err != nil || perPage < 1 {
		return store.Page{}, apierrors.Newf(apierrors.KindBadRequest, "invalid per_page %q", rawPer)
	}
	return store.Page{Page: page, PerPage: perPage}, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierrors.Newf(apierrors.KindBadRequest, "invalid id %q", raw)
	}
	return id, nil
}
