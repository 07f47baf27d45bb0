package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/omni-orchestrator/pkg/apierrors"
	"github.com/cuemby/omni-orchestrator/pkg/store"
)

// TestParsePage tests the mandatory pagination pair
func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    store.Page
		wantErr bool
	}{
		{"page=1&per_page=20", store.Page{Page: 1, PerPage: 20}, false},
		{"page=0&per_page=5", store.Page{Page: 0, PerPage: 5}, false},
		{"page=2", store.Page{}, true},
		{"per_page=20", store.Page{}, true},
		{"", store.Page{}, true},
		{"page=-1&per_page=20", store.Page{}, true},
		{"page=1&per_page=0", store.Page{}, true},
		{"page=abc&per_page=20", store.Page{}, true},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/apps?"+tt.query, nil)
		got, err := parsePage(r)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePage(%q) expected error", tt.query)
			} else if apierrors.KindOf(err) != apierrors.KindBadRequest {
				t.Errorf("parsePage(%q) kind = %s, want bad_request", tt.query, apierrors.KindOf(err))
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePage(%q) = %v", tt.query, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePage(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

// TestParseID tests path id parsing
func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"9000", 9000, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseID(tt.raw)
		if tt.wantErr != (err != nil) {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

// TestRenderErrorHidesInternalDetail tests the 5xx message scrub
func TestRenderErrorHidesInternalDetail(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/platforms", nil)
	w := httptest.NewRecorder()
	renderError(w, r, errors.New("dsn user:secret@tcp(db:3306)"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "internal error" {
		t.Errorf("message = %q, want the scrubbed form", body.Message)
	}
	if strings.Contains(body.Message, "secret") {
		t.Error("internal detail leaked into the response")
	}
}

// TestRenderErrorClientKind tests that 4xx keeps kind and message
func TestRenderErrorClientKind(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/platforms/7", nil)
	w := httptest.NewRecorder()
	renderError(w, r, apierrors.NotFound("platform", "7"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != string(apierrors.KindNotFound) {
		t.Errorf("error kind = %q, want not_found", body.Error)
	}
}

// TestDecodeJSONUnknownField tests strict body decoding
func TestDecodeJSONUnknownField(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/platforms",
		strings.NewReader(`{"name":"acme","bogus":true}`))

	var req struct {
		Name string `json:"name"`
	}
	err := decodeJSON(r, &req)
	if err == nil {
		t.Fatal("expected unknown field rejection")
	}
	if apierrors.KindOf(err) != apierrors.KindBadRequest {
		t.Errorf("kind = %s, want bad_request", apierrors.KindOf(err))
	}
}
