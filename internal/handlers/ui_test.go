package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-leads-collector/internal/common"

	"github.com/ternarybob/arbor"
)

func TestIndexHandlerListsRunsAndLeads(t *testing.T) {
	h, err := NewUIHandlers(common.DefaultConfig(), seededStorage(), arbor.NewLogger())
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	rec := httptest.NewRecorder()
	h.IndexHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"run-1", "Dentist in Maadi", "Dr. Amr Clinic", "+201001234567"} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard is missing %q", want)
		}
	}
}

func TestIndexHandlerUnknownPath(t *testing.T) {
	h, err := NewUIHandlers(common.DefaultConfig(), newMemoryStorage(), arbor.NewLogger())
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	rec := httptest.NewRecorder()
	h.IndexHandler(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.IndexHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "No runs yet.") {
		t.Fatalf("expected the empty state")
	}
}
