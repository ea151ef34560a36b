package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/models"

	"github.com/ternarybob/arbor"
)

type memoryStorage struct {
	mu    sync.Mutex
	runs  map[string]*models.RunRecord
	leads map[string][]models.Lead
	last  string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{runs: map[string]*models.RunRecord{}, leads: map[string][]models.Lead{}}
}

func (m *memoryStorage) SaveRun(run *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.last = run.ID
	return nil
}

func (m *memoryStorage) LoadRun(id string) (*models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, common.ErrRunNotFound
	}
	return run, nil
}

func (m *memoryStorage) ListRuns() ([]*models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := []*models.RunRecord{}
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func (m *memoryStorage) GetLastRun() (*models.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[m.last], nil
}

func (m *memoryStorage) SaveLeads(runID string, leads []models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[runID] = leads
	return nil
}

func (m *memoryStorage) LoadLeads(runID string) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Lead{}, m.leads[runID]...), nil
}

func (m *memoryStorage) LoadAllLeads() ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []models.Lead{}
	for _, leads := range m.leads {
		all = append(all, leads...)
	}
	return all, nil
}

func (m *memoryStorage) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = map[string]*models.RunRecord{}
	m.leads = map[string][]models.Lead{}
	m.last = ""
	return nil
}

func (m *memoryStorage) Close() error { return nil }

// blockingCollector records queries and holds each run until release is closed.
type blockingCollector struct {
	queries chan string
	release chan struct{}
}

func (b *blockingCollector) Run(ctx context.Context, query string) (*models.RunRecord, []models.Lead, error) {
	b.queries <- query
	<-b.release
	return &models.RunRecord{ID: "run-http", Query: query, Status: models.RunStatusNoLeads}, nil, nil
}

func newTestHandlers(store *memoryStorage, collector *blockingCollector) *APIHandlers {
	config := common.DefaultConfig()
	config.Classifier.APIKey = "secret"
	return NewAPIHandlers(config, collector, store, arbor.NewLogger(), nil)
}

func seededStorage() *memoryStorage {
	store := newMemoryStorage()
	_ = store.SaveRun(&models.RunRecord{ID: "run-1", Query: "Dentist in Maadi", Status: models.RunStatusCompleted, StartedAt: time.Now()})
	_ = store.SaveLeads("run-1", []models.Lead{
		{RunID: "run-1", ClinicName: "Dr. Amr Clinic", DoctorName: "Amr", PhoneNumber: "+201001234567", LineType: "Mobile", ConfidenceScore: "High", Decision: "KEEP"},
	})
	return store
}

func TestHealthHandler(t *testing.T) {
	h := newTestHandlers(seededStorage(), nil)

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || !health.Services.Database || !health.Services.Classifier {
		t.Fatalf("unexpected health %+v", health)
	}

	h.config.Classifier.APIKey = ""
	rec = httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	_ = json.NewDecoder(rec.Body).Decode(&health)
	if health.Status != "degraded" {
		t.Fatalf("expected degraded without an API key, got %q", health.Status)
	}
}

func TestConfigHandlerRedactsKey(t *testing.T) {
	h := newTestHandlers(seededStorage(), nil)

	rec := httptest.NewRecorder()
	h.ConfigHandler(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatalf("config response leaks the API key: %s", rec.Body.String())
	}
}

func TestRunsHandler(t *testing.T) {
	h := newTestHandlers(seededStorage(), nil)

	tests := []struct {
		target string
		status int
	}{
		{"/runs", http.StatusOK},
		{"/runs?id=run-1", http.StatusOK},
		{"/runs?id=missing", http.StatusNotFound},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		h.RunsHandler(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d got %d", tc.target, tc.status, rec.Code)
		}
	}
}

func TestLeadsHandlerCSV(t *testing.T) {
	h := newTestHandlers(seededStorage(), nil)

	rec := httptest.NewRecorder()
	h.LeadsHandler(rec, httptest.NewRequest(http.MethodGet, "/leads?format=csv", nil))

	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || strings.Join(records[0], ",") != strings.Join(models.LeadColumns, ",") {
		t.Fatalf("unexpected csv %v", records)
	}
	if records[1][0] != "Dr. Amr Clinic" || records[1][2] != "+201001234567" {
		t.Fatalf("unexpected row %v", records[1])
	}
}

func TestLeadsHandlerWithoutRuns(t *testing.T) {
	h := newTestHandlers(newMemoryStorage(), nil)

	rec := httptest.NewRecorder()
	h.LeadsHandler(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without runs, got %d", rec.Code)
	}
}

func TestCollectHandlerRejectsWhileBusy(t *testing.T) {
	collector := &blockingCollector{queries: make(chan string, 2), release: make(chan struct{})}
	h := newTestHandlers(newMemoryStorage(), collector)

	rec := httptest.NewRecorder()
	h.CollectHandler(rec, httptest.NewRequest(http.MethodPost, "/collect", strings.NewReader(`{"query":"Dentist in Maadi"}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if query := <-collector.queries; query != "Dentist in Maadi" {
		t.Fatalf("unexpected query %q", query)
	}

	rec = httptest.NewRecorder()
	h.CollectHandler(rec, httptest.NewRequest(http.MethodPost, "/collect?query=Dentist+in+Zamalek", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a run is active, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.DatabaseHandler(rec, httptest.NewRequest(http.MethodDelete, "/database", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected clearing to be refused during a run, got %d", rec.Code)
	}

	close(collector.release)
	for deadline := time.Now().Add(2 * time.Second); h.collecting.Load(); {
		if time.Now().After(deadline) {
			t.Fatalf("run did not finish")
		}
		time.Sleep(time.Millisecond)
	}

	rec = httptest.NewRecorder()
	h.CollectHandler(rec, httptest.NewRequest(http.MethodPost, "/collect", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 once idle, got %d", rec.Code)
	}
	if query := <-collector.queries; query != h.config.Collector.DefaultQuery {
		t.Fatalf("expected the default query, got %q", query)
	}
}

func TestCollectHandlerMethod(t *testing.T) {
	h := newTestHandlers(newMemoryStorage(), nil)

	rec := httptest.NewRecorder()
	h.CollectHandler(rec, httptest.NewRequest(http.MethodGet, "/collect", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
