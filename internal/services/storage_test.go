package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"
)

func newTestStorage(t *testing.T) interfaces.Storage {
	t.Helper()
	store, err := NewStorage(&common.StorageConfig{DatabasePath: filepath.Join(t.TempDir(), "data", "leads.db")})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorageRuns(t *testing.T) {
	store := newTestStorage(t)

	if run, err := store.GetLastRun(); err != nil || run != nil {
		t.Fatalf("expected no last run on an empty database, got %+v, %v", run, err)
	}

	start := time.Date(2024, 3, 9, 7, 0, 0, 0, time.UTC)
	older := &models.RunRecord{ID: "run-1", Query: "Dentist in Maadi", Status: models.RunStatusCompleted, StartedAt: start}
	newer := &models.RunRecord{ID: "run-2", Query: "Dentist in Zamalek", Status: models.RunStatusNoLeads, StartedAt: start.Add(time.Hour)}

	for _, run := range []*models.RunRecord{newer, older} {
		if err := store.SaveRun(run); err != nil {
			t.Fatalf("save %s: %v", run.ID, err)
		}
	}

	last, err := store.GetLastRun()
	if err != nil || last == nil || last.ID != "run-1" {
		t.Fatalf("expected the last saved run, got %+v, %v", last, err)
	}

	runs, err := store.ListRuns()
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("expected runs newest first, got %+v", runs)
	}

	loaded, err := store.LoadRun("run-2")
	if err != nil || loaded.Status != models.RunStatusNoLeads || loaded.Query != "Dentist in Zamalek" {
		t.Fatalf("unexpected loaded run %+v, %v", loaded, err)
	}

	if _, err := store.LoadRun("missing"); !errors.Is(err, common.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if err := store.SaveRun(&models.RunRecord{}); !common.IsErrorType(err, common.ErrorTypeValidation) {
		t.Fatalf("expected a validation error for a run without ID, got %v", err)
	}
}

func TestStorageLeads(t *testing.T) {
	store := newTestStorage(t)

	var leads []models.Lead
	for i := 0; i < 12; i++ {
		leads = append(leads, models.Lead{Index: i, ClinicName: string(rune('A' + i))})
	}
	if err := store.SaveLeads("run-1", leads); err != nil {
		t.Fatalf("save leads: %v", err)
	}
	if err := store.SaveLeads("run-10", leads[:1]); err != nil {
		t.Fatalf("save leads: %v", err)
	}

	loaded, err := store.LoadLeads("run-1")
	if err != nil {
		t.Fatalf("load leads: %v", err)
	}
	if len(loaded) != 12 {
		t.Fatalf("expected 12 leads, got %d", len(loaded))
	}
	for i, lead := range loaded {
		if lead.Index != i || lead.RunID != "run-1" {
			t.Fatalf("lead %d out of order or missing run id: %+v", i, lead)
		}
	}

	// Saving again replaces the previous set.
	if err := store.SaveLeads("run-1", leads[:2]); err != nil {
		t.Fatalf("replace leads: %v", err)
	}
	if loaded, _ := store.LoadLeads("run-1"); len(loaded) != 2 {
		t.Fatalf("expected 2 leads after replacing, got %d", len(loaded))
	}

	all, err := store.LoadAllLeads()
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 leads across runs, got %d, %v", len(all), err)
	}
}

func TestStorageClearAll(t *testing.T) {
	store := newTestStorage(t)

	_ = store.SaveRun(&models.RunRecord{ID: "run-1", StartedAt: time.Now()})
	_ = store.SaveLeads("run-1", []models.Lead{{ClinicName: "Dr. Amr Clinic"}})

	if err := store.ClearAll(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	runs, _ := store.ListRuns()
	leads, _ := store.LoadAllLeads()
	last, _ := store.GetLastRun()
	if len(runs) != 0 || len(leads) != 0 || last != nil {
		t.Fatalf("expected an empty database, got %d runs, %d leads, last %+v", len(runs), len(leads), last)
	}

	if err := store.SaveRun(&models.RunRecord{ID: "run-2"}); err != nil {
		t.Fatalf("expected buckets to be recreated, got %v", err)
	}
}
