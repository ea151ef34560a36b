package services

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"clinic-leads-collector/internal/models"
)

func TestLeadFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 59, 0, time.UTC)
	if got := LeadFileName("leads", at); got != "leads_2024-03-09_07-05.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestLeadWriterWritesHeaderAndRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	writer := NewLeadWriter(dir, "maadi")

	leads := []models.Lead{
		{ClinicName: "Dr. Amr Clinic", DoctorName: "Amr", PhoneNumber: "+201001234567", LineType: "Mobile", ConfidenceScore: "High", Decision: "KEEP"},
		{ClinicName: "Dr. Nour, Dental", PhoneNumber: "Manual Check Required", ConfidenceScore: "Medium", Decision: "KEEP"},
	}

	path, err := writer.Write(leads, time.Date(2024, 3, 9, 7, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "maadi_2024-03-09_07-05.csv") {
		t.Fatalf("unexpected path %q", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open written file: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}
	if !reflect.DeepEqual(records[0], models.LeadColumns) {
		t.Fatalf("unexpected header %v", records[0])
	}
	if !reflect.DeepEqual(records[2], leads[1].Record()) {
		t.Fatalf("unexpected row %v", records[2])
	}
}

func TestLeadWriterSkipsEmptyRuns(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := NewLeadWriter(dir, "").Write(nil, time.Now())
	if err != nil || path != "" {
		t.Fatalf("expected nothing written, got %q, %v", path, err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory, stat returned %v", err)
	}
}
