package services

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"
)

const leadFileTimeLayout = "2006-01-02_15-04"

type csvLeadWriter struct {
	dir    string
	prefix string
}

// NewLeadWriter writes one CSV file per run into dir, named <prefix>_<date>_<time>.csv.
func NewLeadWriter(dir, prefix string) interfaces.LeadWriter {
	if prefix == "" {
		prefix = "leads"
	}
	return &csvLeadWriter{dir: dir, prefix: prefix}
}

// LeadFileName returns the file name a run finished at the given time is written to.
func LeadFileName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, at.Format(leadFileTimeLayout))
}

func (w *csvLeadWriter) Write(leads []models.Lead, at time.Time) (string, error) {
	if len(leads) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", common.WrapError(err, common.ErrorTypeOutput, "mkdir_failed", "failed to create output directory")
	}

	path := filepath.Join(w.dir, LeadFileName(w.prefix, at))
	file, err := os.Create(path)
	if err != nil {
		return "", common.WrapError(err, common.ErrorTypeOutput, "create_failed", "failed to create lead file")
	}
	defer file.Close()

	if err := models.WriteCSV(file, leads); err != nil {
		return "", common.WrapError(err, common.ErrorTypeOutput, "write_failed", "failed to write lead file").WithDetails(path)
	}

	return path, file.Close()
}
