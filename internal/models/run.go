package models

import "time"

type RunStatus string

const (
	RunStatusRunning              RunStatus = "running"
	RunStatusCompleted            RunStatus = "completed"
	RunStatusNoLeads              RunStatus = "no_leads"
	RunStatusSessionFailed        RunStatus = "session_failed"
	RunStatusClassificationFailed RunStatus = "classification_failed"
	RunStatusFailed               RunStatus = "failed"
)

// RunRecord describes one collector run.
type RunRecord struct {
	ID                string    `json:"id"`
	Query             string    `json:"query"`
	Status            RunStatus `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitempty"`
	ListingsExtracted int       `json:"listings_extracted"`
	ListingErrors     int       `json:"listing_errors"`
	DecisionsReceived int       `json:"decisions_received"`
	LeadsEmitted      int       `json:"leads_emitted"`
	OutputPath        string    `json:"output_path,omitempty"`
	Error             string    `json:"error,omitempty"`
}

func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
