package interfaces

import (
	"context"
	"time"

	"clinic-leads-collector/internal/models"
)

// BrowserSession is one live interactive session against the maps search surface.
// Implementations are not safe for concurrent use; listings are visited one at a time.
type BrowserSession interface {
	Open(ctx context.Context, url string) error
	SubmitSearch(ctx context.Context, query string) error
	WaitForFeed(ctx context.Context) error
	ScrollFeed(ctx context.Context) error
	FeedExhausted(ctx context.Context) (bool, error)
	ResultLinks(ctx context.Context) ([]string, error)
	OpenResult(ctx context.Context, link string) error
	DetailHTML(ctx context.Context) (string, error)
	CloseResult(ctx context.Context) error
	Close() error
}

// SessionFactory acquires a new BrowserSession. The caller owns the session and must Close it.
type SessionFactory func(ctx context.Context) (BrowserSession, error)

type ListingExtractor interface {
	Extract(ctx context.Context, query string) (*models.ExtractionResult, error)
}

// ClassifierService sends one prompt to a hosted language model and returns its raw text reply.
type ClassifierService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ClinicClassifier interface {
	// Classify never fails: any error yields an empty mapping (fail-closed).
	Classify(ctx context.Context, names []string) map[int]models.ClassificationDecision
	// ClassifyBatch returns the same mapping as Classify plus the cause when it is empty because of a failure.
	ClassifyBatch(ctx context.Context, names []string) (map[int]models.ClassificationDecision, error)
}

type PhoneNormalizer interface {
	Normalize(raw string) models.NormalizedPhone
}

type LeadAssembler interface {
	Assemble(raw []models.RawListing, decisions map[int]models.ClassificationDecision) []models.Lead
}

type LeadWriter interface {
	// Write exports leads and returns the written path; nothing is written for an empty slice.
	Write(leads []models.Lead, at time.Time) (string, error)
}

type Collector interface {
	Run(ctx context.Context, query string) (*models.RunRecord, []models.Lead, error)
}

// RunObserver receives progress events of a collector run.
type RunObserver interface {
	RunEvent(eventType string, data interface{})
}

type Storage interface {
	SaveRun(run *models.RunRecord) error
	LoadRun(id string) (*models.RunRecord, error)
	ListRuns() ([]*models.RunRecord, error)
	GetLastRun() (*models.RunRecord, error)
	SaveLeads(runID string, leads []models.Lead) error
	LoadLeads(runID string) ([]models.Lead, error)
	LoadAllLeads() ([]models.Lead, error)
	ClearAll() error
	Close() error
}

type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}
