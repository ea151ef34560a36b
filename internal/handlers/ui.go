package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"

	"github.com/ternarybob/arbor"
)

//go:embed pages/*.html
var pages embed.FS

// UIHandlers serves the run dashboard
type UIHandlers struct {
	config    *common.Config
	storage   interfaces.Storage
	logger    arbor.ILogger
	templates *template.Template
}

// TemplateData represents data passed to templates
type TemplateData struct {
	Title        string
	ServiceName  string
	Version      string
	Build        string
	Environment  string
	DefaultQuery string
	Runs         []*models.RunRecord
	LastRun      *models.RunRecord
	Leads        []models.Lead
}

// NewUIHandlers creates a new UI handlers instance
func NewUIHandlers(config *common.Config, storage interfaces.Storage, logger arbor.ILogger) (*UIHandlers, error) {
	templates, err := template.ParseFS(pages, "pages/*.html")
	if err != nil {
		return nil, err
	}

	return &UIHandlers{
		config:    config,
		storage:   storage,
		logger:    logger,
		templates: templates,
	}, nil
}

// IndexHandler renders stored runs and the leads of the most recent one
func (h *UIHandlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := TemplateData{
		Title:        "Clinic Leads",
		ServiceName:  h.config.Collector.Name,
		Version:      common.GetVersion(),
		Build:        common.GetBuild(),
		Environment:  h.config.Collector.Environment,
		DefaultQuery: h.config.Collector.DefaultQuery,
	}

	runs, err := h.storage.ListRuns()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list runs for dashboard")
	}
	data.Runs = runs

	if last, err := h.storage.GetLastRun(); err == nil && last != nil {
		data.LastRun = last
		if leads, err := h.storage.LoadLeads(last.ID); err == nil {
			data.Leads = leads
		} else {
			h.logger.Warn().Err(err).Str("run_id", last.ID).Msg("Failed to load leads for dashboard")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
