package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/models"

	"github.com/ternarybob/arbor"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config     *common.Config
	collector  interfaces.Collector
	storage    interfaces.Storage
	logger     arbor.ILogger
	startTime  time.Time
	wsHub      *WebSocketHub
	runCtx     context.Context
	collecting atomic.Bool
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Database   bool `json:"database"`
		Classifier bool `json:"classifier"`
		Collecting bool `json:"collecting"`
	} `json:"services"`
}

// VersionResponse represents server version information
type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// ConfigResponse is the configuration with credentials removed
type ConfigResponse struct {
	Collector  common.CollectorConfig  `json:"collector"`
	Scraper    common.ScraperConfig    `json:"scraper"`
	Browser    common.BrowserConfig    `json:"browser"`
	Classifier common.ClassifierConfig `json:"classifier"`
	Phone      common.PhoneConfig      `json:"phone"`
	Output     common.OutputConfig     `json:"output"`
	Logging    common.LoggingConfig    `json:"logging"`
}

// CollectRequest is the body of POST /collect
type CollectRequest struct {
	Query string `json:"query"`
}

// DatabaseResponse represents database operation responses
type DatabaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, collector interfaces.Collector, storage interfaces.Storage, logger arbor.ILogger, wsHub *WebSocketHub) *APIHandlers {
	return &APIHandlers{
		config:    config,
		collector: collector,
		storage:   storage,
		logger:    logger,
		startTime: time.Now(),
		wsHub:     wsHub,
		runCtx:    context.Background(),
	}
}

// SetRunContext sets the parent context of runs started through the API.
func (h *APIHandlers) SetRunContext(ctx context.Context) {
	h.runCtx = ctx
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Database = h.testDatabaseConnection()
	health.Services.Classifier = h.config.Classifier.APIKey != ""
	health.Services.Collecting = h.collecting.Load()

	if !health.Services.Database || !health.Services.Classifier {
		health.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, health)
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	})
}

// ConfigHandler returns the active configuration without the classifier API key
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	config := ConfigResponse{
		Collector:  h.config.Collector,
		Scraper:    h.config.Scraper,
		Browser:    h.config.Browser,
		Classifier: h.config.Classifier,
		Phone:      h.config.Phone,
		Output:     h.config.Output,
		Logging:    h.config.Logging,
	}
	if config.Classifier.APIKey != "" {
		config.Classifier.APIKey = "********"
	}

	h.writeJSON(w, http.StatusOK, config)
}

// RunsHandler lists stored runs, or returns one run when ?id= is given
func (h *APIHandlers) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		run, err := h.storage.LoadRun(id)
		if errors.Is(err, common.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, http.StatusOK, run)
		return
	}

	runs, err := h.storage.ListRuns()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// LeadsHandler returns the leads of ?run= (default: the last run) as JSON, or as CSV with ?format=csv
func (h *APIHandlers) LeadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		last, err := h.storage.GetLastRun()
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to load last run")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if last == nil {
			http.Error(w, "No runs recorded", http.StatusNotFound)
			return
		}
		runID = last.ID
	} else if _, err := h.storage.LoadRun(runID); errors.Is(err, common.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	leads, err := h.storage.LoadLeads(runID)
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to load leads")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leads-%s.csv", runID))
		if err := models.WriteCSV(w, leads); err != nil {
			h.logger.Error().Err(err).Msg("Failed to write leads CSV")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"leads":  leads,
		"count":  len(leads),
	})
}

// CollectHandler starts a run in the background. Progress is broadcast on the WebSocket hub.
func (h *APIHandlers) CollectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CollectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	if req.Query == "" {
		req.Query = r.URL.Query().Get("query")
	}
	if strings.TrimSpace(req.Query) == "" {
		req.Query = h.config.Collector.DefaultQuery
	}

	if !h.collecting.CompareAndSwap(false, true) {
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"status": "busy",
			"error":  common.ErrRunInProgress.Error(),
		})
		return
	}

	go func() {
		defer h.collecting.Store(false)
		run, leads, err := h.collector.Run(h.runCtx, req.Query)
		if err != nil {
			h.logger.Error().Err(err).Str("query", req.Query).Msg("Collector run triggered over HTTP failed")
			if run == nil && h.wsHub != nil {
				h.wsHub.RunEvent("run_rejected", map[string]interface{}{"query": req.Query, "error": err.Error()})
			}
			return
		}
		h.logger.Info().
			Str("run_id", run.ID).
			Int("leads", len(leads)).
			Msg("Collector run triggered over HTTP finished")
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "accepted",
		"query":  req.Query,
	})
}

// DatabaseHandler reports stored lead counts (GET) or clears all runs and leads (DELETE)
func (h *APIHandlers) DatabaseHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetDatabase(w, r)
	case http.MethodDelete:
		h.handleClearDatabase(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) handleGetDatabase(w http.ResponseWriter, r *http.Request) {
	leads, err := h.storage.LoadAllLeads()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load leads")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, DatabaseResponse{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d leads", len(leads)),
		Count:   len(leads),
	})
}

func (h *APIHandlers) handleClearDatabase(w http.ResponseWriter, r *http.Request) {
	if h.collecting.Load() {
		h.writeJSON(w, http.StatusConflict, DatabaseResponse{
			Success: false,
			Message: "Cannot clear the database while a run is in progress",
		})
		return
	}

	h.logger.Info().Msg("Clearing all stored runs and leads")

	if err := h.storage.ClearAll(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear database")
		h.writeJSON(w, http.StatusInternalServerError, DatabaseResponse{
			Success: false,
			Message: "Failed to clear database",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, DatabaseResponse{
		Success: true,
		Message: "All data cleared from database",
	})
}

func (h *APIHandlers) testDatabaseConnection() bool {
	_, err := h.storage.GetLastRun()
	return err == nil
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
