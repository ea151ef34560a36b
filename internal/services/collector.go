package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/metrics"
	"clinic-leads-collector/internal/models"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

type collector struct {
	config     *common.Config
	extractor  interfaces.ListingExtractor
	classifier interfaces.ClinicClassifier
	assembler  interfaces.LeadAssembler
	writer     interfaces.LeadWriter
	storage    interfaces.Storage
	logger     arbor.ILogger
	observer   interfaces.RunObserver
	running    atomic.Bool
	now        func() time.Time
}

// NewCollector wires the pipeline stages into one run. storage and observer may be nil.
func NewCollector(
	config *common.Config,
	extractor interfaces.ListingExtractor,
	classifier interfaces.ClinicClassifier,
	assembler interfaces.LeadAssembler,
	writer interfaces.LeadWriter,
	storage interfaces.Storage,
	logger arbor.ILogger,
	observer interfaces.RunObserver,
) interfaces.Collector {
	return &collector{
		config:     config,
		extractor:  extractor,
		classifier: classifier,
		assembler:  assembler,
		writer:     writer,
		storage:    storage,
		logger:     logger,
		observer:   observer,
		now:        time.Now,
	}
}

// Run extracts, classifies and assembles the leads for one query. Only a session failure or an
// output failure returns an error; a classification failure ends the run with no leads and the
// classification_failed status.
func (c *collector) Run(ctx context.Context, query string) (*models.RunRecord, []models.Lead, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = strings.TrimSpace(c.config.Collector.DefaultQuery)
	}
	if query == "" {
		return nil, nil, common.NewValidationError("missing_query", "a search query is required")
	}

	if !c.running.CompareAndSwap(false, true) {
		return nil, nil, common.ErrRunInProgress
	}
	defer c.running.Store(false)

	if timeout := c.config.Collector.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run := &models.RunRecord{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    models.RunStatusRunning,
		StartedAt: c.now(),
	}
	c.saveRun(run)
	c.emit("run_started", run)

	c.logger.Info().
		Str("run_id", run.ID).
		Str("query", query).
		Msg("Collector run started")

	result, err := c.extractor.Extract(ctx, query)
	if err != nil {
		status := models.RunStatusFailed
		if common.IsErrorType(err, common.ErrorTypeSession) {
			status = models.RunStatusSessionFailed
		}
		c.finish(run, status, err)
		return run, nil, err
	}
	run.ListingsExtracted = len(result.Listings)
	run.ListingErrors = result.ListingErrors

	decisions, classifyErr := c.classifier.ClassifyBatch(ctx, result.Names())
	run.DecisionsReceived = len(decisions)
	if classifyErr != nil {
		c.finish(run, models.RunStatusClassificationFailed, classifyErr)
		return run, []models.Lead{}, nil
	}

	leads := c.assembler.Assemble(result.Listings, decisions)
	if c.config.Output.KeepOnly {
		leads = keepOnly(leads)
	}
	for i := range leads {
		leads[i].RunID = run.ID
	}
	run.LeadsEmitted = len(leads)

	if len(leads) == 0 {
		c.finish(run, models.RunStatusNoLeads, nil)
		return run, leads, nil
	}

	path, err := c.writer.Write(leads, c.now())
	if err != nil {
		c.finish(run, models.RunStatusFailed, err)
		return run, leads, err
	}
	run.OutputPath = path

	if c.storage != nil {
		if err := c.storage.SaveLeads(run.ID, leads); err != nil {
			c.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to store leads")
		}
	}

	metrics.LeadsEmitted.Add(float64(len(leads)))
	c.finish(run, models.RunStatusCompleted, nil)
	return run, leads, nil
}

func (c *collector) finish(run *models.RunRecord, status models.RunStatus, err error) {
	run.Status = status
	run.FinishedAt = c.now()
	if err != nil {
		run.Error = err.Error()
	}

	metrics.Runs.WithLabelValues(string(status)).Inc()
	metrics.RunDuration.Observe(run.Duration().Seconds())

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("run_id", run.ID).
			Str("status", string(status)).
			Int("listings", run.ListingsExtracted).
			Msg("Collector run failed")
	} else {
		c.logger.Info().
			Str("run_id", run.ID).
			Str("status", string(status)).
			Int("listings", run.ListingsExtracted).
			Int("decisions", run.DecisionsReceived).
			Int("leads", run.LeadsEmitted).
			Dur("duration", run.Duration()).
			Msg("Collector run finished")
	}

	c.saveRun(run)
	c.emit("run_finished", run)
}

func (c *collector) saveRun(run *models.RunRecord) {
	if c.storage == nil {
		return
	}
	if err := c.storage.SaveRun(run); err != nil {
		c.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to store run record")
	}
}

func (c *collector) emit(eventType string, data interface{}) {
	if c.observer != nil {
		c.observer.RunEvent(eventType, data)
	}
}

func keepOnly(leads []models.Lead) []models.Lead {
	kept := leads[:0]
	for _, lead := range leads {
		if lead.Decision == models.DecisionKeep {
			kept = append(kept, lead)
		}
	}
	return kept
}
