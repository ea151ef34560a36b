package services

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"clinic-leads-collector/internal/common"
	"clinic-leads-collector/internal/handlers"
	"clinic-leads-collector/internal/interfaces"
	"clinic-leads-collector/internal/metrics"
	"clinic-leads-collector/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer exposes run control, stored leads and metrics over HTTP
type webServer struct {
	config      *common.Config
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	wsHub       *handlers.WebSocketHub
	running     atomic.Bool
	startTime   time.Time
}

// NewWebServer creates a new web server instance. wsHub should be the observer the collector
// was built with so that run events reach WebSocket clients.
func NewWebServer(cfg *common.Config, collector interfaces.Collector, storage interfaces.Storage, wsHub *handlers.WebSocketHub, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	apiHandlers := handlers.NewAPIHandlers(cfg, collector, storage, logger, wsHub)
	uiHandlers, err := handlers.NewUIHandlers(cfg, storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard templates: %w", err)
	}

	ws := &webServer{
		config:      cfg,
		logger:      logger,
		apiHandlers: apiHandlers,
		wsHub:       wsHub,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Collector.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS
	getOnly := middleware.Methods(http.MethodGet)

	mux.HandleFunc("/", logMiddleware(getOnly(uiHandlers.IndexHandler)))
	mux.HandleFunc("/health", logMiddleware(corsMiddleware(getOnly(apiHandlers.HealthHandler))))
	mux.HandleFunc("/version", logMiddleware(corsMiddleware(getOnly(apiHandlers.VersionHandler))))
	mux.HandleFunc("/config", logMiddleware(corsMiddleware(getOnly(apiHandlers.ConfigHandler))))
	mux.HandleFunc("/runs", logMiddleware(corsMiddleware(apiHandlers.RunsHandler)))
	mux.HandleFunc("/leads", logMiddleware(corsMiddleware(apiHandlers.LeadsHandler)))
	mux.HandleFunc("/collect", logMiddleware(corsMiddleware(apiHandlers.CollectHandler)))
	mux.HandleFunc("/database", logMiddleware(corsMiddleware(apiHandlers.DatabaseHandler)))
	mux.Handle("/metrics", metrics.Handler())

	if wsHub != nil {
		mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))
	}

	return ws, nil
}

// Start starts the web server. Runs triggered over HTTP are cancelled when ctx is.
func (ws *webServer) Start(ctx context.Context) error {
	ws.apiHandlers.SetRunContext(ctx)
	ws.running.Store(true)
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Collector.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
			ws.running.Store(false)
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	if ws.wsHub != nil {
		ws.wsHub.Close()
	}
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	return ws.running.Load()
}
