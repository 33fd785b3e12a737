package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/live-transcriber/internal/config"
	"github.com/skypro1111/live-transcriber/internal/metrics"
	"github.com/skypro1111/live-transcriber/internal/pipeline"
	"github.com/skypro1111/live-transcriber/internal/transcript"
	"github.com/skypro1111/live-transcriber/internal/transcription"
)

// EngineStatsProvider exposes transcription engine statistics to the API
type EngineStatsProvider interface {
	GetStats() transcription.EngineStats
}

// HTTPServer provides HTTP API endpoints for monitoring and the live feed
type HTTPServer struct {
	server      *http.Server
	logger      *slog.Logger
	config      *config.Config
	coordinator *pipeline.Coordinator
	store       *transcript.Store
	engineStats EngineStatsProvider
	hub         *Hub
	metrics     *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger,
	coordinator *pipeline.Coordinator, store *transcript.Store,
	engineStats EngineStatsProvider, hub *Hub, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:      logger,
		config:      appConfig,
		coordinator: coordinator,
		store:       store,
		engineStats: engineStats,
		hub:         hub,
		metrics:     m,
		startTime:   time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/transcript", h.withMetrics("/transcript", h.handleTranscript))

	// Live transcript feed (no metrics wrapper, the connection is long-lived)
	mux.HandleFunc("/ws", h.hub.ServeWS)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.hub.Close()

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	pipelineStats := h.coordinator.GetStats()
	engineStats := h.engineStats.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "live-transcriber",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"pipeline": map[string]interface{}{
				"status":           "running",
				"chunks_processed": pipelineStats.ChunksProcessed,
				"chunks_failed":    pipelineStats.ChunksFailed,
				"chunk_queue_size": pipelineStats.ChunkQueueSize,
			},
			"transcription": map[string]interface{}{
				"status":          "running",
				"total_requests":  engineStats.TotalRequests,
				"success_rate":    engineStats.SuccessRate,
				"active_requests": engineStats.ActiveRequests,
			},
			"live_feed": map[string]interface{}{
				"clients": h.hub.ClientCount(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":        uptime.String(),
		"timestamp":     time.Now().UTC(),
		"capture":       h.coordinator.GetSourceStats(),
		"chunker":       h.coordinator.GetChunkerStats(),
		"pipeline":      h.coordinator.GetStats(),
		"transcription": h.engineStats.GetStats(),
		"merger":        h.coordinator.GetMergerStats(),
		"transcript": map[string]interface{}{
			"fragments": h.store.Fragments(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":      h.config.Audio.SampleRate,
			"channels":         h.config.Audio.Channels,
			"bit_depth":        h.config.Audio.BitDepth,
			"frame_size":       h.config.Audio.FrameSize,
			"chunk_duration":   h.config.Audio.ChunkDuration,
			"overlap_duration": h.config.Audio.OverlapDuration,
		},
		"capture": map[string]interface{}{
			"input":                 h.config.Capture.Input,
			"queue_size":            h.config.Capture.QueueSize,
			"flush_partial_on_stop": h.config.Capture.FlushPartialOnStop,
		},
		"pipeline": map[string]interface{}{
			"chunk_queue_size": h.config.Pipeline.ChunkQueueSize,
		},
		"transcription": map[string]interface{}{
			"model":          h.config.Transcription.Model,
			"language":       h.config.Transcription.Language,
			"timeout":        h.config.Transcription.Timeout,
			"max_concurrent": h.config.Transcription.MaxConcurrent,
			// Note: API key is intentionally omitted for security
		},
		"merge": map[string]interface{}{
			"min_match_tokens": h.config.Merge.MinMatchTokens,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleTranscript implements the /transcript endpoint
func (h *HTTPServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"fragments":  h.store.Fragments(),
		"transcript": h.store.Text(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Live Transcriber",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":           "API documentation",
			"GET /health":     "Service health check",
			"GET /stats":      "Pipeline, transcription and merge statistics",
			"GET /config":     "Get service configuration",
			"GET /transcript": "Full accumulated transcript",
			"GET /ws":         "Websocket live transcript feed",
			"GET /metrics":    "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
