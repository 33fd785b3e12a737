package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/live-transcriber/internal/audio"
	"github.com/skypro1111/live-transcriber/internal/capture"
	"github.com/skypro1111/live-transcriber/internal/config"
	"github.com/skypro1111/live-transcriber/internal/metrics"
	"github.com/skypro1111/live-transcriber/internal/pipeline"
	"github.com/skypro1111/live-transcriber/internal/server"
	"github.com/skypro1111/live-transcriber/internal/transcript"
	"github.com/skypro1111/live-transcriber/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-transcriber"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Optional .env for the API key
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Float64("overlap_duration", cfg.Audio.OverlapDuration),
		slog.String("capture_input", cfg.Capture.Input),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.Int("min_match_tokens", cfg.Merge.MinMatchTokens),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	// Audio input device (exclusive handle for the session)
	device, err := openDevice(cfg.Capture.Input)
	if err != nil {
		logger.Error("Failed to open audio input", slog.String("error", err.Error()))
		os.Exit(1)
	}

	source := capture.NewSource(device, capture.Config{
		FrameSize: cfg.Audio.FrameSize,
		QueueSize: cfg.Capture.QueueSize,
	}, logger)

	chunker := audio.NewChunker(audio.ChunkingConfig{
		ChunkDuration: cfg.Audio.GetChunkDuration(),
		SampleRate:    cfg.Audio.SampleRate,
	})

	engine, err := transcription.NewWhisperEngine(transcription.Config{
		APIKey:        cfg.Transcription.APIKey,
		BaseURL:       cfg.Transcription.BaseURL,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Prompt:        cfg.Transcription.Prompt,
		Temperature:   cfg.Transcription.Temperature,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	merger := transcript.NewMerger(cfg.Audio.OverlapDuration, cfg.Merge.MinMatchTokens)
	store := transcript.NewStore()
	hub := server.NewHub(logger)

	// Fragments fan out to the console, the transcript store and the live feed
	coordinator := pipeline.New(pipeline.Config{
		ChunkQueueSize:     cfg.Pipeline.ChunkQueueSize,
		FlushPartialOnStop: cfg.Capture.FlushPartialOnStop,
	}, logger, appMetrics, source, chunker, engine, merger,
		pipeline.NewWriterSink(os.Stdout), store, hub)

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg, logger, coordinator, store, engine, hub, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := coordinator.Start(); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Recording... transcript follows on stdout")

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		coordinator.Stop()
	case err := <-coordinator.Fatal():
		logger.Error("Fatal pipeline error", slog.String("error", err.Error()))
		coordinator.Abort()
		exitCode = 1
	}

	// Terminate the transcript line before any final status output
	fmt.Fprintln(os.Stdout)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := engine.Close(); err != nil {
		logger.Warn("Error closing transcription engine", slog.String("error", err.Error()))
	}

	// Final statistics
	pipelineStats := coordinator.GetStats()
	mergerStats := coordinator.GetMergerStats()
	engineStats := engine.GetStats()
	logger.Info("Final session statistics",
		slog.Uint64("chunks_processed", pipelineStats.ChunksProcessed),
		slog.Uint64("chunks_failed", pipelineStats.ChunksFailed),
		slog.Uint64("words_emitted", mergerStats.WordsEmitted),
		slog.Uint64("overlaps_found", mergerStats.OverlapsFound),
		slog.Float64("transcription_success_rate", engineStats.SuccessRate),
	)

	logger.Info("Service stopped")
	os.Exit(exitCode)
}

// openDevice resolves the configured capture input into a Device.
// "stdin" reads PCM-16LE from standard input (e.g. piped from arecord);
// anything else is treated as a raw PCM file path.
func openDevice(input string) (capture.Device, error) {
	if input == "stdin" {
		return capture.NewReaderDevice(os.Stdin), nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open capture input %s: %w", input, err)
	}

	return capture.NewReaderDevice(f), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
