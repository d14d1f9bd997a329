package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/config"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ingestion"
	"github.com/tickerpulse/ticker-mentions-bot/internal/monitoring"
	"github.com/tickerpulse/ticker-mentions-bot/internal/notifications"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ratelimit"
	"github.com/tickerpulse/ticker-mentions-bot/internal/scheduler"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sentiment"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sources"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
	"github.com/tickerpulse/ticker-mentions-bot/internal/trends"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Ticker Mentions Bot")

	// Initialize the store
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("Failed to initialize store: %v", err)
		}
		store = pg
	} else {
		logrus.Warn("DATABASE_URL not set, using in-memory store (data is lost on restart)")
		store = storage.NewMemoryStore()
	}

	// Initialize the raw batch archive when configured
	var archive storage.ArchiveInterface
	if cfg.StorageAccount != "" {
		archive, err = storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize batch archive: %v", err)
		}
	}

	// Shared admission gate for all outbound platform calls
	gate := ratelimit.NewGate(cfg.RequestsPerSecond, cfg.RequestBurst)

	platformSources := []sources.Source{
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, gate),
		sources.NewStocktwitsSource(gate),
	}

	analyzer := sentiment.NewAnalyzer(sentiment.DefaultLexicon())
	ingestionService := ingestion.NewService(store, analyzer, archive)
	detector := trends.NewDetector(store)
	notificationService := notifications.NewService(cfg)

	monitoringService := monitoring.NewService(cfg, platformSources, ingestionService, detector, notificationService)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, monitoringService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitoringService)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(monitoringService)).Methods("POST")
	router.HandleFunc("/replay/{symbol}", replayHandler(ingestionService)).Methods("POST")
	router.HandleFunc("/spikes/{symbol}", detectHandler(detector, cfg)).Methods("GET")
	router.HandleFunc("/scan", scanHandler(detector, cfg)).Methods("POST")
	router.HandleFunc("/discover", discoverHandler(detector, cfg)).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(monitoringService.GetMetrics()))
	}
}

func triggerHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := monitoringService.RunCollection(); err != nil {
				logrus.Errorf("Manual collection trigger failed: %v", err)
				return
			}
			if err := monitoringService.RunDetection(); err != nil {
				logrus.Errorf("Manual detection trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Collection and detection triggered"}`))
	}
}

func replayHandler(ingestionService *ingestion.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(mux.Vars(r)["symbol"])
		platform := queryOr(r, "platform", "reddit")

		stored, err := ingestionService.ReplayArchive(r.Context(), symbol, platform)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"symbol": symbol, "platform": platform, "records": stored})
	}
}

func detectHandler(detector *trends.Detector, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(mux.Vars(r)["symbol"])
		platform := queryOr(r, "platform", "reddit")
		days := queryIntOr(r, "days", cfg.LookbackDays)

		result, err := detector.Detect(r.Context(), symbol, platform, days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

type scanRequest struct {
	Symbols      []string `json:"symbols"`
	Platform     string   `json:"platform"`
	LookbackDays int      `json:"lookback_days"`
}

func scanHandler(detector *trends.Detector, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Platform == "" {
			req.Platform = "reddit"
		}
		if req.LookbackDays == 0 {
			req.LookbackDays = cfg.LookbackDays
		}
		for i := range req.Symbols {
			req.Symbols[i] = strings.ToUpper(strings.TrimSpace(req.Symbols[i]))
		}

		result, err := detector.ScanWatchlist(r.Context(), req.Symbols, req.Platform, req.LookbackDays)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func discoverHandler(detector *trends.Detector, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform := queryOr(r, "platform", "reddit")
		days := queryIntOr(r, "days", cfg.LookbackDays)
		opts := trends.DiscoverOptions{
			MinMentions:   queryIntOr(r, "min_mentions", cfg.MinMentions),
			MinSpikeRatio: queryFloatOr(r, "min_ratio", cfg.MinSpikeRatio),
		}

		result, err := detector.Discover(r.Context(), platform, days, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, result)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, trends.ErrInvalidLookback) || errors.Is(err, trends.ErrEmptyWatchlist) {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func queryOr(r *http.Request, key, fallback string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return fallback
}

func queryIntOr(r *http.Request, key string, fallback int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func queryFloatOr(r *http.Request, key string, fallback float64) float64 {
	if value := r.URL.Query().Get(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
