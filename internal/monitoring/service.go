// Package monitoring orchestrates the pipeline: fetch raw posts for the
// watchlist, ingest and aggregate them, then run spike detection and send
// notifications.
package monitoring

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/config"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ingestion"
	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/notifications"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sources"
	"github.com/tickerpulse/ticker-mentions-bot/internal/trends"
)

// Service ties collection, ingestion and detection together.
type Service struct {
	config              *config.Config
	sources             []sources.Source
	ingestionService    *ingestion.Service
	detector            *trends.Detector
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	mu                  sync.RWMutex
}

// Metrics holds pipeline counters exposed on /metrics.
type Metrics struct {
	MentionsIngested int            `json:"mentions_ingested"`
	SpikesDetected   int            `json:"spikes_detected"`
	LastRun          time.Time      `json:"last_run"`
	LastRunDuration  string         `json:"last_run_duration"`
	PlatformMetrics  map[string]int `json:"platform_metrics"`
	ErrorCount       int            `json:"error_count"`
}

// NewService creates a new monitoring service.
func NewService(cfg *config.Config, srcs []sources.Source, ingestionService *ingestion.Service, detector *trends.Detector, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		config:              cfg,
		sources:             srcs,
		ingestionService:    ingestionService,
		detector:            detector,
		notificationService: notificationService,
		metrics: &Metrics{
			PlatformMetrics: make(map[string]int),
		},
	}
}

// RunCollection fetches raw posts for every watchlist symbol from every
// enabled source concurrently and ingests the batches. One failing
// (symbol, platform) unit never aborts the rest.
func (s *Service) RunCollection() error {
	start := time.Now()
	logrus.Infof("Starting collection run for %d symbols", len(s.config.Watchlist))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	window := 24 * time.Hour
	if s.config.CollectionSchedule == "hourly" {
		window = 2 * time.Hour
	}

	type unitResult struct {
		platform string
		ingested int
		err      error
	}

	var wg sync.WaitGroup
	results := make(chan unitResult, len(s.sources)*len(s.config.Watchlist))

	for _, source := range s.sources {
		if !source.IsEnabled() {
			logrus.Debugf("Source %s disabled, skipping", source.GetName())
			continue
		}
		for _, symbol := range s.config.Watchlist {
			wg.Add(1)
			go func(src sources.Source, symbol string) {
				defer wg.Done()

				posts, err := src.FetchPosts(ctx, symbol, window)
				if err != nil {
					logrus.Errorf("Failed to fetch %s from %s: %v", symbol, src.GetName(), err)
					results <- unitResult{platform: src.GetName(), err: err}
					return
				}
				if len(posts) == 0 {
					results <- unitResult{platform: src.GetName()}
					return
				}

				ingested, err := s.ingestionService.IngestBatch(ctx, symbol, src.GetName(), posts)
				results <- unitResult{platform: src.GetName(), ingested: ingested, err: err}
			}(source, symbol)
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ingested := 0
	errorCount := 0
	perPlatform := make(map[string]int)
	for result := range results {
		if result.err != nil {
			errorCount++
		}
		ingested += result.ingested
		perPlatform[result.platform] += result.ingested
	}

	s.updateCollectionMetrics(ingested, perPlatform, time.Since(start), errorCount)
	logrus.Infof("Collection run completed in %v: %d mentions ingested, %d errors", time.Since(start), ingested, errorCount)
	return nil
}

// RunDetection scans the watchlist and runs open-world discovery on every
// platform, then sends a report when anything spiked.
func (s *Service) RunDetection() error {
	logrus.Info("Starting detection run")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	totalSpikes := 0
	for _, source := range s.sources {
		platform := source.GetName()

		report := &models.SpikeReport{
			GeneratedAt: time.Now().UTC(),
			Platform:    platform,
		}

		scan, err := s.detector.ScanWatchlist(ctx, s.config.Watchlist, platform, s.config.LookbackDays)
		if err != nil {
			logrus.Errorf("Watchlist scan failed for %s: %v", platform, err)
		} else {
			report.WatchlistScan = scan
			report.Spikes = append(report.Spikes, scan.Spikes...)
		}

		discovery, err := s.detector.Discover(ctx, platform, s.config.LookbackDays, trends.DiscoverOptions{
			MinMentions:   s.config.MinMentions,
			MinSpikeRatio: s.config.MinSpikeRatio,
		})
		if err != nil {
			logrus.Errorf("Discovery failed for %s: %v", platform, err)
		} else {
			report.Discovery = discovery
			report.Spikes = append(report.Spikes, discoveryOnly(report.Spikes, discovery.Spikes)...)
		}

		if len(report.Spikes) == 0 {
			logrus.Infof("No spikes detected on %s", platform)
			continue
		}
		totalSpikes += len(report.Spikes)

		if s.notificationService != nil {
			if err := s.notificationService.SendSpikeReport(report); err != nil {
				logrus.Errorf("Failed to send spike report for %s: %v", platform, err)
			}
		}
	}

	s.mu.Lock()
	s.metrics.SpikesDetected = totalSpikes
	s.mu.Unlock()

	logrus.Infof("Detection run completed: %d spikes", totalSpikes)
	return nil
}

// discoveryOnly returns discovered spikes not already present in the
// watchlist results.
func discoveryOnly(existing, discovered []models.SpikeResult) []models.SpikeResult {
	seen := make(map[string]bool, len(existing))
	for _, spike := range existing {
		seen[spike.Symbol] = true
	}

	var extra []models.SpikeResult
	for _, spike := range discovered {
		if !seen[spike.Symbol] {
			extra = append(extra, spike)
		}
	}
	return extra
}

func (s *Service) updateCollectionMetrics(ingested int, perPlatform map[string]int, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.MentionsIngested = ingested
	s.metrics.LastRun = time.Now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ErrorCount = errorCount

	s.metrics.PlatformMetrics = make(map[string]int)
	for platform, count := range perPlatform {
		s.metrics.PlatformMetrics[platform] = count
	}
}

// GetMetrics returns current metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
