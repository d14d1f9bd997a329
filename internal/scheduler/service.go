package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/config"
	"github.com/tickerpulse/ticker-mentions-bot/internal/monitoring"
)

// Service handles scheduling of collection and detection runs.
type Service struct {
	config            *config.Config
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, monitoringService *monitoring.Service) *Service {
	return &Service{
		config:            cfg,
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled collection and detection runs.
func (s *Service) Start() error {
	var collectionExpression string

	switch s.config.CollectionSchedule {
	case "hourly":
		// Collect at the top of every hour
		collectionExpression = "0 0 * * * *"
	case "daily":
		// Collect daily at 6 AM UTC, before the markets open
		collectionExpression = "0 0 6 * * *"
	default:
		collectionExpression = "0 0 * * * *"
	}

	_, err := s.cron.AddFunc(collectionExpression, func() {
		logrus.Info("Starting scheduled collection run")
		if err := s.monitoringService.RunCollection(); err != nil {
			logrus.Errorf("Scheduled collection run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	// Detection runs every 4 hours, after collected data has settled
	_, err = s.cron.AddFunc("0 15 */4 * * *", func() {
		logrus.Info("Starting scheduled detection run")
		if err := s.monitoringService.RunDetection(); err != nil {
			logrus.Errorf("Scheduled detection run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s collection (detection every 4 hours)", s.config.CollectionSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
