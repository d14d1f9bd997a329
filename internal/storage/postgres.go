package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// PostgresStore implements Store on top of a Postgres database via gorm.
// The conflict-target upserts make every write a single atomic statement,
// which is what serializes concurrent ingestion of the same key.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database, configures the connection
// pool and migrates the mention and trend tables.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.MentionRecord{}, &models.DailyTrend{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logrus.Info("Postgres store initialized")
	return &PostgresStore{db: db}, nil
}

// UpsertMention writes a mention record, replacing any previous row for the
// same (platform, platform_post_id).
func (s *PostgresStore) UpsertMention(ctx context.Context, record *models.MentionRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform"}, {Name: "platform_post_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert mention %s: %w", record.ID, err)
	}
	return nil
}

// MentionsForDay returns every mention of a symbol on a platform whose
// origin timestamp falls on the given UTC day.
func (s *PostgresStore) MentionsForDay(ctx context.Context, symbol, platform string, day time.Time) ([]models.MentionRecord, error) {
	start := DayOf(day)
	end := start.Add(24 * time.Hour)

	var records []models.MentionRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND platform = ? AND created_at >= ? AND created_at < ?", symbol, platform, start, end).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query mentions for %s/%s on %s: %w", symbol, platform, start.Format("2006-01-02"), err)
	}
	return records, nil
}

// UpsertTrend writes a daily trend row, replacing any previous aggregate
// for the same (symbol, platform, date).
func (s *PostgresStore) UpsertTrend(ctx context.Context, trend *models.DailyTrend) error {
	trend.Date = DayOf(trend.Date)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "platform"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"mention_count", "avg_sentiment", "total_upvotes", "total_comments"}),
	}).Create(trend).Error
	if err != nil {
		return fmt.Errorf("failed to upsert trend %s/%s %s: %w", trend.Symbol, trend.Platform, trend.Date.Format("2006-01-02"), err)
	}
	return nil
}

// GetTrend fetches one trend row, or (nil, nil) when the day has no data.
func (s *PostgresStore) GetTrend(ctx context.Context, symbol, platform string, day time.Time) (*models.DailyTrend, error) {
	var trend models.DailyTrend
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND platform = ? AND date = ?", symbol, platform, DayOf(day)).
		First(&trend).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trend %s/%s: %w", symbol, platform, err)
	}
	return &trend, nil
}

// SymbolTrendsInRange returns one symbol's trend rows with date in
// [from, to], ordered oldest first.
func (s *PostgresStore) SymbolTrendsInRange(ctx context.Context, symbol, platform string, from, to time.Time) ([]models.DailyTrend, error) {
	var trends []models.DailyTrend
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND platform = ? AND date >= ? AND date <= ?", symbol, platform, DayOf(from), DayOf(to)).
		Order("date asc").
		Find(&trends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trends for %s/%s: %w", symbol, platform, err)
	}
	return trends, nil
}

// TrendsInRange returns all trend rows for a platform with date in
// [from, to], across every symbol that has any.
func (s *PostgresStore) TrendsInRange(ctx context.Context, platform string, from, to time.Time) ([]models.DailyTrend, error) {
	var trends []models.DailyTrend
	err := s.db.WithContext(ctx).
		Where("platform = ? AND date >= ? AND date <= ?", platform, DayOf(from), DayOf(to)).
		Order("date asc").
		Find(&trends).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query trends for platform %s: %w", platform, err)
	}
	return trends, nil
}
