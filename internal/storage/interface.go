package storage

import (
	"context"
	"time"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// MentionStore persists individual mention records. Upserts are atomic per
// (platform, platform_post_id): a concurrent writer wins or loses the whole
// row, never a partial merge.
type MentionStore interface {
	UpsertMention(ctx context.Context, record *models.MentionRecord) error
	MentionsForDay(ctx context.Context, symbol, platform string, day time.Time) ([]models.MentionRecord, error)
}

// TrendStore persists daily trend aggregates. GetTrend returns (nil, nil)
// when no row exists for the day; callers treat that as zero activity.
type TrendStore interface {
	UpsertTrend(ctx context.Context, trend *models.DailyTrend) error
	GetTrend(ctx context.Context, symbol, platform string, day time.Time) (*models.DailyTrend, error)
	SymbolTrendsInRange(ctx context.Context, symbol, platform string, from, to time.Time) ([]models.DailyTrend, error)
	TrendsInRange(ctx context.Context, platform string, from, to time.Time) ([]models.DailyTrend, error)
}

// Store is the combined persistence contract for the aggregation pipeline,
// which is the sole owner of both tables.
type Store interface {
	MentionStore
	TrendStore
}

// ArchiveInterface defines the contract for archiving raw ingest batches:
// ingestion writes one snapshot per batch, replay lists and reads them back.
type ArchiveInterface interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
}

// DayOf truncates a timestamp to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
