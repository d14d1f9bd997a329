package models

import (
	"fmt"
	"time"
)

// RawPost is a single post as delivered by a platform fetcher, before
// sentiment scoring and persistence.
type RawPost struct {
	PlatformPostID string    `json:"platform_post_id"`
	Author         string    `json:"author"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	CreatedAt      time.Time `json:"created_at"`
	Upvotes        int       `json:"upvotes"`
	Comments       int       `json:"comments"`
}

// MentionRecord represents one social post about one symbol on one platform.
// Records are unique per (platform, platform_post_id); re-ingesting the same
// post replaces the prior row instead of duplicating it.
type MentionRecord struct {
	ID             string    `gorm:"primaryKey" json:"id"` // "platform:platformPostId"
	Symbol         string    `gorm:"index;not null" json:"symbol"`
	Platform       string    `gorm:"uniqueIndex:idx_platform_post;not null" json:"platform"`
	PlatformPostID string    `gorm:"uniqueIndex:idx_platform_post;not null" json:"platform_post_id"`
	Author         string    `json:"author"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	Upvotes        int       `json:"upvotes"`
	Comments       int       `json:"comments"`
	SentimentScore float64   `json:"sentiment_score"`
	SentimentLabel string    `json:"sentiment_label"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	CollectedAt    time.Time `json:"collected_at"`
}

// MentionID builds the synthetic record id for a platform post.
func MentionID(platform, platformPostID string) string {
	return fmt.Sprintf("%s:%s", platform, platformPostID)
}

// DailyTrend aggregates one symbol's activity on one platform for one UTC
// calendar day. Rows are recomputed in full from the mention store whenever
// an ingestion touches that day, never incremented.
type DailyTrend struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Symbol        string    `gorm:"uniqueIndex:idx_symbol_platform_date;not null" json:"symbol"`
	Platform      string    `gorm:"uniqueIndex:idx_symbol_platform_date;not null" json:"platform"`
	Date          time.Time `gorm:"uniqueIndex:idx_symbol_platform_date;not null" json:"date"` // UTC midnight
	MentionCount  int       `json:"mention_count"`
	AvgSentiment  float64   `json:"avg_sentiment"`
	TotalUpvotes  int       `json:"total_upvotes"`
	TotalComments int       `json:"total_comments"`
}

// DayTrend is one day of a detection window, oldest first within a series.
// Days without a stored trend row appear as zero-activity entries.
type DayTrend struct {
	Date          time.Time `json:"date"`
	MentionCount  int       `json:"mention_count"`
	AvgSentiment  float64   `json:"avg_sentiment"`
	TotalUpvotes  int       `json:"total_upvotes"`
	TotalComments int       `json:"total_comments"`
}

// SpikeResult is the outcome of spike detection for one symbol on one
// platform over a lookback window.
type SpikeResult struct {
	Symbol          string     `json:"symbol"`
	Platform        string     `json:"platform"`
	LookbackDays    int        `json:"lookback_days"`
	CurrentMentions int        `json:"current_mentions"`
	AvgMentions     float64    `json:"avg_mentions"`
	SpikeRatio      float64    `json:"spike_ratio"`
	InfiniteRatio   bool       `json:"infinite_ratio,omitempty"` // no history but strong current activity
	SpikeDetected   bool       `json:"spike_detected"`
	RecentSentiment float64    `json:"recent_sentiment"`
	SentimentLabel  string     `json:"sentiment_label"`
	Trends          []DayTrend `json:"trends"` // oldest to newest
}

// ScanResult bundles the outcome of a multi-symbol scan or an open-world
// discovery run. Per-symbol failures are annotated in Errors and never
// abort the scan.
type ScanResult struct {
	Platform       string            `json:"platform"`
	LookbackDays   int               `json:"lookback_days"`
	TotalScanned   int               `json:"total_scanned"`
	SpikesDetected int               `json:"spikes_detected"`
	Spikes         []SpikeResult     `json:"spikes"`
	Errors         map[string]string `json:"errors,omitempty"` // symbol -> error
}

// SpikeReport is a rendered detection run sent through notification channels.
type SpikeReport struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	Platform      string        `json:"platform"`
	WatchlistScan *ScanResult   `json:"watchlist_scan,omitempty"`
	Discovery     *ScanResult   `json:"discovery,omitempty"`
	Spikes        []SpikeResult `json:"spikes"`
}
