// Package trends implements spike detection over the daily trend table:
// single-symbol detection, concurrent watchlist scans, and open-world
// discovery of symbols that spike without being watched.
package trends

import (
	"context"
	"errors"
	"time"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sentiment"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
)

// A day counts as a spike when its mentions reach this multiple of the
// historical average.
const spikeThreshold = 2.0

// Recent sentiment averages over at most this many trailing days.
const recentSentimentDays = 3

// Parameter validation failures surfaced to the caller before any work.
var (
	ErrInvalidLookback = errors.New("lookback days must be at least 1")
	ErrEmptyWatchlist  = errors.New("watchlist must contain at least one symbol")
)

// Detector runs the spike detection algorithms against a trend store.
// Detection is a pure read over already-aggregated data and is safe to run
// concurrently across symbols and platforms.
type Detector struct {
	trends storage.TrendStore
	now    func() time.Time
}

// NewDetector creates a detector over the given trend store.
func NewDetector(trends storage.TrendStore) *Detector {
	return &Detector{
		trends: trends,
		now:    time.Now,
	}
}

// Detect compares the latest day's mention count for a symbol against the
// average of the prior lookback days. Days without a trend row count as
// zero activity. With no history the ratio is 0 and no spike is reported,
// whatever the current count.
func (d *Detector) Detect(ctx context.Context, symbol, platform string, lookbackDays int) (*models.SpikeResult, error) {
	if lookbackDays < 1 {
		return nil, ErrInvalidLookback
	}

	today := storage.DayOf(d.now())
	from := today.AddDate(0, 0, -(lookbackDays - 1))

	rows, err := d.trends.SymbolTrendsInRange(ctx, symbol, platform, from, today)
	if err != nil {
		return nil, err
	}

	series := buildSeries(rows, from, lookbackDays)
	return d.evaluate(symbol, platform, lookbackDays, series), nil
}

// evaluate computes the spike result for a complete per-day series,
// oldest first.
func (d *Detector) evaluate(symbol, platform string, lookbackDays int, series []models.DayTrend) *models.SpikeResult {
	current := series[len(series)-1].MentionCount

	var avgMentions float64
	if len(series) > 1 {
		sum := 0
		for _, day := range series[:len(series)-1] {
			sum += day.MentionCount
		}
		avgMentions = float64(sum) / float64(len(series)-1)
	}

	var spikeRatio float64
	if avgMentions > 0 {
		spikeRatio = float64(current) / avgMentions
	}

	recent, label := recentSentiment(series)

	return &models.SpikeResult{
		Symbol:          symbol,
		Platform:        platform,
		LookbackDays:    lookbackDays,
		CurrentMentions: current,
		AvgMentions:     avgMentions,
		SpikeRatio:      spikeRatio,
		SpikeDetected:   spikeRatio >= spikeThreshold,
		RecentSentiment: recent,
		SentimentLabel:  label,
		Trends:          series,
	}
}

// buildSeries expands sparse trend rows into a contiguous window of
// lookbackDays entries ending at the newest day, filling gaps with
// zero-activity days.
func buildSeries(rows []models.DailyTrend, from time.Time, lookbackDays int) []models.DayTrend {
	byDate := make(map[string]models.DailyTrend, len(rows))
	for _, row := range rows {
		byDate[storage.DayOf(row.Date).Format("2006-01-02")] = row
	}

	series := make([]models.DayTrend, 0, lookbackDays)
	for i := 0; i < lookbackDays; i++ {
		day := from.AddDate(0, 0, i)
		entry := models.DayTrend{Date: day}
		if row, ok := byDate[day.Format("2006-01-02")]; ok {
			entry.MentionCount = row.MentionCount
			entry.AvgSentiment = row.AvgSentiment
			entry.TotalUpvotes = row.TotalUpvotes
			entry.TotalComments = row.TotalComments
		}
		series = append(series, entry)
	}
	return series
}

// recentSentiment averages AvgSentiment over the trailing days of the
// series and labels the result with the scorer's thresholds.
func recentSentiment(series []models.DayTrend) (float64, string) {
	window := recentSentimentDays
	if len(series) < window {
		window = len(series)
	}

	var sum float64
	for _, day := range series[len(series)-window:] {
		sum += day.AvgSentiment
	}
	avg := sum / float64(window)
	return avg, sentiment.LabelForScore(avg)
}
