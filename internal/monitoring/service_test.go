package monitoring

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tickerpulse/ticker-mentions-bot/internal/config"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ingestion"
	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sentiment"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sources"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
	"github.com/tickerpulse/ticker-mentions-bot/internal/trends"
)

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendSpikeReport(report *models.SpikeReport) error {
	args := m.Called(report)
	return args.Error(0)
}

// fakeSource returns canned posts for every symbol.
type fakeSource struct {
	name  string
	posts []models.RawPost
}

func (f *fakeSource) GetName() string { return f.name }
func (f *fakeSource) IsEnabled() bool { return true }
func (f *fakeSource) FetchPosts(ctx context.Context, symbol string, window time.Duration) ([]models.RawPost, error) {
	return f.posts, nil
}

var _ sources.Source = (*fakeSource)(nil)

func testConfig() *config.Config {
	return &config.Config{
		Watchlist:          []string{"GME"},
		LookbackDays:       7,
		MinMentions:        5,
		MinSpikeRatio:      2.0,
		CollectionSchedule: "hourly",
	}
}

func TestRunCollection_IngestsAndCountsMetrics(t *testing.T) {
	store := storage.NewMemoryStore()
	ingestionService := ingestion.NewService(store, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), nil)
	detector := trends.NewDetector(store)

	now := time.Now().UTC()
	source := &fakeSource{
		name: "reddit",
		posts: []models.RawPost{
			{PlatformPostID: "a", Content: "bullish on this", CreatedAt: now, Upvotes: 3},
			{PlatformPostID: "b", Content: "going to crash", CreatedAt: now, Upvotes: 1},
		},
	}

	service := NewService(testConfig(), []sources.Source{source}, ingestionService, detector, nil)
	require.NoError(t, service.RunCollection())

	records, err := store.MentionsForDay(context.Background(), "GME", "reddit", now)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	var metrics Metrics
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &metrics))
	assert.Equal(t, 2, metrics.MentionsIngested)
	assert.Equal(t, 2, metrics.PlatformMetrics["reddit"])
	assert.Equal(t, 0, metrics.ErrorCount)
}

func TestRunDetection_SendsReportOnSpike(t *testing.T) {
	store := storage.NewMemoryStore()
	detector := trends.NewDetector(store)

	// Seed a clear spike for the watchlist symbol.
	today := storage.DayOf(time.Now().UTC())
	for daysAgo := 1; daysAgo <= 6; daysAgo++ {
		require.NoError(t, store.UpsertTrend(context.Background(), &models.DailyTrend{
			Symbol: "GME", Platform: "reddit", Date: today.AddDate(0, 0, -daysAgo), MentionCount: 5,
		}))
	}
	require.NoError(t, store.UpsertTrend(context.Background(), &models.DailyTrend{
		Symbol: "GME", Platform: "reddit", Date: today, MentionCount: 50,
	}))

	notifier := &MockNotificationService{}
	notifier.On("SendSpikeReport", mock.AnythingOfType("*models.SpikeReport")).Return(nil)

	ingestionService := ingestion.NewService(store, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), nil)
	service := NewService(testConfig(), []sources.Source{&fakeSource{name: "reddit"}}, ingestionService, detector, notifier)

	require.NoError(t, service.RunDetection())

	notifier.AssertCalled(t, "SendSpikeReport", mock.MatchedBy(func(report *models.SpikeReport) bool {
		return report.Platform == "reddit" && len(report.Spikes) > 0 && report.Spikes[0].Symbol == "GME"
	}))
}

func TestRunDetection_NoSpikesNoNotification(t *testing.T) {
	store := storage.NewMemoryStore()
	detector := trends.NewDetector(store)

	notifier := &MockNotificationService{}

	ingestionService := ingestion.NewService(store, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), nil)
	service := NewService(testConfig(), []sources.Source{&fakeSource{name: "reddit"}}, ingestionService, detector, notifier)

	require.NoError(t, service.RunDetection())
	notifier.AssertNotCalled(t, "SendSpikeReport", mock.Anything)
}
