package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sentiment"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
)

func newTestService(store storage.Store) *Service {
	return NewService(store, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), nil)
}

func rawPost(id string, createdAt time.Time, upvotes, comments int, content string) models.RawPost {
	return models.RawPost{
		PlatformPostID: id,
		Author:         "trader_" + id,
		Content:        content,
		URL:            "https://example.com/" + id,
		CreatedAt:      createdAt,
		Upvotes:        upvotes,
		Comments:       comments,
	}
}

func TestIngestBatch_StoresScoredRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	posts := []models.RawPost{
		rawPost("p1", day, 10, 2, "bullish breakout, to the moon"),
		rawPost("p2", day.Add(2*time.Hour), 3, 1, "this will crash, bearish"),
	}

	stored, err := service.IngestBatch(context.Background(), "gme", "reddit", posts)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	records, err := store.MentionsForDay(context.Background(), "GME", "reddit", day)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, record := range records {
		assert.Equal(t, "GME", record.Symbol, "symbol must be uppercased")
		assert.False(t, record.CollectedAt.Before(record.CreatedAt))
	}

	trend, err := store.GetTrend(context.Background(), "GME", "reddit", day)
	require.NoError(t, err)
	require.NotNil(t, trend)
	assert.Equal(t, 2, trend.MentionCount)
	assert.Equal(t, 13, trend.TotalUpvotes)
	assert.Equal(t, 3, trend.TotalComments)
	assert.InDelta(t, 0.0, trend.AvgSentiment, 1e-9) // +1 and -1 average out
}

func TestIngestBatch_IsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	posts := []models.RawPost{
		rawPost("p1", day, 5, 0, "rally incoming"),
		rawPost("p2", day, 7, 1, "nothing to see"),
	}

	_, err := service.IngestBatch(context.Background(), "TSLA", "reddit", posts)
	require.NoError(t, err)
	_, err = service.IngestBatch(context.Background(), "TSLA", "reddit", posts)
	require.NoError(t, err)

	records, err := store.MentionsForDay(context.Background(), "TSLA", "reddit", day)
	require.NoError(t, err)
	assert.Len(t, records, 2, "re-ingesting the same batch must not duplicate records")

	trend, err := store.GetTrend(context.Background(), "TSLA", "reddit", day)
	require.NoError(t, err)
	require.NotNil(t, trend)
	assert.Equal(t, 2, trend.MentionCount, "trend recompute must not double-count")
}

func TestIngestBatch_OutOfOrderBackfill(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	today := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	_, err := service.IngestBatch(context.Background(), "NVDA", "stocktwits", []models.RawPost{
		rawPost("new1", today, 1, 0, "earnings beat"),
	})
	require.NoError(t, err)

	// Backfill arrives after the newer batch.
	_, err = service.IngestBatch(context.Background(), "NVDA", "stocktwits", []models.RawPost{
		rawPost("old1", yesterday, 2, 0, "quiet day"),
		rawPost("old2", yesterday.Add(time.Hour), 4, 1, "still quiet"),
	})
	require.NoError(t, err)

	trendYesterday, err := store.GetTrend(context.Background(), "NVDA", "stocktwits", yesterday)
	require.NoError(t, err)
	require.NotNil(t, trendYesterday)
	assert.Equal(t, 2, trendYesterday.MentionCount)

	trendToday, err := store.GetTrend(context.Background(), "NVDA", "stocktwits", today)
	require.NoError(t, err)
	require.NotNil(t, trendToday)
	assert.Equal(t, 1, trendToday.MentionCount, "backfill must leave other days untouched")
}

func TestIngestBatch_TruncatesContent(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	day := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	long := strings.Repeat("a", 5000)

	_, err := service.IngestBatch(context.Background(), "AMC", "reddit", []models.RawPost{
		rawPost("big", day, 0, 0, long),
	})
	require.NoError(t, err)

	records, err := store.MentionsForDay(context.Background(), "AMC", "reddit", day)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Content, maxContentLength)
}

func TestIngestBatch_TruncationKeepsValidUTF8(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	day := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	// The euro sign starts at byte 999 and straddles the 1000-byte limit.
	straddling := strings.Repeat("a", maxContentLength-1) + "€ suite"

	_, err := service.IngestBatch(context.Background(), "AMC", "reddit", []models.RawPost{
		rawPost("multibyte", day, 0, 0, straddling),
	})
	require.NoError(t, err)

	records, err := store.MentionsForDay(context.Background(), "AMC", "reddit", day)
	require.NoError(t, err)
	require.Len(t, records, 1)

	content := records[0].Content
	assert.True(t, utf8.ValidString(content), "truncation must not split a multibyte rune")
	assert.LessOrEqual(t, len(content), maxContentLength)
	assert.Equal(t, strings.Repeat("a", maxContentLength-1), content)
}

// flakyStore fails the mention upsert for one post id.
type flakyStore struct {
	storage.Store
	failPostID string
}

func (f *flakyStore) UpsertMention(ctx context.Context, record *models.MentionRecord) error {
	if record.PlatformPostID == f.failPostID {
		return fmt.Errorf("write failed")
	}
	return f.Store.UpsertMention(ctx, record)
}

func TestIngestBatch_PerRecordFailureDoesNotAbort(t *testing.T) {
	memory := storage.NewMemoryStore()
	service := NewService(&flakyStore{Store: memory, failPostID: "bad"}, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), nil)

	day := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	posts := []models.RawPost{
		rawPost("ok1", day, 1, 0, "fine"),
		rawPost("bad", day, 1, 0, "broken"),
		rawPost("ok2", day, 1, 0, "also fine"),
	}

	stored, err := service.IngestBatch(context.Background(), "GME", "reddit", posts)
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	trend, err := memory.GetTrend(context.Background(), "GME", "reddit", day)
	require.NoError(t, err)
	require.NotNil(t, trend)
	assert.Equal(t, 2, trend.MentionCount)
}

// mapArchive is an in-memory ArchiveInterface for tests.
type mapArchive struct {
	blobs map[string][]byte
}

func newMapArchive() *mapArchive {
	return &mapArchive{blobs: make(map[string][]byte)}
}

func (m *mapArchive) Store(filename string, data []byte) error {
	m.blobs[filename] = data
	return nil
}

func (m *mapArchive) Retrieve(filename string) ([]byte, error) {
	data, ok := m.blobs[filename]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", filename)
	}
	return data, nil
}

func (m *mapArchive) List(prefix string) ([]string, error) {
	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

var _ storage.ArchiveInterface = (*mapArchive)(nil)

func TestIngestBatch_ArchivesRawBatch(t *testing.T) {
	archive := newMapArchive()
	service := NewService(storage.NewMemoryStore(), sentiment.NewAnalyzer(sentiment.DefaultLexicon()), archive)

	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := service.IngestBatch(context.Background(), "GME", "reddit", []models.RawPost{
		rawPost("p1", day, 1, 0, "to the moon"),
	})
	require.NoError(t, err)

	names, err := archive.List("reddit/GME/")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestReplayArchive_RestoresMentionsAndTrends(t *testing.T) {
	archive := newMapArchive()
	day := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	posts := []models.RawPost{
		rawPost("p1", day, 4, 1, "bullish rally"),
		rawPost("p2", day.Add(time.Hour), 2, 0, "crash incoming"),
	}

	// Archive via a first service, then replay into a fresh store as after
	// data loss.
	first := NewService(storage.NewMemoryStore(), sentiment.NewAnalyzer(sentiment.DefaultLexicon()), archive)
	_, err := first.IngestBatch(context.Background(), "GME", "reddit", posts)
	require.NoError(t, err)

	fresh := storage.NewMemoryStore()
	second := NewService(fresh, sentiment.NewAnalyzer(sentiment.DefaultLexicon()), archive)

	stored, err := second.ReplayArchive(context.Background(), "gme", "reddit")
	require.NoError(t, err)
	assert.Equal(t, 2, stored)

	records, err := fresh.MentionsForDay(context.Background(), "GME", "reddit", day)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	trend, err := fresh.GetTrend(context.Background(), "GME", "reddit", day)
	require.NoError(t, err)
	require.NotNil(t, trend)
	assert.Equal(t, 2, trend.MentionCount)

	// Replay must not write new archive snapshots.
	names, err := archive.List("reddit/GME/")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestReplayArchive_WithoutArchiveConfigured(t *testing.T) {
	service := newTestService(storage.NewMemoryStore())

	_, err := service.ReplayArchive(context.Background(), "GME", "reddit")
	assert.Error(t, err)
}

func TestIngestBatch_FutureTimestampsClampedToCollection(t *testing.T) {
	store := storage.NewMemoryStore()
	service := newTestService(store)

	future := time.Now().UTC().Add(48 * time.Hour)
	_, err := service.IngestBatch(context.Background(), "SPY", "reddit", []models.RawPost{
		rawPost("f1", future, 0, 0, "from the future"),
	})
	require.NoError(t, err)

	records, err := store.MentionsForDay(context.Background(), "SPY", "reddit", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].CreatedAt.After(records[0].CollectedAt))
}
