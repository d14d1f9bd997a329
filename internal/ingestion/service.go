// Package ingestion turns raw platform posts into scored mention records
// and keeps the daily trend table consistent with the mention store.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/sentiment"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
)

// Stored content is bounded; longer post bodies are truncated.
const maxContentLength = 1000

// Service ingests raw post batches for a (symbol, platform) pair: each post
// is sentiment-scored, upserted into the mention store, and every calendar
// day touched by the batch has its trend row recomputed from scratch.
type Service struct {
	store    storage.Store
	analyzer *sentiment.Analyzer
	archive  storage.ArchiveInterface // optional
}

// NewService creates an ingestion service. archive may be nil to disable
// raw batch archiving.
func NewService(store storage.Store, analyzer *sentiment.Analyzer, archive storage.ArchiveInterface) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		archive:  archive,
	}
}

// IngestBatch processes one batch of raw posts for a symbol on a platform
// and returns the number of records stored. A failure writing one record is
// logged and skipped; the rest of the batch continues. Trend rows are
// recomputed from all mentions on record for each day seen in the batch,
// so replays and out-of-order backfills never double-count.
func (s *Service) IngestBatch(ctx context.Context, symbol, platform string, posts []models.RawPost) (int, error) {
	symbol = strings.ToUpper(symbol)
	collectedAt := time.Now().UTC()

	stored, err := s.ingestPosts(ctx, symbol, platform, posts, collectedAt)
	if err != nil {
		return stored, err
	}

	if s.archive != nil && len(posts) > 0 {
		s.archiveBatch(symbol, platform, posts, collectedAt)
	}

	return stored, nil
}

// ReplayArchive re-ingests every archived batch for a symbol on a platform.
// Replayed posts flow through the same scoring and trend recompute as live
// ingestion, so a replay after data loss converges on the same state; they
// are not archived again. Returns the number of records stored.
func (s *Service) ReplayArchive(ctx context.Context, symbol, platform string) (int, error) {
	if s.archive == nil {
		return 0, fmt.Errorf("no archive configured")
	}

	symbol = strings.ToUpper(symbol)
	prefix := fmt.Sprintf("%s/%s/", platform, symbol)

	filenames, err := s.archive.List(prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list archived batches for %s: %w", prefix, err)
	}

	stored := 0
	for _, filename := range filenames {
		data, err := s.archive.Retrieve(filename)
		if err != nil {
			logrus.Errorf("Failed to retrieve archived batch %s: %v", filename, err)
			continue
		}

		var posts []models.RawPost
		if err := json.Unmarshal(data, &posts); err != nil {
			logrus.Errorf("Failed to parse archived batch %s: %v", filename, err)
			continue
		}

		count, err := s.ingestPosts(ctx, symbol, platform, posts, time.Now().UTC())
		stored += count
		if err != nil {
			return stored, err
		}
	}

	logrus.Infof("Replayed %d archived batches for %s on %s: %d records", len(filenames), symbol, platform, stored)
	return stored, nil
}

// ingestPosts stores scored records and recomputes the trend rows for every
// day touched by the batch.
func (s *Service) ingestPosts(ctx context.Context, symbol, platform string, posts []models.RawPost, collectedAt time.Time) (int, error) {
	stored := 0
	days := make(map[time.Time]struct{})

	for _, post := range posts {
		record := s.buildRecord(symbol, platform, post, collectedAt)
		if err := s.store.UpsertMention(ctx, record); err != nil {
			logrus.Errorf("Failed to store mention %s: %v", record.ID, err)
			continue
		}
		stored++
		days[storage.DayOf(record.CreatedAt)] = struct{}{}
	}

	for day := range days {
		if err := s.recomputeTrend(ctx, symbol, platform, day); err != nil {
			return stored, fmt.Errorf("failed to aggregate trend for %s/%s on %s: %w",
				symbol, platform, day.Format("2006-01-02"), err)
		}
	}

	logrus.Infof("Ingested %d/%d posts for %s on %s across %d days", stored, len(posts), symbol, platform, len(days))
	return stored, nil
}

func (s *Service) buildRecord(symbol, platform string, post models.RawPost, collectedAt time.Time) *models.MentionRecord {
	content := truncateContent(post.Content)

	result := s.analyzer.Analyze(post.Title + " " + post.Content)

	createdAt := post.CreatedAt.UTC()
	if createdAt.After(collectedAt) {
		createdAt = collectedAt
	}

	return &models.MentionRecord{
		ID:             models.MentionID(platform, post.PlatformPostID),
		Symbol:         symbol,
		Platform:       platform,
		PlatformPostID: post.PlatformPostID,
		Author:         post.Author,
		Title:          post.Title,
		Content:        content,
		URL:            post.URL,
		Upvotes:        post.Upvotes,
		Comments:       post.Comments,
		SentimentScore: result.Score,
		SentimentLabel: result.Label,
		CreatedAt:      createdAt,
		CollectedAt:    collectedAt,
	}
}

// truncateContent bounds stored content, cutting on a rune boundary so a
// multibyte character straddling the limit never leaves invalid UTF-8.
func truncateContent(content string) string {
	if len(content) <= maxContentLength {
		return content
	}

	cut := maxContentLength
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

// recomputeTrend rebuilds one day's aggregate from the full mention set on
// record, then upserts it as a whole row.
func (s *Service) recomputeTrend(ctx context.Context, symbol, platform string, day time.Time) error {
	mentions, err := s.store.MentionsForDay(ctx, symbol, platform, day)
	if err != nil {
		return err
	}

	trend := &models.DailyTrend{
		Symbol:   symbol,
		Platform: platform,
		Date:     day,
	}

	var sentimentSum float64
	for _, mention := range mentions {
		trend.MentionCount++
		trend.TotalUpvotes += mention.Upvotes
		trend.TotalComments += mention.Comments
		sentimentSum += mention.SentimentScore
	}
	if trend.MentionCount > 0 {
		trend.AvgSentiment = sentimentSum / float64(trend.MentionCount)
	}

	return s.store.UpsertTrend(ctx, trend)
}

func (s *Service) archiveBatch(symbol, platform string, posts []models.RawPost, collectedAt time.Time) {
	data, err := json.Marshal(posts)
	if err != nil {
		logrus.Errorf("Failed to marshal batch for archive: %v", err)
		return
	}

	filename := fmt.Sprintf("%s/%s/%s.json", platform, symbol, collectedAt.Format("2006-01-02-15-04-05"))
	if err := s.archive.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive batch %s: %v", filename, err)
	}
}
