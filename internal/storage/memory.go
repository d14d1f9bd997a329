package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// MemoryStore is an in-process Store used by tests and by local runs
// without a DATABASE_URL. Upserts hold the lock for the whole row write,
// preserving the last-write-wins semantics of the Postgres implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	mentions map[string]models.MentionRecord // keyed by platform:postID
	trends   map[string]models.DailyTrend    // keyed by symbol|platform|date
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mentions: make(map[string]models.MentionRecord),
		trends:   make(map[string]models.DailyTrend),
	}
}

func trendKey(symbol, platform string, day time.Time) string {
	return fmt.Sprintf("%s|%s|%s", symbol, platform, DayOf(day).Format("2006-01-02"))
}

func (s *MemoryStore) UpsertMention(ctx context.Context, record *models.MentionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions[models.MentionID(record.Platform, record.PlatformPostID)] = *record
	return nil
}

func (s *MemoryStore) MentionsForDay(ctx context.Context, symbol, platform string, day time.Time) ([]models.MentionRecord, error) {
	start := DayOf(day)
	end := start.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []models.MentionRecord
	for _, record := range s.mentions {
		if record.Symbol != symbol || record.Platform != platform {
			continue
		}
		created := record.CreatedAt.UTC()
		if !created.Before(start) && created.Before(end) {
			records = append(records, record)
		}
	}
	return records, nil
}

func (s *MemoryStore) UpsertTrend(ctx context.Context, trend *models.DailyTrend) error {
	row := *trend
	row.Date = DayOf(trend.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.trends[trendKey(row.Symbol, row.Platform, row.Date)] = row
	return nil
}

func (s *MemoryStore) GetTrend(ctx context.Context, symbol, platform string, day time.Time) (*models.DailyTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trend, ok := s.trends[trendKey(symbol, platform, day)]
	if !ok {
		return nil, nil
	}
	return &trend, nil
}

func (s *MemoryStore) SymbolTrendsInRange(ctx context.Context, symbol, platform string, from, to time.Time) ([]models.DailyTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trends []models.DailyTrend
	for _, trend := range s.trends {
		if trend.Symbol == symbol && trend.Platform == platform && inRange(trend.Date, from, to) {
			trends = append(trends, trend)
		}
	}
	sortTrends(trends)
	return trends, nil
}

func (s *MemoryStore) TrendsInRange(ctx context.Context, platform string, from, to time.Time) ([]models.DailyTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trends []models.DailyTrend
	for _, trend := range s.trends {
		if trend.Platform == platform && inRange(trend.Date, from, to) {
			trends = append(trends, trend)
		}
	}
	sortTrends(trends)
	return trends, nil
}

func inRange(day, from, to time.Time) bool {
	day = DayOf(day)
	return !day.Before(DayOf(from)) && !day.After(DayOf(to))
}

func sortTrends(trends []models.DailyTrend) {
	sort.Slice(trends, func(i, j int) bool {
		if !trends[i].Date.Equal(trends[j].Date) {
			return trends[i].Date.Before(trends[j].Date)
		}
		return trends[i].Symbol < trends[j].Symbol
	})
}
