package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ratelimit"
)

func TestDeduplicatePosts(t *testing.T) {
	posts := []models.RawPost{
		{PlatformPostID: "1", Content: "first"},
		{PlatformPostID: "2", Content: "second"},
		{PlatformPostID: "1", Content: "duplicate of first"},
	}

	unique := deduplicatePosts(posts)
	require.Len(t, unique, 2)
	assert.Equal(t, "first", unique[0].Content, "first occurrence wins")
	assert.Equal(t, "2", unique[1].PlatformPostID)
}

func TestRedditSource_DisabledWithoutCredentials(t *testing.T) {
	source := NewRedditSource("", "", ratelimit.NewGate(10, 10))

	assert.False(t, source.IsEnabled())

	posts, err := source.FetchPosts(context.Background(), "GME", 24*time.Hour)
	assert.NoError(t, err)
	assert.Nil(t, posts)
}

func TestRedditTimeFilter(t *testing.T) {
	assert.Equal(t, "day", redditTimeFilter(6*time.Hour))
	assert.Equal(t, "day", redditTimeFilter(24*time.Hour))
	assert.Equal(t, "week", redditTimeFilter(3*24*time.Hour))
	assert.Equal(t, "month", redditTimeFilter(30*24*time.Hour))
}

func TestStocktwitsSource_FetchPosts(t *testing.T) {
	recent := time.Now().UTC().Add(-2 * time.Hour).Format("2006-01-02T15:04:05Z")
	stale := time.Now().UTC().Add(-72 * time.Hour).Format("2006-01-02T15:04:05Z")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/streams/symbol/GME.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"messages": [
				{"id": 101, "body": "to the moon", "user": {"username": "ape1"}, "created_at": %q, "likes": {"total": 12}, "conversation": {"replies": 3}},
				{"id": 102, "body": "too old", "user": {"username": "ape2"}, "created_at": %q, "likes": {"total": 1}, "conversation": {"replies": 0}}
			]
		}`, recent, stale)
	}))
	defer server.Close()

	source := NewStocktwitsSource(ratelimit.NewGate(10, 10))
	source.baseURL = server.URL

	posts, err := source.FetchPosts(context.Background(), "GME", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, "101", posts[0].PlatformPostID)
	assert.Equal(t, "ape1", posts[0].Author)
	assert.Equal(t, "to the moon", posts[0].Content)
	assert.Equal(t, 12, posts[0].Upvotes)
	assert.Equal(t, 3, posts[0].Comments)
}

func TestStocktwitsSource_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	source := NewStocktwitsSource(ratelimit.NewGate(10, 10))
	source.baseURL = server.URL

	_, err := source.FetchPosts(context.Background(), "GME", 24*time.Hour)
	assert.Error(t, err)
}
