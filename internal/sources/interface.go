package sources

import (
	"context"
	"time"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// Source defines the contract for platform fetchers that supply raw post
// batches for a single symbol.
type Source interface {
	GetName() string
	FetchPosts(ctx context.Context, symbol string, window time.Duration) ([]models.RawPost, error)
	IsEnabled() bool
}

// deduplicatePosts drops repeated platform post ids, keeping the first
// occurrence. Fetchers that search several feeds for one symbol see the
// same post more than once.
func deduplicatePosts(posts []models.RawPost) []models.RawPost {
	seen := make(map[string]bool, len(posts))
	var unique []models.RawPost

	for _, post := range posts {
		if seen[post.PlatformPostID] {
			continue
		}
		seen[post.PlatformPostID] = true
		unique = append(unique, post)
	}

	return unique
}
