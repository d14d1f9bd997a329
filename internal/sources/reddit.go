package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ratelimit"
)

// RedditSource fetches posts mentioning a ticker from finance subreddits.
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	gate         *ratelimit.Gate
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// Subreddits searched for ticker mentions.
var redditFinanceSubreddits = []string{
	"wallstreetbets",
	"stocks",
	"investing",
	"options",
	"stockmarket",
}

// NewRedditSource creates a Reddit fetcher. All outbound calls pass through
// the admission gate.
func NewRedditSource(clientID, clientSecret string, gate *ratelimit.Gate) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       resty.New().SetTimeout(30 * time.Second),
		gate:         gate,
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

// FetchPosts searches the finance subreddits for posts mentioning the
// symbol within the window. A failed subreddit search is logged and
// skipped.
func (r *RedditSource) FetchPosts(ctx context.Context, symbol string, window time.Duration) ([]models.RawPost, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - missing credentials")
		return nil, nil
	}

	token, err := r.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	var allPosts []models.RawPost
	for _, subreddit := range redditFinanceSubreddits {
		posts, err := r.searchSubreddit(ctx, subreddit, symbol, token, window)
		if err != nil {
			logrus.Errorf("Failed to search r/%s for %s: %v", subreddit, symbol, err)
			continue
		}
		allPosts = append(allPosts, posts...)
	}

	return deduplicatePosts(allPosts), nil
}

// authenticate exchanges the app credentials for a short-lived access
// token. Tokens are fetched per call rather than cached; FetchPosts runs
// concurrently across symbols and the token lifetime is shorter than the
// gap between scheduled runs.
func (r *RedditSource) authenticate(ctx context.Context) (string, error) {
	if err := r.gate.Acquire(ctx); err != nil {
		return "", err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", "TickerPulse-Bot/1.0").
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post("https://www.reddit.com/api/v1/access_token")
	if err != nil {
		return "", err
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}

	return authResp.AccessToken, nil
}

func (r *RedditSource) searchSubreddit(ctx context.Context, subreddit, symbol, token string, window time.Duration) ([]models.RawPost, error) {
	if err := r.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	query := url.QueryEscape(fmt.Sprintf(`"%s" OR "$%s"`, symbol, symbol))
	searchURL := fmt.Sprintf("https://oauth.reddit.com/r/%s/search?q=%s&restrict_sr=1&sort=new&limit=100&t=%s",
		subreddit, query, redditTimeFilter(window))

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", "TickerPulse-Bot/1.0").
		SetAuthToken(token).
		Get(searchURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Reddit response: %w", err)
	}

	cutoff := time.Now().Add(-window)
	var posts []models.RawPost
	for _, child := range searchResp.Data.Children {
		post := child.Data
		createdAt := time.Unix(int64(post.Created), 0).UTC()
		if createdAt.Before(cutoff) {
			continue
		}

		posts = append(posts, models.RawPost{
			PlatformPostID: post.ID,
			Author:         post.Author,
			Title:          post.Title,
			Content:        post.Selftext,
			URL:            "https://www.reddit.com" + post.Permalink,
			CreatedAt:      createdAt,
			Upvotes:        post.Score,
			Comments:       post.NumComments,
		})
	}

	return posts, nil
}

// redditTimeFilter maps a search window to Reddit's coarse time filter.
func redditTimeFilter(window time.Duration) string {
	switch {
	case window <= 24*time.Hour:
		return "day"
	case window <= 7*24*time.Hour:
		return "week"
	default:
		return "month"
	}
}
