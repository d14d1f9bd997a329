package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/ratelimit"
)

const stocktwitsBaseURL = "https://api.stocktwits.com/api/2"

// StocktwitsSource fetches a symbol's public message stream from
// Stocktwits. No credentials are required.
type StocktwitsSource struct {
	client  *resty.Client
	gate    *ratelimit.Gate
	baseURL string
}

type stocktwitsStreamResponse struct {
	Messages []stocktwitsMessage `json:"messages"`
}

type stocktwitsMessage struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	CreatedAt string `json:"created_at"`
	Likes     struct {
		Total int `json:"total"`
	} `json:"likes"`
	Conversation struct {
		Replies int `json:"replies"`
	} `json:"conversation"`
}

// NewStocktwitsSource creates a Stocktwits fetcher. All outbound calls pass
// through the admission gate.
func NewStocktwitsSource(gate *ratelimit.Gate) *StocktwitsSource {
	return &StocktwitsSource{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "TickerPulse-Bot/1.0"),
		gate:    gate,
		baseURL: stocktwitsBaseURL,
	}
}

func (s *StocktwitsSource) GetName() string {
	return "stocktwits"
}

func (s *StocktwitsSource) IsEnabled() bool {
	return true
}

// FetchPosts pulls the symbol stream and keeps messages inside the window.
func (s *StocktwitsSource) FetchPosts(ctx context.Context, symbol string, window time.Duration) ([]models.RawPost, error) {
	if err := s.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	streamURL := fmt.Sprintf("%s/streams/symbol/%s.json", s.baseURL, symbol)
	resp, err := s.client.R().
		SetContext(ctx).
		Get(streamURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("stocktwits API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var streamResp stocktwitsStreamResponse
	if err := json.Unmarshal(resp.Body(), &streamResp); err != nil {
		return nil, fmt.Errorf("failed to parse Stocktwits response: %w", err)
	}

	cutoff := time.Now().Add(-window)
	var posts []models.RawPost
	for _, message := range streamResp.Messages {
		createdAt, err := time.Parse("2006-01-02T15:04:05Z", message.CreatedAt)
		if err != nil {
			continue
		}
		if createdAt.Before(cutoff) {
			continue
		}

		posts = append(posts, models.RawPost{
			PlatformPostID: fmt.Sprintf("%d", message.ID),
			Author:         message.User.Username,
			Content:        message.Body,
			URL:            fmt.Sprintf("https://stocktwits.com/%s/message/%d", message.User.Username, message.ID),
			CreatedAt:      createdAt,
			Upvotes:        message.Likes.Total,
			Comments:       message.Conversation.Replies,
		})
	}

	return deduplicatePosts(posts), nil
}
