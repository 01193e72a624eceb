package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"chatcore/internal/domain/entity"
)

const defaultBaseURL = "https://api.giphy.com/v1"

// Client queries GIPHY for GIFs and stickers. Outbound calls share one rate
// limiter because the API key carries a request quota.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey string, requestsPerMinute int) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 40
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 5),
	}
}

// WithBaseURL points the client at another host, e.g. a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			FixedHeight struct {
				URL    string `json:"url"`
				Width  string `json:"width"`
				Height string `json:"height"`
			} `json:"fixed_height"`
		} `json:"images"`
	} `json:"data"`
	Meta struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
	} `json:"meta"`
}

func (c *Client) Trending(ctx context.Context, kind entity.MediaKind, limit int) ([]entity.Media, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return c.fetch(ctx, kind, "trending", params)
}

func (c *Client) Search(ctx context.Context, kind entity.MediaKind, query string, limit int) ([]entity.Media, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	return c.fetch(ctx, kind, "search", params)
}

func (c *Client) fetch(ctx context.Context, kind entity.MediaKind, endpoint string, params url.Values) ([]entity.Media, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("giphy rate limit wait: %w", err)
	}

	params.Set("api_key", c.apiKey)
	endpointURL := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, kind, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", endpoint, kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to fetch %s %s: status %d: %s", endpoint, kind, resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode giphy response: %w", err)
	}

	items := make([]entity.Media, 0, len(payload.Data))
	for _, item := range payload.Data {
		image := item.Images.FixedHeight
		if image.URL == "" {
			continue
		}
		width, _ := strconv.Atoi(image.Width)
		height, _ := strconv.Atoi(image.Height)
		items = append(items, entity.Media{
			ID:     item.ID,
			Type:   kind,
			URL:    image.URL,
			Width:  width,
			Height: height,
			Title:  item.Title,
		})
	}
	return items, nil
}
