// Package feedclient — HTTP-клиент к API лент (cmd/api).
package feedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"creator-feed/internal/domain"
	feedapi "creator-feed/internal/infra/http"
	"creator-feed/internal/infra/metrics"
	"creator-feed/internal/usecase/feed"
	"creator-feed/internal/usecase/playback"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Ingest отправляет пулы автора в API. Новый автор получает ленту,
// у существующего лента дополняется.
func (c *Client) Ingest(ctx context.Context, data domain.CreatorData) error {
	if data.Creator.ID == "" {
		return fmt.Errorf("feed api: пустой id автора")
	}
	var resp feedapi.IngestResponse
	_, err := c.call(ctx, "ingest", http.MethodPut, feedPath(data.Creator.ID, ""), data, &resp)
	return err
}

func (c *Client) RemoveFeed(ctx context.Context, creatorID string) error {
	_, err := c.call(ctx, "remove", http.MethodDelete, feedPath(creatorID, ""), nil, nil)
	return err
}

func (c *Client) ClearFeeds(ctx context.Context) error {
	_, err := c.call(ctx, "clear", http.MethodDelete, "/api/v1/feeds", nil, nil)
	return err
}

// Queue возвращает ближайшие ролики автора с расписанием.
func (c *Client) Queue(ctx context.Context, creatorID string) (playback.QueueView, error) {
	var resp playback.QueueView
	if _, err := c.call(ctx, "queue", http.MethodGet, feedPath(creatorID, "queue"), nil, &resp); err != nil {
		return playback.QueueView{}, err
	}
	return resp, nil
}

// Play запускает автопроигрывание.
func (c *Client) Play(ctx context.Context, creatorID string, surface playback.Surface) (playback.Playback, error) {
	endpoint := feedPath(creatorID, "play") + "?surface=" + url.QueryEscape(string(surface))
	var resp playback.Playback
	if _, err := c.call(ctx, "play", http.MethodPost, endpoint, nil, &resp); err != nil {
		return playback.Playback{}, err
	}
	return resp, nil
}

func (c *Client) Stop(ctx context.Context, creatorID string) error {
	_, err := c.call(ctx, "stop", http.MethodPost, feedPath(creatorID, "stop"), nil, nil)
	return err
}

// Next снимает голову очереди. false — очередь пуста.
func (c *Client) Next(ctx context.Context, creatorID string) (playback.NextView, bool, error) {
	var resp playback.NextView
	status, err := c.call(ctx, "next", http.MethodPost, feedPath(creatorID, "next"), nil, &resp)
	if err != nil {
		return playback.NextView{}, false, err
	}
	if status == http.StatusNoContent {
		return playback.NextView{}, false, nil
	}
	return resp, true, nil
}

// Ended сообщает о досмотренном или пропущенном ролике и возвращает id события.
func (c *Client) Ended(ctx context.Context, creatorID, videoID string, cause domain.PlaybackCause) (string, error) {
	var resp struct {
		EventID string `json:"event_id"`
	}
	body := feedapi.EndedRequest{VideoID: videoID, Cause: cause}
	if _, err := c.call(ctx, "ended", http.MethodPost, feedPath(creatorID, "ended"), body, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *Client) Refresh(ctx context.Context, creatorID string) (feed.Feed, error) {
	var resp feed.Feed
	if _, err := c.call(ctx, "refresh", http.MethodPost, feedPath(creatorID, "refresh"), nil, &resp); err != nil {
		return feed.Feed{}, err
	}
	return resp, nil
}

func (c *Client) Reset(ctx context.Context, creatorID string) (feed.Feed, error) {
	var resp feed.Feed
	if _, err := c.call(ctx, "reset", http.MethodPost, feedPath(creatorID, "reset"), nil, &resp); err != nil {
		return feed.Feed{}, err
	}
	return resp, nil
}

func (c *Client) Stats(ctx context.Context, creatorID string) (feed.FeedStats, error) {
	var resp feed.FeedStats
	if _, err := c.call(ctx, "stats", http.MethodGet, feedPath(creatorID, "stats"), nil, &resp); err != nil {
		return feed.FeedStats{}, err
	}
	return resp, nil
}

func (c *Client) Recent(ctx context.Context) ([]domain.Creator, error) {
	var resp []domain.Creator
	if _, err := c.call(ctx, "recent", http.MethodGet, "/api/v1/creators/recent", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ClearRecent очищает список недавно открытых авторов.
func (c *Client) ClearRecent(ctx context.Context) error {
	_, err := c.call(ctx, "clear_recent", http.MethodDelete, "/api/v1/creators/recent", nil, nil)
	return err
}

func (c *Client) Touch(ctx context.Context, creatorID string) error {
	_, err := c.call(ctx, "touch", http.MethodPost, "/api/v1/creators/"+creatorID+"/touch", nil, nil)
	return err
}

// id авторов — @handle или UC…, в пути их экранировать не нужно.
func feedPath(creatorID, action string) string {
	p := "/api/v1/feeds/" + creatorID
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) call(ctx context.Context, op, method, endpoint string, body, out any) (status int, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveNetworkRequest("feed_api", op, c.baseURL.Host, start, err)
	}()
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	resolved := *c.baseURL
	query := ""
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint, query = endpoint[:i], endpoint[i+1:]
	}
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	resolved.RawQuery = query
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr feedapi.ErrorResponse
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, mapAPIError(resp.StatusCode, apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func mapAPIError(status int, err feedapi.ErrorResponse) error {
	switch err.Code {
	case feedapi.CodeFeedNotFound:
		return domain.ErrFeedNotFound
	case feedapi.CodeNothingToPlay:
		return playback.ErrNothingToPlay
	case feedapi.CodeBadRequest:
		return fmt.Errorf("feed api invalid request: %s", err.Error)
	case "":
		return fmt.Errorf("feed api error: status=%d message=%s", status, err.Error)
	default:
		return fmt.Errorf("feed api error [%s]: %s", err.Code, err.Error)
	}
}

var _ domain.FeedControl = (*Client)(nil)
