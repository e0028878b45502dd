package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	coreconfig "postsaver/core/config"
	"postsaver/core/logger"
	"postsaver/internal/link"
)

// HTTPFetcher talks to the content service over its REST API.
type HTTPFetcher struct {
	base   string
	client *http.Client
	log    *slog.Logger
}

// NewHTTPFetcher builds a fetcher from configuration.
func NewHTTPFetcher(cfg coreconfig.FetcherConfig) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
		log:    logger.FETCH,
	}
}

type contentResponse struct {
	Text string `json:"text"`
}

// Fetch retrieves the referenced post. Private references are resolved
// through the user's authenticated identity, keyed by userID on the
// service side.
func (f *HTTPFetcher) Fetch(ctx context.Context, userID int64, ref link.Reference) (Content, error) {
	fetchID := uuid.NewString()
	started := time.Now()

	q := url.Values{}
	q.Set("channel", ref.Channel)
	q.Set("message_id", strconv.FormatInt(ref.MessageID, 10))
	q.Set("user_id", strconv.FormatInt(userID, 10))
	if ref.Private {
		q.Set("private", "true")
	}
	reqURL := f.base + "/v1/content?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Content{}, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("X-Request-ID", fetchID)

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("fetch failed", "fetch_id", fetchID, "channel", ref.Channel, "error", err)
		return Content{}, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Content{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		f.log.Warn("fetch rejected", "fetch_id", fetchID, "status", resp.StatusCode)
		return Content{}, fmt.Errorf("fetch content: unexpected status %d", resp.StatusCode)
	}

	var body contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Content{}, fmt.Errorf("decode content response: %w", err)
	}

	f.log.Debug("fetch completed",
		"fetch_id", fetchID,
		"channel", ref.Channel,
		"message_id", ref.MessageID,
		"took", logger.Took(started),
	)
	return Content{Text: body.Text, FetchID: fetchID}, nil
}
