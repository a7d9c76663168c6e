package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"MovieHarvester/internal/config"
	"MovieHarvester/internal/domain"
	"MovieHarvester/internal/metrics"
	"MovieHarvester/internal/ports"
)

// SleepFunc suspends for d or until ctx is cancelled. Injected so tests run
// without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func waitSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// identifier fields tried in priority order when reading a discover entry.
var idCandidates = []string{"id", "movie_id"}

// Client talks to a TMDB-shaped catalog API with bounded retry, exponential
// backoff on throttling and server errors, and a fixed pacing sleep after
// every successful call to stay under the sustained rate limit.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	pacing   time.Duration
	backoff  time.Duration
	retryMax int
	sleep    SleepFunc
	logger   *slog.Logger
}

var _ ports.CatalogSource = (*Client)(nil)

// NewClient builds a reusable catalog client from configuration.
func NewClient(cfg config.CatalogConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout()},
		pacing:   cfg.Pacing(),
		backoff:  cfg.Backoff(),
		retryMax: cfg.RetryMax,
		sleep:    waitSleep,
		logger:   logger,
	}
}

// VerifyCredentials issues the cheapest authenticated call and fails fast on
// a missing or rejected API key, before any harvesting starts.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("missing API key: %w", domain.ErrUnauthorized)
	}

	body, err := c.get(ctx, "/configuration", nil)
	if err != nil {
		return fmt.Errorf("credential check: %w", err)
	}

	var probe struct {
		Images json.RawMessage `json:"images"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Images == nil {
		return fmt.Errorf("credential check: unexpected configuration payload")
	}

	return nil
}

// Discover pulls one page of summary entries for a (year, sort) pair.
func (c *Client) Discover(ctx context.Context, year int, sort string, page int) ([]domain.Summary, error) {
	params := url.Values{}
	params.Set("language", "en-US")
	params.Set("include_adult", "false")
	params.Set("include_video", "false")
	params.Set("primary_release_year", strconv.Itoa(year))
	params.Set("page", strconv.Itoa(page))
	params.Set("sort_by", sort)
	params.Set("vote_count.gte", "0")

	body, err := c.get(ctx, "/discover/movie", params)
	if err != nil {
		return nil, fmt.Errorf("discover year=%d sort=%s page=%d: %w", year, sort, page, err)
	}

	var payload struct {
		Results []map[string]json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode discover page: %w", err)
	}

	summaries := make([]domain.Summary, 0, len(payload.Results))
	for _, entry := range payload.Results {
		id, ok := entryID(entry)
		if !ok {
			continue
		}
		summaries = append(summaries, domain.Summary{ID: id, Title: entryTitle(entry)})
	}

	return summaries, nil
}

// Detail fetches budget, revenue and auxiliary fields for one identifier.
func (c *Client) Detail(ctx context.Context, id int64) (domain.Detail, error) {
	body, err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return domain.Detail{}, fmt.Errorf("detail id=%d: %w", id, err)
	}

	var payload struct {
		ID               int64   `json:"id"`
		Title            string  `json:"title"`
		OriginalTitle    string  `json:"original_title"`
		OriginalLanguage string  `json:"original_language"`
		ReleaseDate      string  `json:"release_date"`
		Budget           int64   `json:"budget"`
		Revenue          int64   `json:"revenue"`
		VoteAverage      float64 `json:"vote_average"`
		VoteCount        int64   `json:"vote_count"`
		Runtime          int     `json:"runtime"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Detail{}, fmt.Errorf("decode detail id=%d: %w", id, err)
	}

	return domain.Detail{
		ID:               payload.ID,
		Title:            payload.Title,
		OriginalTitle:    payload.OriginalTitle,
		OriginalLanguage: payload.OriginalLanguage,
		ReleaseDate:      payload.ReleaseDate,
		Budget:           payload.Budget,
		Revenue:          payload.Revenue,
		VoteAverage:      payload.VoteAverage,
		VoteCount:        payload.VoteCount,
		Runtime:          payload.Runtime,
	}, nil
}

// get executes one authenticated GET with the retry/backoff/pacing policy.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt < c.retryMax; attempt++ {
		body, retryable, err := c.once(ctx, path, endpoint)
		if err == nil {
			if sleepErr := c.sleep(ctx, c.pacing); sleepErr != nil {
				return nil, sleepErr
			}
			return body, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		if attempt == c.retryMax-1 {
			break
		}

		metrics.RetriesTotal.Inc()
		delay := c.backoff << attempt
		c.debug("retrying request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", domain.ErrExhausted, c.retryMax, lastErr)
}

// once performs a single attempt and classifies the outcome as success,
// retryable, or fatal.
func (c *Client) once(ctx context.Context, path, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, true, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, false, fmt.Errorf("%w: %s", domain.ErrUnauthorized, snippet)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("catalog returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, true, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}

	return body, false, nil
}

// entryID tries the candidate identifier fields in their documented priority
// order; the first one holding a positive integer wins.
func entryID(entry map[string]json.RawMessage) (int64, bool) {
	for _, field := range idCandidates {
		raw, ok := entry[field]
		if !ok {
			continue
		}
		var id int64
		if err := json.Unmarshal(raw, &id); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func entryTitle(entry map[string]json.RawMessage) string {
	for _, field := range []string{"title", "original_title"} {
		raw, ok := entry[field]
		if !ok {
			continue
		}
		var title string
		if err := json.Unmarshal(raw, &title); err == nil && title != "" {
			return title
		}
	}
	return ""
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
