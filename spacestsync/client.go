package spacestsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Teodorcosmovici/Flat2study-GitHub-sub000/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultFeedURL             = "https://api.spacest.com/v1/listings/feed"
	defaultRequestsPerMinute   = 30
	defaultFetchRetries        = 3
	defaultHTTPTimeoutSeconds  = 30
	initialFetchBackoffSeconds = 2
)

// feedClient pulls the structured listing feed from Spacest. All outbound
// calls pass through the limiter channel so we never exceed our agreed
// request budget, regardless of how many fetches one run issues.
type feedClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter <-chan time.Time
	logger  *logrus.Logger
}

func newFeedClient() *feedClient {
	baseURL := os.Getenv("SPACEST_FEED_URL")
	if baseURL == "" {
		baseURL = defaultFeedURL
	}

	perMinute := defaultRequestsPerMinute
	if raw := os.Getenv("SPACEST_REQUESTS_PER_MINUTE"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			perMinute = parsed
		}
	}

	return &feedClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("SPACEST_API_KEY"),
		http:    &http.Client{Timeout: defaultHTTPTimeoutSeconds * time.Second},
		limiter: time.Tick(time.Minute / time.Duration(perMinute)),
		logger:  config.GetLogger(),
	}
}

// FetchListings downloads the full feed. Transient failures are retried with
// exponential backoff; after the last attempt the fetch is fatal for the run.
func (c *feedClient) FetchListings(ctx context.Context) ([]ExternalListing, error) {
	var lastErr error
	backoff := initialFetchBackoffSeconds * time.Second

	for attempt := 1; attempt <= defaultFetchRetries; attempt++ {
		listings, err := c.fetchOnce(ctx)
		if err == nil {
			return listings, nil
		}
		lastErr = err
		config.LogError(c.logger, "spacestsync", "FetchListings",
			fmt.Sprintf("feed fetch attempt %d/%d failed", attempt, defaultFetchRetries), c.baseURL, err)

		if attempt < defaultFetchRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("spacest feed unavailable after %d attempts: %w", defaultFetchRetries, lastErr)
}

func (c *feedClient) fetchOnce(ctx context.Context) ([]ExternalListing, error) {
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decodeFeed(raw)
}

// decodeFeed accepts both feed envelopes Spacest has shipped: a bare listing
// array and an object wrapping it under "listings".
func decodeFeed(raw []byte) ([]ExternalListing, error) {
	var direct []ExternalListing
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Listings []ExternalListing `json:"listings"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("unrecognized feed payload: %w", err)
	}
	return wrapped.Listings, nil
}
