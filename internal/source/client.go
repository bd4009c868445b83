// internal/source/client.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/user/birdwatch/internal/types"
)

const (
	defaultBaseURL = "https://api.twitterapi.io"

	// createdAtFormat is the upstream timestamp layout,
	// e.g. "Thu Nov 13 16:25:20 +0000 2025".
	createdAtFormat = "Mon Jan 02 15:04:05 -0700 2006"

	defaultRetryAfter = 60 * time.Second
)

// Client queries the per-user last-tweets endpoint: one call per account,
// returning that account's newest post if it falls inside the activity window.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient creates a Client authenticated with the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lastTweetsResponse is the subset of the last-tweets payload the monitor needs.
type lastTweetsResponse struct {
	Data struct {
		Unavailable       bool    `json:"unavailable"`
		UnavailableReason string  `json:"unavailableReason"`
		Tweets            []tweet `json:"tweets"`
	} `json:"data"`
}

type tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// LatestEvent returns the account's newest post if it occurred within the
// window, or nil. Unavailable accounts (suspended, deleted) yield no event
// rather than an error.
func (c *Client) LatestEvent(ctx context.Context, account types.Account, window time.Duration) (*types.Event, error) {
	params := url.Values{}
	params.Set("userName", string(account))
	params.Set("includeReplies", "false")
	params.Set("cursor", "")

	var resp lastTweetsResponse
	if err := c.get(ctx, "/twitter/user/last_tweets", params, &resp); err != nil {
		return nil, err
	}

	if resp.Data.Unavailable {
		return nil, nil
	}
	if len(resp.Data.Tweets) == 0 {
		return nil, nil
	}

	return eventFromTweet(resp.Data.Tweets[0], account, window, c.now())
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", types.ErrSourceUnavailable, err)
	}
	return nil
}

// statusError maps non-200 responses onto the monitor's error taxonomy:
// HTTP 429 becomes a ThrottledError carrying the Retry-After wait, everything
// else is a generic source failure.
func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &types.ThrottledError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", types.ErrSourceUnavailable)
	case http.StatusNotFound:
		return fmt.Errorf("%w: account not found", types.ErrSourceUnavailable)
	default:
		return fmt.Errorf("%w: HTTP %d", types.ErrSourceUnavailable, resp.StatusCode)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// eventFromTweet converts an upstream tweet into an Event if it is inside the
// window; outside the window it yields nil.
func eventFromTweet(tw tweet, account types.Account, window time.Duration, now time.Time) (*types.Event, error) {
	if tw.ID == "" || tw.CreatedAt == "" {
		return nil, nil
	}
	occurredAt, err := time.Parse(createdAtFormat, tw.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: parse timestamp %q: %v", types.ErrSourceUnavailable, tw.CreatedAt, err)
	}
	if now.Sub(occurredAt) > window {
		return nil, nil
	}
	return &types.Event{
		ID:         tw.ID,
		Account:    account,
		OccurredAt: occurredAt,
		Summary:    tw.Text,
		Link:       fmt.Sprintf("https://x.com/%s/status/%s", account, tw.ID),
	}, nil
}
