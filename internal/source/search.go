// internal/source/search.go
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/user/birdwatch/internal/types"
)

// windowFormat is the search API's time bound layout, e.g.
// "2025-11-13_16:00:00_UTC".
const windowFormat = "2006-01-02_15:04:05"

// Search queries the advanced-search endpoint. The search query itself is
// scoped to the activity window, so only posts inside the window ever come
// back; this costs the same one call per account as the last-tweets endpoint
// but works for accounts whose timelines are reply-heavy.
type Search struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
}

// NewSearch creates a Search source authenticated with the given API key.
// It accepts the same options as NewClient.
func NewSearch(apiKey string, opts ...ClientOption) *Search {
	c := NewClient(apiKey, opts...)
	return &Search{
		baseURL: c.baseURL,
		apiKey:  c.apiKey,
		http:    c.http,
		now:     c.now,
	}
}

type searchResponse struct {
	Tweets []tweet `json:"tweets"`
}

// LatestEvent returns the account's newest post inside the window, or nil.
func (s *Search) LatestEvent(ctx context.Context, account types.Account, window time.Duration) (*types.Event, error) {
	until := s.now()
	since := until.Add(-window)

	params := url.Values{}
	params.Set("query", buildQuery(account, since, until))
	params.Set("queryType", "Latest")
	params.Set("cursor", "")

	// Reuse the Client request path; the two endpoints share auth and the
	// error taxonomy.
	c := &Client{baseURL: s.baseURL, apiKey: s.apiKey, http: s.http, now: s.now}
	var resp searchResponse
	if err := c.get(ctx, "/twitter/tweet/advanced_search", params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Tweets) == 0 {
		return nil, nil
	}
	return eventFromTweet(resp.Tweets[0], account, window, s.now())
}

// buildQuery scopes a search to one account and one time window, retweets
// included.
func buildQuery(account types.Account, since, until time.Time) string {
	return fmt.Sprintf("from:%s since:%s_UTC until:%s_UTC include:nativeretweets",
		account,
		since.UTC().Format(windowFormat),
		until.UTC().Format(windowFormat),
	)
}
