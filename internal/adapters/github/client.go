// Package github provides the GitHub REST v3 client the scan pipeline reads PRs through
package github

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	"dupehound/internal/platform/net/httpc"
)

const (
	baseURLDefault = "https://api.github.com"
	apiVersion     = "2022-11-28"
	defaultUA      = "dupehound"
	defaultTimeout = 30 * time.Second
	perPage        = 100

	acceptJSON = "application/vnd.github+json"
	acceptDiff = "application/vnd.github.v3.diff"

	defaultMaxDiffBytes = 2 << 20
	defaultRateBuffer   = 3
)

// ErrDiffTooLarge marks a diff GitHub refused to render or one past MaxDiffBytes.
// The ingester falls back to file paths only
var ErrDiffTooLarge = perr.New(perr.ErrorCodeInvalidArgument, "github diff too large")

// Options configures the Client
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// Outbound concurrency and throttle retry bounds, handed to the
	// rate-limited transport
	MaxConcurrent int
	MaxRetries    int

	// MaxDiffBytes caps a fetched diff before ErrDiffTooLarge kicks in
	MaxDiffBytes int64

	// RateBuffer is the remaining-quota floor under which the client sleeps
	// until the reported reset instead of spending its last requests
	RateBuffer int

	Metrics *metrics.Metrics
}

// Client is a minimal GitHub REST client for PR listing, diffs, and writes
type Client struct {
	hc   *httpc.Client
	opts Options
	log  logger.Logger

	mu        sync.Mutex
	rateSeen  bool
	remaining int
	reset     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxDiffBytes <= 0 {
		o.MaxDiffBytes = defaultMaxDiffBytes
	}
	if o.RateBuffer <= 0 {
		o.RateBuffer = defaultRateBuffer
	}

	c := &Client{
		opts:  o,
		log:   *logger.Named("github"),
		now:   time.Now,
		sleep: time.Sleep,
	}
	c.hc = httpc.New(&http.Client{Timeout: o.Timeout}, httpc.Options{
		Name:          "github",
		MaxConcurrent: o.MaxConcurrent,
		MaxRetries:    o.MaxRetries,
		Wait:          c.rateWait,
		Metrics:       o.Metrics,
	})
	return c
}

// do issues one API request with auth and version headers and records the
// quota headers of the response
func (c *Client) do(ctx context.Context, method, path, accept, etag string, body []byte) (*http.Response, error) {
	c.throttle()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, rd)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "github new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	rem, reset, seen := parseRateHeaders(resp.Header)
	if seen {
		c.mu.Lock()
		c.rateSeen, c.remaining, c.reset = true, rem, reset
		c.mu.Unlock()
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Int("rate_remaining", rem).
		Msg("github http response")
	return resp, nil
}

// rateWait turns GitHub quota headers into a throttle wait for the transport
func (c *Client) rateWait(resp *http.Response) time.Duration {
	rem, reset, seen := parseRateHeaders(resp.Header)
	if !seen || rem > 0 || reset.IsZero() {
		return 0
	}
	if d := reset.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// throttle sleeps through the tail of the quota window when the remaining
// budget has dipped under the buffer, instead of burning the last requests
func (c *Client) throttle() {
	c.mu.Lock()
	seen, rem, reset := c.rateSeen, c.remaining, c.reset
	c.mu.Unlock()

	if !seen || rem > c.opts.RateBuffer || reset.IsZero() {
		return
	}
	d := reset.Sub(c.now())
	if d <= 0 {
		return
	}
	c.log.Warn().Int("remaining", rem).Dur("until_reset", d).Msg("github quota low waiting for reset")
	c.sleep(d)
}
