// Package llm is the provider adapter for OpenAI-compatible chat and
// embedding APIs.
//
// A Client is bound to one endpoint and one model; the pipeline runs two of
// them, a chat client for intent extraction, pairwise verification and
// ranking, and an embedding client for the vector spaces. Chat and
// embeddings each have a synchronous form and an asynchronous batch form
// built on the provider's file protocol: requests are written as JSONL,
// uploaded, wrapped in a batch job, polled until the job settles, and the
// output file is downloaded and parsed. Batch ids surface through BatchOpts
// so callers can checkpoint a half-finished batch and resume it after a
// restart.
package llm

import (
	"bytes"
	"context"
	json "encoding/json/v2"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	"dupehound/internal/platform/net/httpc"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTimeout   = 2 * time.Minute
	defaultDims      = 1536
	defaultMaxTokens = 8192

	// tokenChars is the chars-per-token estimate used everywhere a budget
	// must be enforced without the provider's real tokenizer.
	tokenChars = 4

	// Responses are read through a ceiling because a full embedding batch
	// can legitimately run to tens of megabytes.
	maxBodyBytes = 64 << 20
)

// Options configure a Client. The zero value of every field has a usable
// default except APIKey and Model, which the account config must supply.
type Options struct {
	// Name tags log lines and provider metrics, default "llm".
	Name    string
	BaseURL string
	APIKey  string
	Model   string

	// Dimensions is the width of vectors the embedding model emits.
	Dimensions int
	// MaxContextTokens bounds a single input; longer inputs are truncated.
	MaxContextTokens int

	Timeout       time.Duration
	MaxConcurrent int
	MaxRetries    int
	// BatchDeadline bounds how long a batch may stay pending, default 24h.
	BatchDeadline time.Duration

	Metrics *metrics.Metrics
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	hc   *httpc.Client
	opts Options
	log  logger.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a Client from o, filling defaults for anything unset.
func New(o Options) *Client {
	if o.Name == "" {
		o.Name = "llm"
	}
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Dimensions <= 0 {
		o.Dimensions = defaultDims
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = defaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.BatchDeadline <= 0 {
		o.BatchDeadline = defaultBatchDeadline
	}

	c := &Client{
		opts:  o,
		log:   *logger.Named(o.Name),
		now:   time.Now,
		sleep: time.Sleep,
	}
	c.hc = httpc.New(&http.Client{Timeout: o.Timeout}, httpc.Options{
		Name:          o.Name,
		MaxConcurrent: o.MaxConcurrent,
		MaxRetries:    o.MaxRetries,
		Metrics:       o.Metrics,
	})
	return c
}

// CountTokens estimates the token cost of s. The provider's tokenizer is
// not available locally, so this is the conventional four-chars-per-token
// approximation; budgets that depend on it keep generous headroom.
func (c *Client) CountTokens(s string) int {
	return (len(s) + tokenChars - 1) / tokenChars
}

// Dimensions reports the vector width of the configured embedding model.
func (c *Client) Dimensions() int { return c.opts.Dimensions }

// MaxContextTokens reports the per-input token ceiling.
func (c *Client) MaxContextTokens() int { return c.opts.MaxContextTokens }

// do sends one JSON request and returns the raw response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "llm: encode %s", path)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, rd)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "llm: build request")
	}
	c.auth(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", c.now().Sub(start)).
		Msg("llm request")
	return resp, nil
}

func (c *Client) auth(req *http.Request) {
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
}

// decode consumes resp into out, converting non-200s into coded errors.
func (c *Client) decode(resp *http.Response, path string, out any) error {
	defer c.closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return c.statusErr(resp, path)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "llm: read %s", path)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "llm: decode %s", path)
	}
	return nil
}

func (c *Client) closeBody(rc io.ReadCloser) {
	if err := rc.Close(); err != nil {
		c.log.Error().Err(err).Msg("llm: close response body")
	}
}

// StatusError carries the HTTP status of a failed provider call so the
// batch poller can tell server-side 5xx runs apart from local failures.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

func (c *Client) statusErr(resp *http.Response, path string) error {
	tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := providerMessage(tail)

	var code perr.ErrorCode
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		code = perr.ErrorCodeTooManyRequests
	case http.StatusUnauthorized, http.StatusForbidden:
		code = perr.ErrorCodeUnauthorized
	case http.StatusBadRequest:
		code = perr.ErrorCodeInvalidArgument
	case http.StatusNotFound:
		code = perr.ErrorCodeNotFound
	default:
		if resp.StatusCode >= 500 {
			code = perr.ErrorCodeUnavailable
		} else {
			code = perr.ErrorCodeUnknown
		}
	}
	return &StatusError{
		Status:  resp.StatusCode,
		Message: msg,
		Err:     perr.Newf(code, "llm: %s returned %d: %s", path, resp.StatusCode, msg),
	}
}

// providerMessage digs the human-readable message out of an error body,
// falling back to the raw bytes.
func providerMessage(body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// truncateTokens cuts s to roughly max tokens on a rune boundary. Used on
// embedding inputs, so no ellipsis marker is added.
func truncateTokens(s string, max int) string {
	if max <= 0 {
		return s
	}
	limit := max * tokenChars
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
