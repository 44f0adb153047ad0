// Package vector is the qdrant-style vector store client the detect
// pipeline keeps its embedding spaces in.
//
// Two collections exist per installation, one per embedding space, both
// cosine. Point ids are deterministic UUIDs derived from the PR they
// describe, so re-embedding a PR overwrites its old point instead of
// accumulating stale ones.
package vector

import (
	"bytes"
	"context"
	json "encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	"dupehound/internal/platform/net/httpc"
)

const (
	defaultTimeout = 30 * time.Second

	// upsertBatch caps points per upsert call; the store rejects outsized
	// request bodies well before memory becomes a concern
	upsertBatch = 256

	maxBodyBytes = 32 << 20
)

// Options configures the Client
type Options struct {
	BaseURL string
	APIKey  string

	Timeout       time.Duration
	MaxConcurrent int
	MaxRetries    int

	Metrics *metrics.Metrics
}

// Client talks to one vector store endpoint
type Client struct {
	hc   *httpc.Client
	opts Options
	log  logger.Logger
}

// New builds a Client; BaseURL is required
func New(o Options) *Client {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	c := &Client{
		opts: o,
		log:  *logger.Named("vector"),
	}
	c.hc = httpc.New(&http.Client{Timeout: o.Timeout}, httpc.Options{
		Name:          "vector",
		MaxConcurrent: o.MaxConcurrent,
		MaxRetries:    o.MaxRetries,
		Metrics:       o.Metrics,
	})
	return c
}

// PointID derives the deterministic UUID for one PR in one embedding space.
// The store requires UUID keys, so arbitrary string identities are folded
// through an MD5 UUID; equal inputs always map to the same point
func PointID(repoID int64, prNumber int, space string) string {
	raw := fmt.Sprintf("%d-%d-%s", repoID, prNumber, space)
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(raw)).String()
}

// EnsureCollection creates name with the given dimension and cosine distance.
// An existing collection with a different dimension is dropped and recreated;
// callers must be prepared to re-embed everything in it
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int) error {
	cur, exists, err := c.collectionDim(ctx, name)
	if err != nil {
		return err
	}
	if exists && cur == dim {
		return nil
	}
	if exists {
		c.log.Warn().
			Str("collection", name).
			Int("have_dim", cur).
			Int("want_dim", dim).
			Msg("vector collection dimension changed dropping and recreating")
		if err := c.dropCollection(ctx, name); err != nil {
			return err
		}
	}
	return c.createCollection(ctx, name, dim)
}

// Upsert writes points into collection, chunked under the per-call cap.
// Ids are folded to deterministic UUIDs, so re-upserting replaces
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	for start := 0; start < len(points); start += upsertBatch {
		end := min(start+upsertBatch, len(points))

		wire := make([]pointWire, 0, end-start)
		for _, p := range points[start:end] {
			wire = append(wire, pointWire{
				ID:      foldID(p.ID),
				Vector:  p.Vector,
				Payload: p.Payload,
			})
		}
		path := "/collections/" + collection + "/points?wait=true"
		resp, err := c.do(ctx, http.MethodPut, path, upsertWire{Points: wire})
		if err != nil {
			return err
		}
		if err := c.decode(resp, path, &struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

// Search runs filtered k-NN over collection and returns scored hits with
// payloads, highest score first
func (c *Client) Search(ctx context.Context, collection string, vec []float32, q SearchQuery) ([]Scored, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	body := searchWire{
		Vector:      vec,
		Limit:       q.Limit,
		WithPayload: true,
		Filter:      q.Filter.wire(),
	}
	path := "/collections/" + collection + "/points/search"
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var out envelope[[]scoredWire]
	if err := c.decode(resp, path, &out); err != nil {
		return nil, err
	}

	hits := make([]Scored, 0, len(out.Result))
	for _, h := range out.Result {
		hits = append(hits, Scored{Score: h.Score, Payload: h.Payload})
	}
	return hits, nil
}

// DeleteByFilter removes every point the filter matches
func (c *Client) DeleteByFilter(ctx context.Context, collection string, f Filter) error {
	path := "/collections/" + collection + "/points/delete?wait=true"
	resp, err := c.do(ctx, http.MethodPost, path, deleteWire{Filter: f.wire()})
	if err != nil {
		return err
	}
	return c.decode(resp, path, &struct{}{})
}

// GetVector fetches one point's vector by its string identity.
// found is false when the point does not exist
func (c *Client) GetVector(ctx context.Context, collection, id string) ([]float32, bool, error) {
	path := "/collections/" + collection + "/points/" + foldID(id)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, false, nil
	}
	var out envelope[pointDetailWire]
	if err := c.decode(resp, path, &out); err != nil {
		return nil, false, err
	}
	return out.Result.Vector, true, nil
}

// collectionDim reads the dimension of an existing collection
func (c *Client) collectionDim(ctx context.Context, name string) (dim int, exists bool, err error) {
	path := "/collections/" + name
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, false, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return 0, false, nil
	}
	var out envelope[collectionInfoWire]
	if err := c.decode(resp, path, &out); err != nil {
		return 0, false, err
	}
	return out.Result.Config.Params.Vectors.Size, true, nil
}

func (c *Client) createCollection(ctx context.Context, name string, dim int) error {
	path := "/collections/" + name
	body := createCollectionWire{Vectors: vectorsConfigWire{Size: dim, Distance: "Cosine"}}
	resp, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	return c.decode(resp, path, &struct{}{})
}

func (c *Client) dropCollection(ctx context.Context, name string) error {
	path := "/collections/" + name
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.decode(resp, path, &struct{}{})
}

// foldID maps an arbitrary string id to the UUID form the store accepts.
// Ids that already parse as UUIDs pass through unchanged
func foldID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(id)).String()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "vector encode %s failed", path)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, rd)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "vector build request failed")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("api-key", c.opts.APIKey)
	}
	return c.hc.Do(ctx, req)
}

// decode consumes resp into out; non-2xx statuses become coded errors
func (c *Client) decode(resp *http.Response, path string, out any) error {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("vector close body failed")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		code := perr.ErrorCodeUnknown
		switch {
		case resp.StatusCode == http.StatusNotFound:
			code = perr.ErrorCodeNotFound
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			code = perr.ErrorCodeUnauthorized
		case resp.StatusCode >= 500:
			code = perr.ErrorCodeUnavailable
		}
		return perr.Newf(code, "vector %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(tail)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "vector read %s failed", path)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "vector decode %s failed", path)
	}
	return nil
}
