package github

import (
	"context"
	json "encoding/json/v2"
	"fmt"
	"io"
	"net/http"

	perr "dupehound/internal/platform/errors"
)

// ListOpenPRs returns the repo's open pull requests oldest first, paging at
// 100 per page until a short page. max > 0 caps the result
func (c *Client) ListOpenPRs(ctx context.Context, owner, repo string, max int) ([]PR, error) {
	var out []PR
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&sort=created&direction=asc&per_page=%d&page=%d",
			owner, repo, perPage, page)
		resp, err := c.do(ctx, http.MethodGet, path, acceptJSON, "", nil)
		if err != nil {
			return nil, err
		}

		var batch []PR
		if err := c.decode(resp, path, &batch, 8<<20); err != nil {
			return nil, err
		}
		out = append(out, batch...)

		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if len(batch) < perPage {
			return out, nil
		}
	}
}

// FetchPR fetches a single pull request
func (c *Client) FetchPR(ctx context.Context, owner, repo string, number int) (PR, error) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	resp, err := c.do(ctx, http.MethodGet, path, acceptJSON, "", nil)
	if err != nil {
		return PR{}, err
	}
	var out PR
	if err := c.decode(resp, path, &out, 4<<20); err != nil {
		return PR{}, err
	}
	return out, nil
}

// GetPRFiles returns the changed file paths of a pull request, paginated
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	var out []string
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
			owner, repo, number, perPage, page)
		resp, err := c.do(ctx, http.MethodGet, path, acceptJSON, "", nil)
		if err != nil {
			return nil, err
		}

		var batch []prFile
		if err := c.decode(resp, path, &batch, 8<<20); err != nil {
			return nil, err
		}
		for _, f := range batch {
			out = append(out, f.Filename)
		}
		if len(batch) < perPage {
			return out, nil
		}
	}
}

// GetPRDiff fetches the unified diff, revalidating against etag when given.
// A 304 returns notModified true and the caller keeps its stored hash.
// Oversized diffs (406 from GitHub, or a body past MaxDiffBytes) fail with
// ErrDiffTooLarge so the ingester can fall back to file paths only
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, number int, etag string) (
	diff string, newETag string, notModified bool, err error,
) {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	resp, err := c.do(ctx, http.MethodGet, path, acceptDiff, etag, nil)
	if err != nil {
		return "", "", false, err
	}
	defer c.closeBody(resp, path)

	switch resp.StatusCode {
	case http.StatusNotModified:
		return "", resp.Header.Get("ETag"), true, nil
	case http.StatusNotAcceptable:
		// GitHub refuses to render diffs past its own size ceiling
		return "", "", false, ErrDiffTooLarge
	case http.StatusOK:
	default:
		return "", "", false, c.statusErr(resp, path)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxDiffBytes+1))
	if err != nil {
		return "", "", false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github read diff failed")
	}
	if int64(len(b)) > c.opts.MaxDiffBytes {
		return "", "", false, ErrDiffTooLarge
	}
	return string(b), resp.Header.Get("ETag"), false, nil
}

// CreateIssueComment posts a comment on the PR's issue thread
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "github marshal comment failed")
	}
	resp, err := c.do(ctx, http.MethodPost, path, acceptJSON, "", payload)
	if err != nil {
		return err
	}
	defer c.closeBody(resp, path)
	if resp.StatusCode != http.StatusCreated {
		return c.statusErr(resp, path)
	}
	return nil
}

// ClosePR closes a pull request without merging it
func (c *Client) ClosePR(ctx context.Context, owner, repo string, number int) error {
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	payload, err := json.Marshal(map[string]string{"state": "closed"})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "github marshal close failed")
	}
	resp, err := c.do(ctx, http.MethodPatch, path, acceptJSON, "", payload)
	if err != nil {
		return err
	}
	defer c.closeBody(resp, path)
	if resp.StatusCode != http.StatusOK {
		return c.statusErr(resp, path)
	}
	return nil
}

// ClosePRWithComment explains the close on the issue thread first, then
// closes. The pipeline only ever recommends; nothing enqueues this itself
func (c *Client) ClosePRWithComment(ctx context.Context, owner, repo string, number int, comment string) error {
	if comment != "" {
		if err := c.CreateIssueComment(ctx, owner, repo, number, comment); err != nil {
			return err
		}
	}
	return c.ClosePR(ctx, owner, repo, number)
}

// decode reads at most limit bytes of a JSON body into out and closes it
func (c *Client) decode(resp *http.Response, path string, out any, limit int64) error {
	defer c.closeBody(resp, path)

	if resp.StatusCode != http.StatusOK {
		return c.statusErr(resp, path)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "github read body failed")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "github decode %s failed", path)
	}
	return nil
}

func (c *Client) closeBody(resp *http.Response, path string) {
	if cerr := resp.Body.Close(); cerr != nil {
		c.log.Error().Err(cerr).Str("path", path).Msg("github close body failed")
	}
}
