package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	perr "dupehound/internal/platform/errors"
)

const (
	batchChatURL  = "/v1/chat/completions"
	batchEmbedURL = "/v1/embeddings"

	// completionWindow is the only window cloud providers accept today.
	completionWindow = "24h"

	pollBase   = 10 * time.Second
	pollGrowth = 1.5
	pollCap    = 10 * time.Minute

	// Transient failures are tolerated while polling as long as the run
	// stays short; the counters reset on any successful poll.
	max5xxRun = 3
	maxNetRun = 4

	defaultBatchDeadline = 24 * time.Hour
)

// BatchOpts control the async batch protocol.
type BatchOpts struct {
	// ExistingBatchID resumes a previously created batch: upload and
	// create are skipped and polling starts immediately.
	ExistingBatchID string
	// OnBatchCreated is invoked with the new batch id before polling
	// begins, so the caller can persist it for crash recovery. An error
	// aborts the call; the batch keeps running server-side.
	OnBatchCreated func(id string) error
}

// runBatch drives upload, create, poll and download, returning the merged
// JSONL of the batch's output and error files.
func (c *Client) runBatch(ctx context.Context, endpoint string, lines [][]byte, opts BatchOpts) ([]byte, error) {
	id := opts.ExistingBatchID
	if id == "" {
		fileID, err := c.uploadBatchFile(ctx, lines)
		if err != nil {
			return nil, err
		}
		id, err = c.createBatch(ctx, fileID, endpoint)
		if err != nil {
			return nil, err
		}
		if opts.OnBatchCreated != nil {
			if err := opts.OnBatchCreated(id); err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "llm: record batch %s", id)
			}
		}
		c.log.Info().Str("batch_id", id).Int("requests", len(lines)).Msg("provider batch created")
	} else {
		c.log.Info().Str("batch_id", id).Msg("resuming provider batch")
	}
	return c.awaitBatch(ctx, id)
}

func (c *Client) uploadBatchFile(ctx context.Context, lines [][]byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "batch"); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "llm: write multipart purpose")
	}
	fw, err := mw.CreateFormFile("file", "requests.jsonl")
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "llm: write multipart file")
	}
	for _, line := range lines {
		_, _ = fw.Write(line)
		_, _ = fw.Write([]byte("\n"))
	}
	if err := mw.Close(); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "llm: finish multipart file")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/files", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "llm: build upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.auth(req)

	resp, err := c.hc.Do(ctx, req)
	if err != nil {
		return "", err
	}
	var out fileWire
	if err := c.decode(resp, "/files", &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", perr.New(perr.ErrorCodeUnknown, "llm: file upload returned no id")
	}
	return out.ID, nil
}

func (c *Client) createBatch(ctx context.Context, fileID, endpoint string) (string, error) {
	body := map[string]string{
		"input_file_id":     fileID,
		"endpoint":          endpoint,
		"completion_window": completionWindow,
	}
	resp, err := c.do(ctx, http.MethodPost, "/batches", body)
	if err != nil {
		return "", err
	}
	var out batchWire
	if err := c.decode(resp, "/batches", &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", perr.New(perr.ErrorCodeUnknown, "llm: batch create returned no id")
	}
	return out.ID, nil
}

// awaitBatch polls until the batch settles. Poll intervals grow
// geometrically from pollBase up to pollCap; the overall wait is bounded by
// the configured deadline.
func (c *Client) awaitBatch(ctx context.Context, id string) ([]byte, error) {
	deadline := c.now().Add(c.opts.BatchDeadline)
	interval := pollBase
	var run5xx, runNet int

	for {
		if err := ctx.Err(); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "llm: batch %s poll canceled", id)
		}

		b, err := c.fetchBatch(ctx, id)
		switch {
		case err == nil:
			run5xx, runNet = 0, 0
			switch b.Status {
			case "completed":
				return c.downloadOutputs(ctx, b)
			case "failed", "expired", "cancelled":
				return nil, perr.Newf(perr.ErrorCodeUnknown, "llm: batch %s %s: %s", id, b.Status, b.firstError())
			}
			c.log.Debug().Str("batch_id", id).Str("status", b.Status).Dur("next_poll", interval).Msg("batch pending")
		case isServerStatus(err):
			run5xx, runNet = run5xx+1, 0
			if run5xx > max5xxRun {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "llm: batch %s poll failed %d times", id, run5xx)
			}
			c.log.Warn().Err(err).Str("batch_id", id).Int("run", run5xx).Msg("batch poll server error")
		case isNetworkErr(err):
			runNet, run5xx = runNet+1, 0
			if runNet > maxNetRun {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "llm: batch %s unreachable %d times", id, runNet)
			}
			c.log.Warn().Err(err).Str("batch_id", id).Int("run", runNet).Msg("batch poll network error")
		default:
			return nil, err
		}

		if c.now().After(deadline) {
			return nil, perr.Newf(perr.ErrorCodeUnavailable, "llm: batch %s still pending after %s", id, c.opts.BatchDeadline)
		}
		c.sleep(interval)
		interval = time.Duration(float64(interval) * pollGrowth)
		if interval > pollCap {
			interval = pollCap
		}
	}
}

func (c *Client) fetchBatch(ctx context.Context, id string) (batchWire, error) {
	resp, err := c.do(ctx, http.MethodGet, "/batches/"+id, nil)
	if err != nil {
		return batchWire{}, err
	}
	var out batchWire
	if err := c.decode(resp, "/batches/"+id, &out); err != nil {
		return batchWire{}, err
	}
	return out, nil
}

// downloadOutputs fetches the output file and, when present, the error
// file. Both are JSONL with the same per-line envelope, so they merge by
// concatenation.
func (c *Client) downloadOutputs(ctx context.Context, b batchWire) ([]byte, error) {
	var merged []byte
	for _, fid := range []string{b.OutputFileID, b.ErrorFileID} {
		if fid == "" {
			continue
		}
		chunk, err := c.downloadFile(ctx, fid)
		if err != nil {
			return nil, err
		}
		merged = append(merged, chunk...)
		if len(chunk) > 0 && chunk[len(chunk)-1] != '\n' {
			merged = append(merged, '\n')
		}
	}
	if len(merged) == 0 {
		return nil, perr.Newf(perr.ErrorCodeUnknown, "llm: batch %s completed without output files", b.ID)
	}
	return merged, nil
}

func (c *Client) downloadFile(ctx context.Context, id string) ([]byte, error) {
	path := "/files/" + id + "/content"
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusErr(resp, path)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "llm: read %s", path)
	}
	return b, nil
}

// splitJSONL breaks a downloaded file into its non-empty lines.
func splitJSONL(b []byte) [][]byte {
	var lines [][]byte
	for _, raw := range bytes.Split(b, []byte("\n")) {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 {
			lines = append(lines, raw)
		}
	}
	return lines
}

func isServerStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status >= 500
}

func isNetworkErr(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	return perr.IsCode(err, perr.ErrorCodeUnavailable)
}
