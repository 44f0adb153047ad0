package llm

import (
	"context"
	json "encoding/json/v2"
	"fmt"
	"net/http"

	"dupehound/internal/core/normalize"
	perr "dupehound/internal/platform/errors"
)

// Embedding requests are chunked to stay inside the provider's per-request
// limits. Inputs already sit under MaxContextTokens each, so any chunk
// produced here is acceptable on both axes.
const (
	embedTokenBudget = 250_000
	embedItemCap     = 2048
)

// Embed returns one vector per input, in input order. Inputs are sanitised
// and truncated before they leave the process; callers may pass raw PR text.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, Usage, error) {
	var usage Usage
	if len(inputs) == 0 {
		return nil, usage, nil
	}
	prepared := c.prepare(inputs)
	vecs := make([][]float32, len(prepared))

	for _, ch := range chunkEmbeds(prepared, c.CountTokens) {
		resp, err := c.do(ctx, http.MethodPost, "/embeddings", embedWireRequest{Model: c.opts.Model, Input: ch.inputs})
		if err != nil {
			return nil, usage, err
		}
		var out embedWireResponse
		if err := c.decode(resp, "/embeddings", &out); err != nil {
			return nil, usage, err
		}
		if err := ch.place(vecs, out.Data); err != nil {
			return nil, usage, err
		}
		usage.Add(out.Usage.usage())
	}
	return vecs, usage, nil
}

// EmbedBatch is Embed over the async batch protocol. Each chunk becomes one
// JSONL line; a failed chunk fails the whole call because partial vectors
// cannot be checkpointed coherently.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string, opts BatchOpts) ([][]float32, Usage, error) {
	var usage Usage
	if len(inputs) == 0 {
		return nil, usage, nil
	}
	prepared := c.prepare(inputs)
	chunks := chunkEmbeds(prepared, c.CountTokens)

	lines := make([][]byte, 0, len(chunks))
	for i, ch := range chunks {
		b, err := json.Marshal(embedBatchLine{
			CustomID: chunkID(i),
			Method:   http.MethodPost,
			URL:      batchEmbedURL,
			Body:     embedWireRequest{Model: c.opts.Model, Input: ch.inputs},
		})
		if err != nil {
			return nil, usage, perr.Wrapf(err, perr.ErrorCodeJSON, "llm: encode embed batch line %d", i)
		}
		lines = append(lines, b)
	}

	raw, err := c.runBatch(ctx, batchEmbedURL, lines, opts)
	if err != nil {
		return nil, usage, err
	}

	byID := make(map[string]embedBatchOutLine, len(chunks))
	for _, lineRaw := range splitJSONL(raw) {
		var line embedBatchOutLine
		if err := json.Unmarshal(lineRaw, &line); err != nil {
			return nil, usage, perr.Wrap(err, perr.ErrorCodeJSON, "llm: parse embed batch output")
		}
		byID[line.CustomID] = line
	}

	vecs := make([][]float32, len(prepared))
	for i, ch := range chunks {
		line, ok := byID[chunkID(i)]
		if !ok {
			return nil, usage, perr.Newf(perr.ErrorCodeNotFound, "llm: embed batch output missing %s", chunkID(i))
		}
		if line.Error != nil && line.Error.Message != "" {
			return nil, usage, perr.Newf(perr.ErrorCodeUnknown, "llm: embed batch chunk %d failed: %s", i, line.Error.Message)
		}
		if line.Response == nil || line.Response.StatusCode != http.StatusOK {
			return nil, usage, perr.Newf(perr.ErrorCodeUnknown, "llm: embed batch chunk %d unusable", i)
		}
		if err := ch.place(vecs, line.Response.Body.Data); err != nil {
			return nil, usage, err
		}
		usage.Add(line.Response.Body.Usage.usage())
	}
	return vecs, usage, nil
}

// prepare sanitises and truncates every input so the provider never sees an
// empty string or an over-long one.
func (c *Client) prepare(inputs []string) []string {
	out := make([]string, len(inputs))
	for i, s := range inputs {
		out[i] = truncateTokens(normalize.EmbedInput(s), c.opts.MaxContextTokens)
	}
	return out
}

func chunkID(i int) string { return fmt.Sprintf("chunk-%04d", i) }

// embedChunk is a run of inputs that fits one provider request.
type embedChunk struct {
	start  int
	inputs []string
}

func chunkEmbeds(inputs []string, count func(string) int) []embedChunk {
	var chunks []embedChunk
	cur := embedChunk{start: 0}
	tokens := 0
	for i, s := range inputs {
		t := count(s)
		if len(cur.inputs) > 0 && (len(cur.inputs) >= embedItemCap || tokens+t > embedTokenBudget) {
			chunks = append(chunks, cur)
			cur = embedChunk{start: i}
			tokens = 0
		}
		cur.inputs = append(cur.inputs, s)
		tokens += t
	}
	if len(cur.inputs) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// place copies the chunk's vectors into the full result slice, trusting the
// provider's per-item index over response ordering.
func (ch embedChunk) place(vecs [][]float32, data []embedWireDatum) error {
	if len(data) != len(ch.inputs) {
		return perr.Newf(perr.ErrorCodeUnknown, "llm: embedding response returned %d vectors for %d inputs", len(data), len(ch.inputs))
	}
	for _, d := range data {
		if d.Index < 0 || d.Index >= len(ch.inputs) {
			return perr.Newf(perr.ErrorCodeUnknown, "llm: embedding index %d out of range", d.Index)
		}
		vecs[ch.start+d.Index] = d.Embedding
	}
	return nil
}
