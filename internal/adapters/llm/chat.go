package llm

import (
	"context"
	json "encoding/json/v2"
	"net/http"
	"strings"

	perr "dupehound/internal/platform/errors"
)

// Chat sends one completion request and returns the model's reply. A
// response without usable content is an error; callers never see an empty
// ChatResult next to a nil error.
func (c *Client) Chat(ctx context.Context, msgs []Message) (ChatResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat/completions", chatWireRequest{Model: c.opts.Model, Messages: msgs})
	if err != nil {
		return ChatResult{}, err
	}
	var out chatWireResponse
	if err := c.decode(resp, "/chat/completions", &out); err != nil {
		return ChatResult{}, err
	}
	return out.result()
}

// ChatBatch runs reqs through the async batch protocol and returns one
// outcome per request, in request order. Item-level failures land on the
// outcome's Err; only protocol-level failures error the whole call.
func (c *Client) ChatBatch(ctx context.Context, reqs []ChatRequest, opts BatchOpts) ([]ChatOutcome, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	lines := make([][]byte, 0, len(reqs))
	for i, r := range reqs {
		if r.ID == "" {
			return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "llm: chat batch request %d has no id", i)
		}
		b, err := json.Marshal(chatBatchLine{
			CustomID: r.ID,
			Method:   http.MethodPost,
			URL:      batchChatURL,
			Body:     chatWireRequest{Model: c.opts.Model, Messages: r.Messages},
		})
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "llm: encode chat batch line %s", r.ID)
		}
		lines = append(lines, b)
	}

	raw, err := c.runBatch(ctx, batchChatURL, lines, opts)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]ChatOutcome, len(reqs))
	for _, lineRaw := range splitJSONL(raw) {
		var line chatBatchOutLine
		if err := json.Unmarshal(lineRaw, &line); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "llm: parse chat batch output")
		}
		byID[line.CustomID] = line.outcome()
	}

	out := make([]ChatOutcome, len(reqs))
	for i, r := range reqs {
		oc, ok := byID[r.ID]
		if !ok {
			oc = ChatOutcome{Err: perr.Newf(perr.ErrorCodeNotFound, "llm: batch output missing %s", r.ID)}
		}
		oc.ID = r.ID
		out[i] = oc
	}
	return out, nil
}

func (w chatWireResponse) result() (ChatResult, error) {
	if len(w.Choices) == 0 || strings.TrimSpace(w.Choices[0].Message.Content) == "" {
		return ChatResult{}, perr.New(perr.ErrorCodeUnknown, "llm: completion carried no content")
	}
	return ChatResult{Response: w.Choices[0].Message.Content, Usage: w.Usage.usage()}, nil
}

func (l chatBatchOutLine) outcome() ChatOutcome {
	if l.Error != nil && l.Error.Message != "" {
		return ChatOutcome{Err: perr.Newf(perr.ErrorCodeUnknown, "llm: batch item failed: %s", l.Error.Message)}
	}
	if l.Response == nil {
		return ChatOutcome{Err: perr.New(perr.ErrorCodeUnknown, "llm: batch item carried no response")}
	}
	if l.Response.StatusCode != http.StatusOK {
		return ChatOutcome{Err: perr.Newf(perr.ErrorCodeUnknown, "llm: batch item returned %d", l.Response.StatusCode)}
	}
	res, err := l.Response.Body.result()
	if err != nil {
		return ChatOutcome{Err: err}
	}
	return ChatOutcome{Response: res.Response, Usage: res.Usage}
}
