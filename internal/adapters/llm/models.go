package llm

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages builds the usual system+user exchange.
func Messages(system, user string) []Message {
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// Usage counts the tokens a call consumed, as reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(v Usage) {
	u.InputTokens += v.InputTokens
	u.OutputTokens += v.OutputTokens
}

// ChatResult is a completed sync chat call.
type ChatResult struct {
	Response string
	Usage    Usage
}

// ChatRequest is one item of a chat batch, keyed by a caller-chosen id that
// survives the round trip through the provider's batch files.
type ChatRequest struct {
	ID       string
	Messages []Message
}

// ChatOutcome is the per-item result of a chat batch. Err is set when the
// provider reported an item-level failure; the rest of the batch is still
// usable.
type ChatOutcome struct {
	ID       string
	Response string
	Usage    Usage
	Err      error
}

// Wire shapes for the OpenAI-compatible surface.

type chatWireRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type wireChoice struct {
	Message Message `json:"message"`
}

type chatWireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   usageWire    `json:"usage"`
}

type usageWire struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (w usageWire) usage() Usage {
	return Usage{InputTokens: w.PromptTokens, OutputTokens: w.CompletionTokens}
}

type embedWireRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedWireDatum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embedWireResponse struct {
	Data  []embedWireDatum `json:"data"`
	Usage usageWire        `json:"usage"`
}

type fileWire struct {
	ID string `json:"id"`
}

type batchWire struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	OutputFileID string    `json:"output_file_id"`
	ErrorFileID  string    `json:"error_file_id"`
	Errors       batchErrs `json:"errors"`
}

type batchErrs struct {
	Data []batchItemError `json:"data"`
}

type batchItemError struct {
	Message string `json:"message"`
}

func (b batchWire) firstError() string {
	if len(b.Errors.Data) > 0 && b.Errors.Data[0].Message != "" {
		return b.Errors.Data[0].Message
	}
	return "no error detail"
}

// One line of the uploaded request file / downloaded output file.

type chatBatchLine struct {
	CustomID string          `json:"custom_id"`
	Method   string          `json:"method"`
	URL      string          `json:"url"`
	Body     chatWireRequest `json:"body"`
}

type chatBatchResp struct {
	StatusCode int              `json:"status_code"`
	Body       chatWireResponse `json:"body"`
}

type chatBatchOutLine struct {
	CustomID string          `json:"custom_id"`
	Response *chatBatchResp  `json:"response"`
	Error    *batchItemError `json:"error"`
}

type embedBatchLine struct {
	CustomID string           `json:"custom_id"`
	Method   string           `json:"method"`
	URL      string           `json:"url"`
	Body     embedWireRequest `json:"body"`
}

type embedBatchResp struct {
	StatusCode int               `json:"status_code"`
	Body       embedWireResponse `json:"body"`
}

type embedBatchOutLine struct {
	CustomID string          `json:"custom_id"`
	Response *embedBatchResp `json:"response"`
	Error    *batchItemError `json:"error"`
}
