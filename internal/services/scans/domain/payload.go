package domain

import (
	json "encoding/json/v2"

	perr "dupehound/internal/platform/errors"
)

// Job types the pipeline enqueues
const (
	JobTypeScan   = "scan"
	JobTypeIngest = "ingest"
	JobTypeDetect = "detect"
)

// ScanJobPayload rides on scan and ingest jobs
type ScanJobPayload struct {
	ScanID    int64  `json:"scanId"`
	RepoID    int64  `json:"repoId"`
	AccountID int64  `json:"accountId"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	MaxPRs    int    `json:"maxPrs,omitempty"`
}

// DetectJobPayload rides on detect jobs; PRNumbers is the ingested scope
type DetectJobPayload struct {
	ScanID    int64 `json:"scanId"`
	RepoID    int64 `json:"repoId"`
	AccountID int64 `json:"accountId"`
	PRNumbers []int `json:"prNumbers"`
}

// EncodePayload renders a typed payload as the queue's document form
func EncodePayload(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "encode job payload")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "encode job payload")
	}
	return m, nil
}

// DecodePayload reads a queue document back into a typed payload
func DecodePayload(m map[string]any, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode job payload")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "decode job payload")
	}
	return nil
}
