package net

import (
	"net/http"

	perr "dupehound/internal/platform/errors"
)

// Wire is the JSON envelope every transport writes, success or failure alike.
// Middleware that must answer before a handler runs (auth rejections, panic
// recovery) and the handler response writer share this one shape
type Wire struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Reply builds a success envelope for the given status
func Reply(status int, data any, reqID string) (int, Wire) {
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  reqID,
		Data:       data,
	}
}

// Error builds an error envelope. Status and code come from the platform
// error classification; a nil err degrades to a plain 200
func Error(err error, reqID string) (int, Wire) {
	if err == nil {
		return Reply(http.StatusOK, nil, reqID)
	}
	status, w := perr.HTTP(err)
	return status, Wire{
		StatusCode: status,
		Status:     http.StatusText(status),
		Code:       w.Code,
		Error:      w.Message,
		RequestID:  reqID,
	}
}
