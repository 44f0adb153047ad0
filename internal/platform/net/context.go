// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const keyAccountID ctxKey = "account_id"

// WithRequest annotates context with the request id so chi middlewares and
// the error envelope agree on it
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID != "" {
		// set chi RequestID so chimw.GetReqID can retrieve it
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	return ctx
}

// WithAccount annotates context with the key-authenticated account id
func WithAccount(ctx context.Context, accountID int64) context.Context {
	if accountID > 0 {
		ctx = context.WithValue(ctx, keyAccountID, accountID)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// AccountID returns the authenticated account id, zero when anonymous
func AccountID(ctx context.Context) int64 {
	if v, ok := ctx.Value(keyAccountID).(int64); ok {
		return v
	}
	return 0
}
