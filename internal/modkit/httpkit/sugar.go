package httpkit

import "net/http"

// Verb sugar for mounting handlers on a Router. Body-carrying verbs decode
// and validate into T first; body-less verbs skip the decode entirely. Both
// flow through the Response-aware adapters, so a handler can return
// httpkit.Created and have the status honored.

// PostJSON mounts a JSON-bound handler under POST
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, JSON(h))
}

// Get mounts a body-less handler under GET
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, Call(h))
}

// Post mounts a body-less handler under POST
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, Call(h))
}
