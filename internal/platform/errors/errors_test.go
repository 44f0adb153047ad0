package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode_CoversEveryCode(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrorCodeUnknown:         http.StatusInternalServerError,
		ErrorCodePanic:           http.StatusInternalServerError,
		ErrorCodeUnavailable:     http.StatusServiceUnavailable,
		ErrorCodeTooManyRequests: http.StatusTooManyRequests,
		ErrorCodeConflict:        http.StatusConflict,
		ErrorCodeUnauthorized:    http.StatusUnauthorized,
		ErrorCodeForbidden:       http.StatusForbidden,
		ErrorCodeInvalidArgument: http.StatusUnprocessableEntity,
		ErrorCodeValidation:      http.StatusBadRequest,
		ErrorCodeJSON:            http.StatusBadRequest,
		ErrorCodeNotFound:        http.StatusNotFound,
		ErrorCodeDuplicateKey:    http.StatusConflict,
		ErrorCodeDB:              http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatusCode(code); got != want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", code, got, want)
		}
	}
	if got := HTTPStatusCode(9999); got != http.StatusInternalServerError {
		t.Fatalf("unrecognized code should default to 500, got %d", got)
	}
}

func TestErrorRendering(t *testing.T) {
	var nilErr *Error
	if nilErr.Error() != "<nil>" {
		t.Fatalf("nil *Error renders %q", nilErr.Error())
	}

	plain := Newf(ErrorCodeValidation, "scan %s rejected", "octo/widgets")
	if plain.Error() != "scan octo/widgets rejected" {
		t.Fatalf("Newf render = %q", plain.Error())
	}

	cause := stderrs.New("disk I/O error")
	wrapped := Wrapf(cause, ErrorCodeDB, "persist scan %d", 7)
	if want := "persist scan 7: disk I/O error"; wrapped.Error() != want {
		t.Fatalf("Wrapf render = %q, want %q", wrapped.Error(), want)
	}
	if stderrs.Unwrap(wrapped) != cause {
		t.Fatalf("Unwrap lost the cause")
	}
}

func TestAsAndCodeOf(t *testing.T) {
	ours := New(ErrorCodeNotFound, "pr not found")
	if e, ok := As(ours); !ok || e.Code() != ErrorCodeNotFound {
		t.Fatalf("As failed on our error")
	}

	foreign := stderrs.New("plain")
	if _, ok := As(foreign); ok {
		t.Fatalf("As matched a foreign error")
	}
	if CodeOf(foreign) != ErrorCodeUnknown {
		t.Fatalf("foreign errors should default to Unknown")
	}

	// As sees through stdlib wrapping
	deep := fmt.Errorf("outer: %w", ours)
	if e, ok := As(deep); !ok || e.Code() != ErrorCodeNotFound {
		t.Fatalf("As failed through %%w wrapping")
	}
}

func TestWithField_CopyOnWrite(t *testing.T) {
	base := Wrap(stderrs.New("boom"), ErrorCodeInvalidArgument, "bad repo")

	withField := WithField(base, "repo")
	if e, _ := As(withField); e.Field() != "repo" {
		t.Fatalf("WithField did not stick")
	}
	if e, _ := As(base); e.Field() != "" {
		t.Fatalf("WithField mutated the original")
	}

	// foreign errors pass through untouched
	foreign := stderrs.New("plain")
	if WithField(foreign, "x") != foreign {
		t.Fatalf("WithField should not wrap foreign errors")
	}
}

func TestWireShapes(t *testing.T) {
	w := (&Error{code: ErrorCodeUnauthorized, msg: "missing api key", field: "key"}).ToWire()
	if w.Code != ErrorCodeUnauthorized || w.Message != "missing api key" || w.Field != "key" {
		t.Fatalf("ToWire mismatch: %+v", w)
	}

	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) = %+v, want zero", wf)
	}

	foreign := stderrs.New("socket closed")
	if wf := WireFrom(foreign); wf.Code != ErrorCodeUnknown || wf.Message != "socket closed" {
		t.Fatalf("WireFrom(foreign) = %+v", wf)
	}

	// ours keeps msg only, the wrapped cause stays server side
	wrapped := Wrap(foreign, ErrorCodeDB, "load candidates")
	if wf := WireFrom(wrapped); wf.Message != "load candidates" {
		t.Fatalf("WireFrom leaked the cause: %+v", wf)
	}
}

func TestSugarConstructors(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{NotFoundf("x"), ErrorCodeNotFound},
		{InvalidArgf("x"), ErrorCodeInvalidArgument},
		{JSONErrf("x"), ErrorCodeJSON},
		{PanicErrf("x"), ErrorCodePanic},
		{Unauthorizedf("x"), ErrorCodeUnauthorized},
	}
	for _, c := range cases {
		if !IsCode(c.err, c.code) {
			t.Fatalf("sugar constructor gave %v, want %v", CodeOf(c.err), c.code)
		}
	}
	if !IsCode(ErrNotFound, ErrorCodeNotFound) {
		t.Fatalf("ErrNotFound sentinel mismatch")
	}
}

func TestRoot_FindsDeepestCause(t *testing.T) {
	rootErr := stderrs.New("root")
	deep := fmt.Errorf("level2: %w", fmt.Errorf("level1: %w", rootErr))
	if got := Root(deep); got != rootErr {
		t.Fatalf("Root = %v", got)
	}
	if Root(nil) != nil {
		t.Fatalf("Root(nil) should be nil")
	}
}
