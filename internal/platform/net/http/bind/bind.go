// Package bind provides JSON decode and validation helpers for handlers
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldLevel aliases validator.FieldLevel so callers can register custom tags
// without importing the validator directly
type FieldLevel = validator.FieldLevel

// ValidatorSvc holds a singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce    sync.Once
	vSvc     *ValidatorSvc
	jsonMore = func(dec *json.Decoder) bool { return dec.More() } // seam
)

// Init initializes the singleton validator with english translations and json tag names
func Init() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// prefer json tag names in messages
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		// short messages for the tags request DTOs and account config lean on
		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "oneof", "{0} must be one of {1}")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Get returns the validator singleton, initializing on first use
func Get() *ValidatorSvc {
	if vSvc == nil {
		return Init()
	}
	return vSvc
}

// RegisterValidation registers a custom tag
func RegisterValidation(tag string, fn validator.Func) error {
	return Get().Validator.RegisterValidation(tag, fn)
}

// JSONOptions controls parsing behavior
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool  // default true
	AllowEmptyBody  bool  // default false
}

func defaultJSONOptions() JSONOptions {
	return JSONOptions{
		MaxBytes:        1 << 20,
		DisallowUnknown: true,
		AllowEmptyBody:  false,
	}
}

// ParseJSON decodes JSON into T, validates it, and maps failures to project
// errors. An empty body is tolerated on safe methods and rejected otherwise,
// unless AllowEmptyBody is set
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := defaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Get().Error().Err(err).Msg("failed to close request body")
		}
	}()

	body := io.Reader(r.Body)
	if !o.AllowEmptyBody {
		// peek one byte to tell an empty body apart from `{}`
		buf := make([]byte, 1)
		n, _ := r.Body.Read(buf)
		if n == 0 {
			switch r.Method {
			case http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions:
				return zero, nil
			}
			return zero, perr.JSONErrf("empty body")
		}
		body = io.MultiReader(bytes.NewReader(buf[:n]), r.Body)
	}
	if o.MaxBytes > 0 {
		body = io.LimitReader(body, o.MaxBytes)
	}

	dec := json.NewDecoder(body)
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}

	var dst T
	if err := dec.Decode(&dst); err != nil {
		// EOF is acceptable when empty bodies are allowed
		if o.AllowEmptyBody && errors.Is(err, io.EOF) {
			return dst, nil
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}

	if jsonMore(dec) {
		return zero, perr.JSONErrf("unexpected trailing data")
	}

	if err := Get().Validator.Struct(dst); err != nil {
		if inv, ok := err.(*validator.InvalidValidationError); ok {
			logger.Get().Error().Err(inv).Msg("validator internal error")
			return zero, perr.JSONErrf("validation error")
		}
		_, msg := ValidationFieldAndMessage(err)
		return zero, perr.Newf(perr.ErrorCodeValidation, "%s", msg) // field can be attached by caller if needed
	}

	return dst, nil
}

// ValidationFieldAndMessage returns the first field and translated message
func ValidationFieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		return "", inv.Error()
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

// registerShort replaces a default translation with a terse single-parameter one
func registerShort(v *validator.Validate, trans ut.Translator, tag, tmpl string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, tmpl, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
