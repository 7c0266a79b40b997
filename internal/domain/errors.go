package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound            = errors.New("not found")
	ErrNoData              = errors.New("no data")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrUnknownModel        = errors.New("unknown model")
	ErrUnknownCascadePath  = errors.New("unknown cascade path")
	ErrUnsupportedAction   = errors.New("unsupported action")
	ErrBadRequest          = errors.New("bad request")
)

// UnknownModelError is returned when the registry cannot resolve a model name.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string        { return "model " + e.Model + " does not exist" }
func (e *UnknownModelError) StatusCode() int      { return http.StatusBadRequest }
func (e *UnknownModelError) Is(target error) bool { return target == ErrUnknownModel }

// AuthorizationError is a denied authorization check. Message is optional and
// is the only thing written to the response besides the status.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	if e.Message == "" {
		return ErrAuthorizationDenied.Error()
	}
	return e.Message
}
func (e *AuthorizationError) StatusCode() int      { return http.StatusUnauthorized }
func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorizationDenied }

// Denied returns an AuthorizationError with the given message.
func Denied(message string) error {
	return &AuthorizationError{Message: message}
}

// UnknownCascadePathError aborts a cascade save before any validation work.
type UnknownCascadePathError struct {
	Path string
}

func (e *UnknownCascadePathError) Error() string        { return "path " + e.Path + " does not exist" }
func (e *UnknownCascadePathError) StatusCode() int      { return http.StatusBadRequest }
func (e *UnknownCascadePathError) Is(target error) bool { return target == ErrUnknownCascadePath }

// BadRequestError indicates a malformed request descriptor.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string        { return e.Message }
func (e *BadRequestError) StatusCode() int      { return http.StatusBadRequest }
func (e *BadRequestError) Is(target error) bool { return target == ErrBadRequest }

// BadRequest formats a BadRequestError.
func BadRequest(format string, args ...any) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError carries a field-keyed error map. Keys are field paths, for
// cascade children they are qualified as "<field>.<index>.<subfield>" or
// "<field>.<subfield>". Child marks the aggregated cascade form.
type ValidationError struct {
	Fields map[string]string
	Child  bool
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	prefix := "validation failed"
	if e.Child {
		prefix = "child validation failed"
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Qualify returns a copy of the error with every key prefixed by prefix + ".".
func (e *ValidationError) Qualify(prefix string) *ValidationError {
	out := &ValidationError{Fields: make(map[string]string, len(e.Fields)), Child: true}
	for k, v := range e.Fields {
		out.Fields[prefix+"."+k] = v
	}
	return out
}

// Merge folds other's fields into e.
func (e *ValidationError) Merge(other *ValidationError) {
	if e.Fields == nil {
		e.Fields = make(map[string]string, len(other.Fields))
	}
	for k, v := range other.Fields {
		e.Fields[k] = v
	}
}

// UnsupportedActionError is returned for actions the dispatcher does not know.
type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string        { return "action " + e.Action + " is not implemented" }
func (e *UnsupportedActionError) StatusCode() int      { return http.StatusNotImplemented }
func (e *UnsupportedActionError) Is(target error) bool { return target == ErrUnsupportedAction }
