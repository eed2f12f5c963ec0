package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the coarse failure category surfaced to callers as error_type.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindUpstreamConflict    Kind = "upstream_conflict"
	KindTimeout             Kind = "timeout"
	KindIncompleteArtifact  Kind = "incomplete_artifact"
	KindPartialWriteFailure Kind = "partial_write_failure"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// Upstream names the external system an error originated from.
type Upstream string

const (
	UpstreamNone      Upstream = ""
	UpstreamLLM       Upstream = "llm"
	UpstreamGitHub    Upstream = "github"
	UpstreamVercel    Upstream = "vercel"
	UpstreamBuilderIO Upstream = "builderio"
	UpstreamGCS       Upstream = "gcs"
	UpstreamStore     Upstream = "store"
	UpstreamRegistry  Upstream = "registry"
	UpstreamRedis     Upstream = "redis"
)

// Error is the tagged error every adapter returns. Upstream is set at the
// point of failure so nothing downstream has to sniff message text.
type Error struct {
	Kind     Kind
	Upstream Upstream
	// Status is the remote HTTP status when one was received.
	Status  int
	Code    string
	Message string
	Err     error
	// Details carries structured context for the response body.
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Upstream != UpstreamNone {
		return fmt.Sprintf("%s: %s", e.Upstream, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusCode reports the remote status, or 0 when none was received.
func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}

// Is matches on Kind so errors.Is(err, apierr.Timeout) style checks work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return t.Kind == e.Kind && t.Upstream == UpstreamNone && t.Message == "" && t.Err == nil
}

func (e *Error) WithDetail(key string, val any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = val
	return e
}

func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Sentinels for errors.Is.
var (
	Validation          = &Error{Kind: KindValidation}
	UpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	UpstreamRejected    = &Error{Kind: KindUpstreamRejected}
	UpstreamConflict    = &Error{Kind: KindUpstreamConflict}
	Timeout             = &Error{Kind: KindTimeout}
	IncompleteArtifact  = &Error{Kind: KindIncompleteArtifact}
	PartialWriteFailure = &Error{Kind: KindPartialWriteFailure}
	NotFound            = &Error{Kind: KindNotFound}
)

func New(kind Kind, upstream Upstream, msg string, err error) *Error {
	return &Error{Kind: kind, Upstream: upstream, Message: msg, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unavailable(upstream Upstream, msg string, err error) *Error {
	return New(KindUpstreamUnavailable, upstream, msg, err)
}

func Rejected(upstream Upstream, status int, msg string, err error) *Error {
	e := New(KindUpstreamRejected, upstream, msg, err)
	e.Status = status
	return e
}

func Conflict(upstream Upstream, msg string, err error) *Error {
	return New(KindUpstreamConflict, upstream, msg, err)
}

func TimedOut(upstream Upstream, msg string, err error) *Error {
	return New(KindTimeout, upstream, msg, err)
}

func NotFoundf(upstream Upstream, format string, args ...any) *Error {
	return New(KindNotFound, upstream, fmt.Sprintf(format, args...), nil)
}

// As extracts the tagged error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for untagged errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// UpstreamOf returns the upstream of err, UpstreamNone for untagged errors.
func UpstreamOf(err error) Upstream {
	if e, ok := As(err); ok {
		return e.Upstream
	}
	return UpstreamNone
}

// HTTPStatus maps a kind onto the status this service answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
