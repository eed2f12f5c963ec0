package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/darx-site-generator/internal/platform/apierr"
)

// DefaultTimeout bounds a single remote call when the adapter sets none.
const DefaultTimeout = 30 * time.Second

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is a non-2xx reply with its body kept for diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, Truncate(e.Body, 300))
}

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// NewClient returns an http.Client whose overall timeout is d, DefaultTimeout when d <= 0.
func NewClient(d time.Duration) *http.Client {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &http.Client{Timeout: d}
}

// Do performs req and reads the whole body. Non-2xx replies come back as *StatusError
// together with the body so callers can inspect it.
func Do(client *http.Client, req *http.Request) (*http.Response, []byte, error) {
	if client == nil {
		client = NewClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func IsUnavailableHTTPStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// Classify tags a transport or status failure from upstream. Timeouts become
// KindTimeout, 5xx/429 and transport errors KindUpstreamUnavailable, other 4xx
// KindUpstreamRejected.
func Classify(upstream apierr.Upstream, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	if IsTimeout(err) {
		return apierr.TimedOut(upstream, op, err)
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		if IsUnavailableHTTPStatus(code) {
			e := apierr.Unavailable(upstream, op, err)
			e.Status = code
			return e
		}
		if code == http.StatusNotFound {
			e := apierr.New(apierr.KindNotFound, upstream, op, err)
			e.Status = code
			return e
		}
		return apierr.Rejected(upstream, code, op, err)
	}
	return apierr.Unavailable(upstream, op, err)
}

// StatusOf returns the remote status carried by err, or 0.
func StatusOf(err error) int {
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// BodyOf returns the response body carried by a *StatusError.
func BodyOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Body
	}
	return ""
}

func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// AlreadyExists reports whether a rejection body reads like a duplicate-resource error.
func AlreadyExists(err error) bool {
	body := strings.ToLower(BodyOf(err))
	if body == "" && err != nil {
		body = strings.ToLower(err.Error())
	}
	return strings.Contains(body, "already exists") || strings.Contains(body, "name already exists")
}
