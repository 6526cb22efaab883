package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zainbaq/medical-ml/errors"
)

// StatusError is returned for any non-2xx registry response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Detail     string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("registry %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("registry %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
}

// Unwrap maps the status code onto the shared error sentinels so that
// errors.Classify, errors.IsNotFound and friends work on client errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return errors.ErrServiceNotFound
	case e.StatusCode == http.StatusUnprocessableEntity:
		return errors.ErrInvalidRecord
	case e.StatusCode == http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return errors.ErrUnavailable
	default:
		return errors.ErrInvalidData
	}
}

// IsNotFound reports a 404
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// newStatusError reads the detail from the registry's error body. A 422
// detail is a list of field issues, reported as compact JSON.
func newStatusError(method, url string, code int, body []byte) *StatusError {
	se := &StatusError{Method: method, URL: url, StatusCode: code}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return se
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		se.Detail = detail
		return se
	}
	se.Detail = string(payload.Detail)
	return se
}

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	return errors.Classify(err) == errors.ErrorTransient
}
