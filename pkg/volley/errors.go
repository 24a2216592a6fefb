package volley

import (
	"errors"
	"fmt"
)

// ErrMisalignedInputs is returned when the number of URLs and payloads
// cannot be reconciled by broadcasting.
var ErrMisalignedInputs = errors.New("number of urls does not match number of payloads")

// RequestError is the terminal failure of a single request. It is
// returned as a value inside the batch results, never raised: one bad
// request cannot abort the batch. The request's url, method and payload
// are echoed for diagnostics.
type RequestError struct {
	URL     string
	Method  string
	Payload any
	Err     error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s %s failed: %v", e.Method, e.URL, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusError marks a response whose status code was treated as a
// failure because RaiseOnErrorStatus is set. It is terminal: error
// statuses are never retried.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("error status %d %s for %s", e.StatusCode, e.Status, e.URL)
}

func misalignedError(urls, payloads int) error {
	return fmt.Errorf("%w: %d != %d", ErrMisalignedInputs, urls, payloads)
}
