package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidMethod is returned when a method is outside the supported set.
var ErrInvalidMethod = errors.New("unsupported HTTP method")

// methods is the closed set of supported verbs.
var methods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodOptions: {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
}

// Methods returns the supported HTTP methods.
func Methods() []string {
	return []string{
		http.MethodGet,
		http.MethodOptions,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
}

// NormalizeMethod upper-cases m and validates it against the supported
// set. It wraps ErrInvalidMethod on failure.
func NormalizeMethod(m string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(m))
	if _, ok := methods[upper]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)",
			ErrInvalidMethod, m, strings.Join(Methods(), ", "))
	}
	return upper, nil
}

// AllowsBody reports whether payloads are conventionally attached to
// requests with this method.
func AllowsBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
