package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a named object does not exist on the hub.
var ErrNotFound = errors.New("not found")

// HTTPStatusError represents a non-2xx response from an Automation Hub call.
// It preserves the status code so callers can tell authentication failures
// (401/403) from other rejections.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.URL == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	msg := e.Detail()
	if msg == "" {
		msg = e.Body
	}
	if msg == "" {
		return fmt.Sprintf("http %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("http %s returned status %d: %s", e.URL, e.StatusCode, msg)
}

// Detail extracts the human readable message from a galaxy error body.
// Both {"detail": "..."} and {"errors": [{"detail": "..."}]} are understood.
func (e *HTTPStatusError) Detail() string {
	if e == nil || e.Body == "" {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	var parts []string
	for _, item := range body.Errors {
		switch {
		case item.Detail != "":
			parts = append(parts, item.Detail)
		case item.Title != "":
			parts = append(parts, item.Title)
		}
	}
	return strings.Join(parts, "; ")
}

// IsUnauthorized reports whether err is a 401 or 403 from the hub.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPStatusError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == 401 || httpErr.StatusCode == 403
}
