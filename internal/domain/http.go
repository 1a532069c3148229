package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Methods lists the HTTP verbs witness records.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// bodyMethods carry a request payload; other verbs are sent without one.
var bodyMethods = []string{"POST", "PUT", "PATCH"}

// IsKnownMethod reports whether m (any case) is in Methods.
func IsKnownMethod(m string) bool {
	return slices.Contains(Methods, strings.ToUpper(m))
}

// CarriesBody reports whether requests with method m send a body.
func CarriesBody(m string) bool {
	return slices.Contains(bodyMethods, strings.ToUpper(m))
}

// HTTPRequest is the request half of an interaction as it was sent.
type HTTPRequest struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Path        string            `json:"path"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
}

// HTTPResponse is the response half of an interaction.
type HTTPResponse struct {
	StatusCode  int               `json:"statusCode"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	DurationMs  int64             `json:"durationMs"`
}

// Validate checks the status code range and duration.
func (r HTTPResponse) Validate() error {
	if r.StatusCode < 100 || r.StatusCode > 599 {
		return fmt.Errorf("%w: status code %d outside [100,599]", ErrInvalidArgument, r.StatusCode)
	}
	if r.DurationMs < 0 {
		return fmt.Errorf("%w: negative duration %dms", ErrInvalidArgument, r.DurationMs)
	}
	return nil
}

// HeaderValue looks up a header case-insensitively.
func HeaderValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// MergeHeaders overlays overrides onto base and returns a new map. Keys
// collide case-insensitively; the override's spelling and value win.
func MergeHeaders(base, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		for existing := range merged {
			if existing != k && strings.EqualFold(existing, k) {
				delete(merged, existing)
			}
		}
		merged[k] = v
	}
	return merged
}
