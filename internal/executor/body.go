package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/witness/internal/domain"
)

// encodeBody turns a request body into bytes. Strings and byte slices are
// sent verbatim; everything else is JSON.
func encodeBody(body any) ([]byte, bool, error) {
	switch b := body.(type) {
	case string:
		return []byte(b), false, nil
	case []byte:
		return b, false, nil
	case json.RawMessage:
		return b, true, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: body is not serializable: %v", domain.ErrInvalidArgument, err)
	}
	return data, true, nil
}

// decodeBody parses JSON responses and falls back to text. Empty bodies
// decode to nil.
func decodeBody(contentType string, data []byte) any {
	if len(data) == 0 {
		return nil
	}
	if strings.Contains(strings.ToLower(contentType), "json") {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			return v
		}
	}
	return string(data)
}
