package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/soyeahso/witness/internal/witnessid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 2, 8, 14, 30, 0, 0, time.UTC)

func testID(t *testing.T) witnessid.ID {
	t.Helper()
	id, err := witnessid.GenerateAt(testTime, "smoke", "GET", "/api/users", nil)
	require.NoError(t, err)
	return id
}

// --- Method tests ---

func TestIsKnownMethod(t *testing.T) {
	for _, m := range []string{"GET", "post", "Put", "PATCH", "delete", "HEAD", "options"} {
		assert.True(t, IsKnownMethod(m), m)
	}
	for _, m := range []string{"", "TRACE", "CONNECT", "FETCH"} {
		assert.False(t, IsKnownMethod(m), m)
	}
}

func TestCarriesBody(t *testing.T) {
	assert.True(t, CarriesBody("post"))
	assert.True(t, CarriesBody("PUT"))
	assert.True(t, CarriesBody("patch"))
	assert.False(t, CarriesBody("GET"))
	assert.False(t, CarriesBody("DELETE"))
}

// --- Header tests ---

func TestMergeHeaders(t *testing.T) {
	merged := MergeHeaders(
		map[string]string{"A": "1"},
		map[string]string{"A": "2", "B": "3"},
	)
	assert.Equal(t, map[string]string{"A": "2", "B": "3"}, merged)
}

func TestMergeHeaders_CaseInsensitiveCollision(t *testing.T) {
	base := map[string]string{"authorization": "Bearer old", "Accept": "text/plain"}
	merged := MergeHeaders(base, map[string]string{"Authorization": "Bearer new"})

	assert.Equal(t, map[string]string{"Authorization": "Bearer new", "Accept": "text/plain"}, merged)
	// base is untouched
	assert.Equal(t, "Bearer old", base["authorization"])
}

func TestMergeHeaders_NilInputs(t *testing.T) {
	assert.Empty(t, MergeHeaders(nil, nil))
	assert.Equal(t, map[string]string{"X": "1"}, MergeHeaders(nil, map[string]string{"X": "1"}))
}

func TestHeaderValue(t *testing.T) {
	h := map[string]string{"content-type": "application/json"}
	v, ok := HeaderValue(h, "Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)

	_, ok = HeaderValue(h, "Accept")
	assert.False(t, ok)
}

// --- Response tests ---

func TestHTTPResponseValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    HTTPResponse
		wantErr bool
	}{
		{"ok", HTTPResponse{StatusCode: 200}, false},
		{"lower bound", HTTPResponse{StatusCode: 100}, false},
		{"upper bound", HTTPResponse{StatusCode: 599}, false},
		{"too low", HTTPResponse{StatusCode: 99}, true},
		{"too high", HTTPResponse{StatusCode: 600}, true},
		{"negative duration", HTTPResponse{StatusCode: 200, DurationMs: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- Metadata tests ---

func TestNewMetadata_DedupesTags(t *testing.T) {
	m := NewMetadata("desc", "x", "y", "x", " ", "z", "y")
	assert.Equal(t, []string{"x", "y", "z"}, m.Tags)
	assert.Equal(t, "desc", m.Description)
	assert.Nil(t, m.ChainStep)
}

func TestMergeTags(t *testing.T) {
	base := []string{"a", "b"}
	merged := MergeTags(base, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)
	assert.Equal(t, []string{"a", "b"}, base)
}

// --- Interaction tests ---

func TestNewInteraction(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	i, err := NewInteraction(testID(t), "session-1", testTime.In(loc),
		HTTPRequest{Method: "GET", URL: "http://x/api/users", Path: "/api/users"},
		HTTPResponse{StatusCode: 204},
		Metadata{})
	require.NoError(t, err)

	assert.Equal(t, "session-1", i.SessionID)
	assert.Equal(t, time.UTC, i.Timestamp.Location())
	assert.True(t, testTime.Equal(i.Timestamp))
	assert.NotNil(t, i.Metadata.Tags)
}

func TestNewInteraction_Invalid(t *testing.T) {
	id := testID(t)
	ok := HTTPResponse{StatusCode: 200}

	_, err := NewInteraction(witnessid.ID{}, "s", testTime, HTTPRequest{}, ok, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewInteraction(id, "", testTime, HTTPRequest{}, ok, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewInteraction(id, "s", testTime, HTTPRequest{}, HTTPResponse{StatusCode: 42}, Metadata{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInteractionWithMetadata(t *testing.T) {
	orig, err := NewInteraction(testID(t), "s", testTime, HTTPRequest{}, HTTPResponse{StatusCode: 200}, NewMetadata("", "a"))
	require.NoError(t, err)

	rebuilt := orig.WithMetadata(NewMetadata("changed", "b"))
	assert.Equal(t, []string{"a"}, orig.Metadata.Tags)
	assert.Equal(t, []string{"b"}, rebuilt.Metadata.Tags)
	assert.Equal(t, orig.ID, rebuilt.ID)
}

func TestInteractionJSON(t *testing.T) {
	step := 2
	i, err := NewInteraction(testID(t), "session-2026-02-08", testTime,
		HTTPRequest{
			Method:  "POST",
			URL:     "http://localhost/api/users",
			Path:    "/api/users",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    map[string]any{"name": "alice"},
		},
		HTTPResponse{StatusCode: 201, Headers: map[string]string{}, Body: "created", DurationMs: 12},
		Metadata{Tags: []string{"smoke"}, ChainStep: &step, ChainID: "c1"},
	)
	require.NoError(t, err)

	data, err := json.Marshal(i)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"witnessId", "sessionId", "timestamp", "request", "response", "metadata"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "smoke_GET_api-users_00000000_20260208T1430", raw["witnessId"])
	meta := raw["metadata"].(map[string]any)
	assert.EqualValues(t, 2, meta["chainStep"])
	assert.NotContains(t, meta, "openApiOperationId")

	var decoded Interaction
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, i, decoded)
}

// --- Session tests ---

func TestDefaultSessionID(t *testing.T) {
	late := time.Date(2026, 2, 8, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	assert.Equal(t, "session-2026-02-09", DefaultSessionID(late))
	assert.Equal(t, "session-2026-02-08", DefaultSessionID(testTime))
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("session-2026-02-08"))
	for _, bad := range []string{"", "  ", "a/b", `a\b`, ".", ".."} {
		assert.ErrorIs(t, ValidateSessionID(bad), ErrInvalidArgument, bad)
	}
}

func TestSessionWithInteraction(t *testing.T) {
	s, err := NewSession("s1", testTime, "")
	require.NoError(t, err)
	assert.Equal(t, 0, s.InteractionCount)
	assert.Empty(t, s.Tags)

	s1 := s.WithInteraction([]string{"x"})
	s2 := s1.WithInteraction([]string{"y", "x"})
	s3 := s2.WithInteraction([]string{"x"})

	assert.Equal(t, 0, s.InteractionCount, "original value unchanged")
	assert.Equal(t, 1, s1.InteractionCount)
	assert.Equal(t, []string{"x", "y"}, s3.Tags)
	assert.Equal(t, 3, s3.InteractionCount)
}

func TestSessionJSON(t *testing.T) {
	s, err := NewSession("s1", testTime, "nightly run")
	require.NoError(t, err)
	s = s.WithInteraction([]string{"smoke"})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"sessionId": "s1",
		"createdAt": "2026-02-08T14:30:00Z",
		"tags": ["smoke"],
		"interactionCount": 1,
		"description": "nightly run"
	}`, string(data))
}

// --- Error kind tests ---

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", ErrInvalidArgument), "invalid_argument"},
		{ErrFormat, "format_error"},
		{fmt.Errorf("%w: x", ErrNotFound), "not_found"},
		{ErrTimeout, "timeout"},
		{ErrCancelled, "cancelled"},
		{ErrNetwork, "network_error"},
		{fmt.Errorf("%w: %w", ErrStorage, errors.New("disk full")), "storage_error"},
		{errors.New("boom"), "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}
