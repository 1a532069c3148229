package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/witness/internal/witnessid"
)

// Metadata annotates an interaction. ChainStep and ChainID are reserved for
// multi-step scenarios and are not set by record or replay.
type Metadata struct {
	Tags               []string `json:"tags"`
	Description        string   `json:"description,omitempty"`
	OpenAPIOperationID string   `json:"openApiOperationId,omitempty"`
	ChainStep          *int     `json:"chainStep,omitempty"`
	ChainID            string   `json:"chainId,omitempty"`
}

// NewMetadata builds metadata with an ordered, duplicate-free tag list.
// Blank tags are dropped.
func NewMetadata(description string, tags ...string) Metadata {
	return Metadata{
		Tags:        MergeTags(nil, tags),
		Description: description,
	}
}

// MergeTags appends the tags in add that are not already in base, keeping
// first-seen order. base is not modified.
func MergeTags(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, t := range list {
			if strings.TrimSpace(t) == "" || slices.Contains(out, t) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// Interaction is one captured request/response pair. It is a value: record
// and replay build new interactions rather than changing existing ones.
type Interaction struct {
	ID        witnessid.ID `json:"witnessId"`
	SessionID string       `json:"sessionId"`
	Timestamp time.Time    `json:"timestamp"`
	Request   HTTPRequest  `json:"request"`
	Response  HTTPResponse `json:"response"`
	Metadata  Metadata     `json:"metadata"`
}

// NewInteraction validates and assembles an interaction. The timestamp is
// normalised to UTC.
func NewInteraction(id witnessid.ID, sessionID string, at time.Time, req HTTPRequest, resp HTTPResponse, meta Metadata) (Interaction, error) {
	if id.IsZero() {
		return Interaction{}, fmt.Errorf("%w: witness id is required", ErrInvalidArgument)
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return Interaction{}, err
	}
	if err := resp.Validate(); err != nil {
		return Interaction{}, err
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return Interaction{
		ID:        id,
		SessionID: sessionID,
		Timestamp: at.UTC(),
		Request:   req,
		Response:  resp,
		Metadata:  meta,
	}, nil
}

// WithMetadata returns a copy of i carrying meta.
func (i Interaction) WithMetadata(meta Metadata) Interaction {
	i.Metadata = meta
	return i
}
