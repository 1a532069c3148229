package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSessionID names the session used when the caller gives none:
// session-YYYY-MM-DD for the UTC date of t.
func DefaultSessionID(t time.Time) string {
	return "session-" + t.UTC().Format(time.DateOnly)
}

// ValidateSessionID rejects ids that cannot name a storage namespace.
func ValidateSessionID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: session id is required", ErrInvalidArgument)
	case strings.ContainsAny(id, `/\`), id == ".", id == "..":
		return fmt.Errorf("%w: session id %q must not contain path separators", ErrInvalidArgument, id)
	}
	return nil
}

// Session groups interactions. It tracks how many interactions were attached
// and the union of their tags.
type Session struct {
	ID               string    `json:"sessionId"`
	CreatedAt        time.Time `json:"createdAt"`
	Tags             []string  `json:"tags"`
	InteractionCount int       `json:"interactionCount"`
	Description      string    `json:"description,omitempty"`
}

// NewSession starts an empty session.
func NewSession(id string, createdAt time.Time, description string) (Session, error) {
	if err := ValidateSessionID(id); err != nil {
		return Session{}, err
	}
	return Session{
		ID:          id,
		CreatedAt:   createdAt.UTC(),
		Tags:        []string{},
		Description: description,
	}, nil
}

// WithInteraction returns the session updated for one more attached
// interaction carrying tags.
func (s Session) WithInteraction(tags []string) Session {
	s.InteractionCount++
	s.Tags = MergeTags(s.Tags, tags)
	return s
}
