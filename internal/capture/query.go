package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/witnessid"
)

// Inspect returns one stored interaction. A non-empty sessionID restricts the
// lookup to that session.
func (s *Service) Inspect(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error) {
	if _, err := witnessid.Parse(witnessID); err != nil {
		return domain.Interaction{}, err
	}
	return s.store.GetInteraction(ctx, witnessID, sessionID)
}

// ListInput selects what List returns: sessions when SessionID is empty,
// otherwise that session's interactions.
type ListInput struct {
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,sessionid"`
	Limit     int    `json:"limit,omitempty" validate:"gte=0"`
}

// InteractionSummary is the list view of an interaction.
type InteractionSummary struct {
	WitnessID  string    `json:"witnessId"`
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"statusCode"`
	DurationMs int64     `json:"durationMs"`
	Tags       []string  `json:"tags"`
}

// ListResult holds one page. Count is the page size, Total what is stored.
type ListResult struct {
	SessionID    string               `json:"sessionId,omitempty"`
	Count        int                  `json:"count"`
	Total        int                  `json:"total"`
	Sessions     []domain.Session     `json:"sessions,omitempty"`
	Interactions []InteractionSummary `json:"interactions,omitempty"`
}

// List returns the newest sessions, or the newest interactions of one
// session, capped at Limit (DefaultListLimit when zero).
func (s *Service) List(ctx context.Context, in ListInput) (ListResult, error) {
	if err := validateInput(in); err != nil {
		return ListResult{}, err
	}
	limit := in.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	if in.SessionID == "" {
		sessions, err := s.store.ListSessions(ctx, limit)
		if err != nil {
			return ListResult{}, err
		}
		total, err := s.store.CountSessions(ctx)
		if err != nil {
			return ListResult{}, err
		}
		return ListResult{Count: len(sessions), Total: total, Sessions: sessions}, nil
	}

	list, err := s.store.ListInteractions(ctx, in.SessionID, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing session %s: %w", in.SessionID, err)
	}
	total, err := s.store.CountInteractions(ctx, in.SessionID)
	if err != nil {
		return ListResult{}, err
	}
	summaries := make([]InteractionSummary, 0, len(list))
	for _, i := range list {
		summaries = append(summaries, Summarize(i))
	}
	return ListResult{
		SessionID:    in.SessionID,
		Count:        len(summaries),
		Total:        total,
		Interactions: summaries,
	}, nil
}

// Summarize reduces an interaction to its list view.
func Summarize(i domain.Interaction) InteractionSummary {
	return InteractionSummary{
		WitnessID:  i.ID.Value,
		Timestamp:  i.Timestamp,
		Method:     i.Request.Method,
		Path:       i.Request.Path,
		StatusCode: i.Response.StatusCode,
		DurationMs: i.Response.DurationMs,
		Tags:       i.Metadata.Tags,
	}
}
