package capture

import (
	"context"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/executor"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/witnessid"
)

// ReplayInput names a stored interaction and the target to resend it to.
type ReplayInput struct {
	WitnessID string        `json:"witnessId" validate:"required"`
	Target    string        `json:"target" validate:"required,url"`
	Options   ReplayOptions `json:"options"`
}

// ReplayOptions tune one replay call.
type ReplayOptions struct {
	Tag             string            `json:"tag,omitempty" validate:"omitempty,idsegment"`
	SessionID       string            `json:"sessionId,omitempty" validate:"omitempty,sessionid"`
	OverrideHeaders map[string]string `json:"overrideHeaders,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

// ReplayResult reports a stored replay.
type ReplayResult struct {
	OriginalWitnessID string `json:"originalWitnessId"`
	ReplayWitnessID   string `json:"replayWitnessId"`
	SessionID         string `json:"sessionId"`
	StatusCode        int    `json:"statusCode"`
	DurationMs        int64  `json:"durationMs"`
	ResponseBody      any    `json:"responseBody,omitempty"`
	Stored            bool   `json:"stored"`
}

// Replay resends a stored request to a new target and stores the outcome as
// a new interaction. Nothing is sent when the original cannot be found.
func (s *Service) Replay(ctx context.Context, in ReplayInput) (ReplayResult, error) {
	if err := validateInput(in); err != nil {
		return ReplayResult{}, err
	}
	if _, err := witnessid.Parse(in.WitnessID); err != nil {
		return ReplayResult{}, err
	}

	original, err := s.findOriginal(ctx, in.WitnessID, in.Options.SessionID)
	if err != nil {
		return ReplayResult{}, err
	}

	req := original.Request
	res, err := s.exec.Execute(ctx, executor.Call{
		Target:  in.Target,
		Method:  req.Method,
		Path:    req.Path,
		Headers: domain.MergeHeaders(req.Headers, in.Options.OverrideHeaders),
		Body:    req.Body,
	})
	if err != nil {
		return ReplayResult{}, err
	}

	capturedAt := s.now().UTC()
	tag := in.Options.Tag
	if tag == "" {
		tag = replayTag(original)
	}
	id, err := witnessid.GenerateAt(capturedAt, tag, req.Method, req.Path, req.Body)
	if err != nil {
		return ReplayResult{}, err
	}

	sessionID := in.Options.SessionID
	if sessionID == "" {
		sessionID = original.SessionID
	}

	i, err := domain.NewInteraction(id, sessionID, capturedAt, res.Request, res.Response,
		domain.NewMetadata("Replay of "+original.ID.Value, tag))
	if err != nil {
		return ReplayResult{}, err
	}
	if err := s.store.SaveInteraction(ctx, i); err != nil {
		return ReplayResult{}, err
	}
	if _, err := s.attach(ctx, i, ""); err != nil {
		return ReplayResult{}, err
	}

	s.log.Info().
		Str("originalWitnessId", original.ID.Value).
		Str("witnessId", id.Value).
		Str("sessionId", sessionID).
		Str("target", in.Target).
		Int("status", res.Response.StatusCode).
		Msg("interaction replayed")
	s.emit(ctx, hooks.EventInteractionReplayed, i, map[string]any{
		"originalWitnessId": original.ID.Value,
	})

	return ReplayResult{
		OriginalWitnessID: original.ID.Value,
		ReplayWitnessID:   id.Value,
		SessionID:         sessionID,
		StatusCode:        res.Response.StatusCode,
		DurationMs:        res.DurationMs,
		ResponseBody:      res.Response.Body,
		Stored:            true,
	}, nil
}

// findOriginal looks only in the named session when one is given, otherwise
// in every session.
func (s *Service) findOriginal(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error) {
	return s.store.GetInteraction(ctx, witnessID, sessionID)
}

// replayTag derives "replay-<first original tag>".
func replayTag(original domain.Interaction) string {
	if len(original.Metadata.Tags) > 0 {
		return "replay-" + original.Metadata.Tags[0]
	}
	return "replay-" + DefaultTag
}
