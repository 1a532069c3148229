package capture

import (
	"context"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/executor"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/witnessid"
)

// RecordInput describes a live request to capture.
type RecordInput struct {
	Target  string            `json:"target" validate:"required,url"`
	Method  string            `json:"method" validate:"required,httpmethod"`
	Path    string            `json:"path" validate:"required,nonblank"`
	Headers map[string]string `json:"headers,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
	Body    any               `json:"body,omitempty"`
	Options RecordOptions     `json:"options"`
}

// RecordOptions tune one record call.
type RecordOptions struct {
	Tag                string `json:"tag,omitempty" validate:"omitempty,idsegment"`
	SessionID          string `json:"sessionId,omitempty" validate:"omitempty,sessionid"`
	Description        string `json:"description,omitempty"`
	SessionDescription string `json:"sessionDescription,omitempty"`
	TimeoutMs          int    `json:"timeoutMs,omitempty" validate:"gte=0"`
	FollowRedirects    *bool  `json:"followRedirects,omitempty"`
}

// RecordResult reports a stored recording.
type RecordResult struct {
	WitnessID       string            `json:"witnessId"`
	SessionID       string            `json:"sessionId"`
	StatusCode      int               `json:"statusCode"`
	DurationMs      int64             `json:"durationMs"`
	ResponseBody    any               `json:"responseBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	Stored          bool              `json:"stored"`
}

// Record executes the request, stores the exchange under a fresh witness id
// and attaches it to its session.
func (s *Service) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	if err := validateInput(in); err != nil {
		return RecordResult{}, err
	}

	res, err := s.exec.Execute(ctx, executor.Call{
		Target:  in.Target,
		Method:  in.Method,
		Path:    in.Path,
		Headers: in.Headers,
		Body:    in.Body,
		Options: executor.Options{
			TimeoutMs:       in.Options.TimeoutMs,
			FollowRedirects: in.Options.FollowRedirects,
		},
	})
	if err != nil {
		return RecordResult{}, err
	}

	capturedAt := s.now().UTC()
	tag := in.Options.Tag
	if tag == "" {
		tag = DefaultTag
	}
	id, err := witnessid.GenerateAt(capturedAt, tag, in.Method, in.Path, in.Body)
	if err != nil {
		return RecordResult{}, err
	}

	sessionID := in.Options.SessionID
	if sessionID == "" {
		sessionID = domain.DefaultSessionID(capturedAt)
	}

	i, err := domain.NewInteraction(id, sessionID, capturedAt, res.Request, res.Response,
		domain.NewMetadata(in.Options.Description, tag))
	if err != nil {
		return RecordResult{}, err
	}
	if err := s.store.SaveInteraction(ctx, i); err != nil {
		return RecordResult{}, err
	}
	if _, err := s.attach(ctx, i, in.Options.SessionDescription); err != nil {
		return RecordResult{}, err
	}

	s.log.Info().
		Str("witnessId", id.Value).
		Str("sessionId", sessionID).
		Int("status", res.Response.StatusCode).
		Int64("durationMs", res.DurationMs).
		Msg("interaction recorded")
	s.emit(ctx, hooks.EventInteractionRecorded, i, nil)

	return RecordResult{
		WitnessID:       id.Value,
		SessionID:       sessionID,
		StatusCode:      res.Response.StatusCode,
		DurationMs:      res.DurationMs,
		ResponseBody:    res.Response.Body,
		ResponseHeaders: res.Response.Headers,
		Stored:          true,
	}, nil
}
