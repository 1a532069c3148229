// Package capture records live HTTP interactions and replays stored ones
// against new targets. Every call runs sequentially against the executor and
// the store; the service itself holds no lock, so concurrent calls touching
// the same session can lose a session counter update.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/executor"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/soyeahso/witness/internal/store"
)

const (
	// DefaultTag names recorded interactions that carry no tag.
	DefaultTag = "interaction"
	// DefaultListLimit caps List when no limit is given.
	DefaultListLimit = 50
)

// Executor sends one request. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, call executor.Call) (executor.Result, error)
}

// Service orchestrates record, replay and the read operations.
type Service struct {
	exec  Executor
	store store.Store
	hooks *hooks.Manager
	now   func() time.Time
	log   *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the capture clock. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHooks emits interaction events on hm.
func WithHooks(hm *hooks.Manager) Option {
	return func(s *Service) { s.hooks = hm }
}

// New creates a Service.
func New(exec Executor, st store.Store, log *logging.Logger, opts ...Option) *Service {
	s := &Service{
		exec:  exec,
		store: st,
		now:   time.Now,
		log:   log.Sub("capture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attach adds one interaction to its session, creating the session on first
// use. The description only applies to a new session.
func (s *Service) attach(ctx context.Context, i domain.Interaction, description string) (domain.Session, error) {
	sess, err := s.store.GetSession(ctx, i.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		sess, err = domain.NewSession(i.SessionID, i.Timestamp, description)
		if err == nil {
			s.log.Info().Str("sessionId", sess.ID).Msg("session created")
		}
	}
	if err != nil {
		return domain.Session{}, err
	}
	sess = sess.WithInteraction(i.Metadata.Tags)
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *Service) emit(ctx context.Context, event string, i domain.Interaction, extra map[string]any) {
	if s.hooks == nil {
		return
	}
	data := map[string]any{
		"witnessId":  i.ID.Value,
		"sessionId":  i.SessionID,
		"method":     i.Request.Method,
		"url":        i.Request.URL,
		"path":       i.Request.Path,
		"statusCode": i.Response.StatusCode,
		"durationMs": i.Response.DurationMs,
		"tags":       i.Metadata.Tags,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.hooks.Emit(ctx, event, data)
}
