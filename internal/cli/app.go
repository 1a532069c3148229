package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/witness/internal/capture"
	"github.com/soyeahso/witness/internal/config"
	"github.com/soyeahso/witness/internal/executor"
	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/soyeahso/witness/internal/metrics"
	"github.com/soyeahso/witness/internal/store"
)

// app bundles the components a command runs against.
type app struct {
	store   store.Store
	hooks   *hooks.Manager
	metrics *metrics.Metrics
	svc     *capture.Service
}

func newApp(cfg config.Config, log *logging.Logger) (*app, error) {
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	st, err := store.Open(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	hookMgr := hooks.NewManager(log)
	if n := hooks.RegisterCommands(hookMgr, cfg.Hooks); n > 0 {
		log.Info().Int("count", n).Msg("command hooks registered")
	}

	m := metrics.New()
	m.Attach(hookMgr)

	exec := executor.New(executorConfig(cfg.HTTP), log)
	svc := capture.New(exec, st, log, capture.WithHooks(hookMgr))

	return &app{store: st, hooks: hookMgr, metrics: m, svc: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// executorConfig maps the http config section onto executor settings.
func executorConfig(h config.HTTPConfig) executor.Config {
	return executor.Config{
		Timeout:         time.Duration(h.TimeoutMs) * time.Millisecond,
		FollowRedirects: h.FollowsRedirects(),
		MaxRedirects:    h.MaxRedirects,
		RetryMax:        h.Retries(),
		RetryWaitMin:    time.Duration(h.RetryWaitMinMs) * time.Millisecond,
		RetryWaitMax:    time.Duration(h.RetryWaitMaxMs) * time.Millisecond,
	}
}

// runWithApp builds the app, runs fn under a signal-aware context and
// closes the store afterwards.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}
