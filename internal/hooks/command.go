package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/witness/internal/config"
)

// DefaultCommandTimeout bounds a command hook that sets no timeout.
const DefaultCommandTimeout = 10 * time.Second

// RegisterCommands binds every configured shell command to its event.
// Returns the number of handlers registered.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	bindings := []struct {
		event   string
		entries []config.HookEntry
	}{
		{EventInteractionRecorded, cfg.InteractionRecorded},
		{EventInteractionReplayed, cfg.InteractionReplayed},
		{EventServerStart, cfg.ServerStart},
		{EventServerStop, cfg.ServerStop},
	}

	n := 0
	for _, b := range bindings {
		for i, e := range b.entries {
			if strings.TrimSpace(e.Command) == "" {
				continue
			}
			timeout := DefaultCommandTimeout
			if e.Timeout > 0 {
				timeout = time.Duration(e.Timeout) * time.Millisecond
			}
			m.On(b.event, fmt.Sprintf("command[%d]", i), CommandHandler(e.Command, timeout))
			n++
		}
	}
	return n
}

// CommandHandler runs command through sh with the payload JSON on stdin.
// A non-zero exit or a timeout is reported as an error carrying stderr.
func CommandHandler(command string, timeout time.Duration) Handler {
	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(input)
		cmd.Env = append(cmd.Environ(), "WITNESS_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// Children of sh may hold stderr open after the kill.
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", command, timeout)
			}
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("hook %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", command, err)
		}
		return nil
	}
}
