package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/witness/internal/capture"
)

func newRecordCmd() *cobra.Command {
	var (
		headers     []string
		body        string
		tag         string
		session     string
		description string
		timeoutMs   int
		noFollow    bool
	)

	cmd := &cobra.Command{
		Use:   "record <target> <method> <path>",
		Short: "Execute a request and record the interaction",
		Example: `  witness record https://api.example.com GET /users --tag smoke --session auth-flow
  witness record http://localhost:8080 POST /login -H "Content-Type: application/json" --body '{"user":"a"}'
  witness record http://localhost:8080 PUT /avatar --body @avatar.json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			payload, err := parseBody(body)
			if err != nil {
				return err
			}

			in := capture.RecordInput{
				Target:  args[0],
				Method:  strings.ToUpper(args[1]),
				Path:    args[2],
				Headers: hdrs,
				Body:    payload,
				Options: capture.RecordOptions{
					Tag:         tag,
					SessionID:   session,
					Description: description,
					TimeoutMs:   timeoutMs,
				},
			}
			if noFollow {
				follow := false
				in.Options.FollowRedirects = &follow
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.Record(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	cmd.Flags().StringVar(&body, "body", "", "request body; JSON is sent as JSON, @file reads a file")
	cmd.Flags().StringVar(&tag, "tag", "", "witness id tag (default \"interaction\")")
	cmd.Flags().StringVar(&session, "session", "", "session id (default session-YYYY-MM-DD, UTC)")
	cmd.Flags().StringVar(&description, "description", "", "free-text description stored with the interaction")
	cmd.Flags().IntVar(&timeoutMs, "timeout-ms", 0, "request timeout in milliseconds (default from config)")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "do not follow redirects")

	return cmd
}

func newReplayCmd() *cobra.Command {
	var (
		headers []string
		tag     string
		session string
	)

	cmd := &cobra.Command{
		Use:     "replay <witness-id> <target>",
		Short:   "Re-send a recorded request against another target",
		Example: `  witness replay smoke_GET_api-users_00000000_20260208T1430 http://localhost:8080 -H "Authorization: Bearer dev"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hdrs, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			in := capture.ReplayInput{
				WitnessID: args[0],
				Target:    args[1],
				Options: capture.ReplayOptions{
					Tag:             tag,
					SessionID:       session,
					OverrideHeaders: hdrs,
				},
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.Replay(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `override header as "Name: value" (repeatable)`)
	cmd.Flags().StringVar(&tag, "tag", "", "tag for the replay's witness id (default \"replay-<original tag>\")")
	cmd.Flags().StringVar(&session, "session", "", "only look for the original in this session, and store the replay there")

	return cmd
}

func newInspectCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "inspect <witness-id>",
		Short: "Print a stored interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				i, err := a.svc.Inspect(ctx, args[0], session)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), i)
			})
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "only look in this session")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		session string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, or the interactions of one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.svc.List(ctx, capture.ListInput{SessionID: session, Limit: limit})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "list the interactions of this session")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (default 50)")
	return cmd
}

// parseHeaders turns "Name: value" pairs into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseBody reads @file references and decodes JSON documents so they are
// sent and hashed as structured bodies. Anything else is sent verbatim.
func parseBody(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		data, err = os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
	}

	if json.Valid(data) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v, nil
		}
	}
	return string(data), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
