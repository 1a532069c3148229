package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/witness/internal/capture"
	"github.com/soyeahso/witness/internal/domain"
)

// Tool names.
const (
	ToolRecord  = "witness/record"
	ToolReplay  = "witness/replay"
	ToolInspect = "witness/inspect"
	ToolList    = "witness/list"
)

var headerMap = &Items{Type: "string"}

func tools() []Tool {
	return []Tool{
		{
			Name:        ToolRecord,
			Description: "Send an HTTP request to a target and store the request/response pair under a deterministic witness id.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"target": {
						Type:        "string",
						Description: "Base URL of the system under test (e.g. http://localhost:8080)",
					},
					"method": {
						Type:        "string",
						Description: "HTTP method",
						Enum:        domain.Methods,
					},
					"path": {
						Type:        "string",
						Description: "Request path, optionally with a query string (e.g. /api/users?page=2)",
					},
					"headers": {
						Type:                 "object",
						Description:          "Request headers",
						AdditionalProperties: headerMap,
					},
					"body": {
						Description: "Request body for POST, PUT and PATCH. Objects are sent as JSON, strings verbatim.",
					},
					"options": {
						Type:        "object",
						Description: "Recording options",
						Properties: map[string]Property{
							"tag": {
								Type:        "string",
								Description: "Leading witness id segment; must not contain '_', '/' or '\\'",
								Default:     capture.DefaultTag,
							},
							"sessionId": {
								Type:        "string",
								Description: "Session to attach to (default: session-YYYY-MM-DD, UTC)",
							},
							"description": {
								Type:        "string",
								Description: "Free-text note stored with the interaction",
							},
							"sessionDescription": {
								Type:        "string",
								Description: "Description given to the session if this call creates it",
							},
							"timeoutMs": {
								Type:        "integer",
								Description: "Request timeout in milliseconds",
							},
							"followRedirects": {
								Type:        "boolean",
								Description: "Follow HTTP redirects (default: true)",
							},
						},
					},
				},
				Required: []string{"target", "method", "path"},
			},
		},
		{
			Name:        ToolReplay,
			Description: "Resend a stored request to another target and store the new exchange.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"witnessId": {
						Type:        "string",
						Description: "Witness id of the interaction to replay",
					},
					"target": {
						Type:        "string",
						Description: "Base URL to replay against",
					},
					"options": {
						Type:        "object",
						Description: "Replay options",
						Properties: map[string]Property{
							"tag": {
								Type:        "string",
								Description: "Tag for the replayed interaction (default: replay-<original tag>)",
							},
							"sessionId": {
								Type:        "string",
								Description: "Only look for the original in this session; the replay is stored there too (default: the original's session)",
							},
							"overrideHeaders": {
								Type:                 "object",
								Description:          "Headers replacing the original's, matched case-insensitively",
								AdditionalProperties: headerMap,
							},
						},
					},
				},
				Required: []string{"witnessId", "target"},
			},
		},
		{
			Name:        ToolInspect,
			Description: "Return a stored interaction in full.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"witnessId": {
						Type:        "string",
						Description: "Witness id to look up",
					},
					"sessionId": {
						Type:        "string",
						Description: "Only look in this session",
					},
				},
				Required: []string{"witnessId"},
			},
		},
		{
			Name:        ToolList,
			Description: "List sessions, or the interactions of one session, newest first.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sessionId": {
						Type:        "string",
						Description: "List this session's interactions instead of sessions",
					},
					"limit": {
						Type:        "integer",
						Description: "Maximum entries to return",
						Default:     capture.DefaultListLimit,
					},
				},
				Required: []string{},
			},
		},
	}
}

type inspectArgs struct {
	WitnessID string `json:"witnessId"`
	SessionID string `json:"sessionId"`
}

// errInvalidParams marks argument payloads that do not decode.
type errInvalidParams struct{ err error }

func (e errInvalidParams) Error() string { return e.err.Error() }

// callTool runs one tool. Decoding failures come back as errInvalidParams;
// operation failures are returned as plain errors for the caller to wrap
// into an error result.
func (s *Server) callTool(ctx context.Context, name string, raw json.RawMessage) (interface{}, error) {
	switch name {
	case ToolRecord:
		var in capture.RecordInput
		if err := decodeArgs(raw, &in); err != nil {
			return nil, err
		}
		return s.svc.Record(ctx, in)
	case ToolReplay:
		var in capture.ReplayInput
		if err := decodeArgs(raw, &in); err != nil {
			return nil, err
		}
		return s.svc.Replay(ctx, in)
	case ToolInspect:
		var in inspectArgs
		if err := decodeArgs(raw, &in); err != nil {
			return nil, err
		}
		if in.WitnessID == "" {
			return nil, fmt.Errorf("%w: witnessId is required", domain.ErrInvalidArgument)
		}
		return s.svc.Inspect(ctx, in.WitnessID, in.SessionID)
	case ToolList:
		var in capture.ListInput
		if err := decodeArgs(raw, &in); err != nil {
			return nil, err
		}
		return s.svc.List(ctx, in)
	default:
		return nil, errUnknownTool(name)
	}
}

type errUnknownTool string

func (e errUnknownTool) Error() string { return "Tool not found: " + string(e) }

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidParams{err}
	}
	return nil
}

func textResult(v interface{}) ToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err)
	}
	return ToolResult{Content: []ContentItem{{Type: "text", Text: string(data)}}}
}

func errorResult(err error) ToolResult {
	data, _ := json.Marshal(ToolError{Error: err.Error(), Kind: domain.Kind(err)})
	return ToolResult{
		Content: []ContentItem{{Type: "text", Text: string(data)}},
		IsError: true,
	}
}
