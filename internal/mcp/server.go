package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/soyeahso/witness/internal/capture"
	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/soyeahso/witness/internal/version"
)

const maxLineBytes = 1024 * 1024

// Service is the operation surface exposed as tools. *capture.Service
// satisfies it.
type Service interface {
	Record(ctx context.Context, in capture.RecordInput) (capture.RecordResult, error)
	Replay(ctx context.Context, in capture.ReplayInput) (capture.ReplayResult, error)
	Inspect(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error)
	List(ctx context.Context, in capture.ListInput) (capture.ListResult, error)
}

// Server dispatches JSON-RPC messages. Handle is safe for concurrent use.
type Server struct {
	svc Service
	log *logging.Logger
}

// NewServer creates a dispatcher over svc.
func NewServer(svc Service, log *logging.Logger) *Server {
	return &Server{svc: svc, log: log.Sub("mcp")}
}

// Serve reads one JSON-RPC message per line from r and writes responses to w
// until r is exhausted or ctx is cancelled. Messages are handled in order.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		// Increase buffer size for large inputs
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, maxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := make([]byte, len(line))
			copy(msg, line)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.log.Info().Msg("listening for requests on stdin")
	out := bufio.NewWriter(w)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("server shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				s.log.Info().Msg("input closed, server shutting down")
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading requests: %w", err)
					}
				default:
				}
				return nil
			}
			resp := s.Handle(ctx, line)
			if resp == nil {
				continue
			}
			if _, err := out.Write(append(resp, '\n')); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// Handle processes one JSON-RPC message and returns the encoded response,
// or nil for notifications.
func (s *Server) Handle(ctx context.Context, msg []byte) []byte {
	var req JSONRPCRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		s.log.Warn().Err(err).Msg("parse error")
		return s.errorResponse(nil, CodeParseError, "Parse error", err.Error())
	}
	if req.Method == "" {
		return s.errorResponse(req.ID, CodeInvalidRequest, "Invalid Request", "method is required")
	}

	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("handling request")

	if req.ID == nil {
		// Notifications get no response.
		s.log.Debug().Str("method", req.Method).Msg("notification received")
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.response(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities: Capabilities{
				Tools: map[string]interface{}{},
			},
			ServerInfo: ServerInfo{
				Name:    ServerName,
				Version: version.Version,
			},
		})
	case "ping":
		return s.response(req.ID, struct{}{})
	case "tools/list":
		return s.response(req.ID, ListToolsResult{Tools: tools()})
	case "tools/call":
		return s.handleCallTool(ctx, req)
	default:
		s.log.Warn().Str("method", req.Method).Msg("unknown method")
		return s.errorResponse(req.ID, CodeMethodNotFound, "Method not found", fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) handleCallTool(ctx context.Context, req JSONRPCRequest) []byte {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.log.Warn().Err(err).Msg("invalid params")
		return s.errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	}

	s.log.Info().Str("tool", params.Name).Msg("calling tool")

	result, err := s.callTool(ctx, params.Name, params.Arguments)
	var unknown errUnknownTool
	var badArgs errInvalidParams
	switch {
	case errors.As(err, &unknown):
		return s.errorResponse(req.ID, CodeInvalidParams, "Unknown tool", err.Error())
	case errors.As(err, &badArgs):
		return s.errorResponse(req.ID, CodeInvalidParams, "Invalid params", err.Error())
	case err != nil:
		s.log.Warn().Err(err).Str("tool", params.Name).Str("kind", domain.Kind(err)).Msg("tool failed")
		return s.response(req.ID, errorResult(err))
	}
	return s.response(req.ID, textResult(result))
}

func (s *Server) response(id interface{}, result interface{}) []byte {
	data, err := json.Marshal(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
	if err != nil {
		s.log.Error().Err(err).Msg("marshaling response")
		return s.errorResponse(id, CodeInternalError, "Internal error", err.Error())
	}
	return data
}

func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) []byte {
	out, err := json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
	if err != nil {
		// Only data can fail to encode; drop it.
		out, _ = json.Marshal(JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &RPCError{Code: code, Message: message},
		})
	}
	return out
}
