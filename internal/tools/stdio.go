package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
)

// toolsList is a builtin that returns the catalog instead of running a tool.
const toolsList = "tools_list"

type toolRequest struct {
	ID   any            `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type toolResponse struct {
	ID     any        `json:"id,omitempty"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

// Stdio serves tool calls over a newline-delimited JSON stream, one request
// object per line, one response object per line.
type Stdio struct {
	registry *Registry
	log      *slog.Logger
}

func NewStdio(registry *Registry, log *slog.Logger) *Stdio {
	if log == nil {
		log = slog.Default()
	}
	return &Stdio{registry: registry, log: log}
}

// Serve reads requests from r until EOF or context cancellation and writes
// one response per request to w.
func (s *Stdio) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	decoder := json.NewDecoder(bufio.NewReader(r))
	writer := bufio.NewWriter(w)
	encoder := json.NewEncoder(writer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var req toolRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		resp := s.handle(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
}

func (s *Stdio) handle(ctx context.Context, req toolRequest) toolResponse {
	resp := toolResponse{ID: req.ID}

	if req.Tool == toolsList {
		resp.OK = true
		resp.Result = map[string]any{"tools": s.registry.Defs()}
		return resp
	}

	result, err := s.registry.Call(ctx, req.Tool, req.Args)
	if err != nil {
		toolErr := asToolError(err)
		s.log.Warn("tool call failed", "tool", req.Tool, "code", toolErr.Code, "error", toolErr.Message)
		resp.Error = &toolErr
		return resp
	}

	resp.OK = true
	resp.Result = result
	return resp
}

func asToolError(err error) ToolError {
	var toolErr ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	return ToolError{Code: ErrorInternal, Message: err.Error()}
}
