package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ReviewForge/internal/domain"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

const defaultDocumentName = "document.txt"

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.reviewDocumentTool(),
		s.getRunTool(),
		s.listRunsTool(),
	)
}

func (s *Server) reviewDocumentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("review_document",
		mcplib.WithDescription("Draft a falsity chart for a complaint and refine it through critique until approved or the iteration budget is spent"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("Full plain text of the complaint"),
		),
		mcplib.WithString("name",
			mcplib.Description("Document name recorded with the run"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleReviewDocument}
}

func (s *Server) getRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_run",
		mcplib.WithDescription("Get an archived review run by ID, including its final chart and history"),
		mcplib.WithString("run_id",
			mcplib.Required(),
			mcplib.Description("The run ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetRun}
}

func (s *Server) listRunsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_runs",
		mcplib.WithDescription("List recent review runs, newest first"),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of runs to return"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListRuns}
}

func (s *Server) handleReviewDocument(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviewer == nil || s.deps.Ingester == nil {
		return mcplib.NewToolResultError("reviewer not configured"), nil
	}
	args := req.GetArguments()
	text, ok := args["text"].(string)
	if !ok || text == "" {
		return mcplib.NewToolResultError("text is required"), nil
	}
	name, _ := args["name"].(string)
	if name == "" {
		name = defaultDocumentName
	}

	doc, err := s.deps.Ingester.Ingest(ctx, name, "text", []byte(text))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("document rejected", err), nil
	}

	run, err := s.deps.Reviewer.Process(ctx, doc, s.progressNotifier(ctx, req))
	if err != nil {
		if run == nil || !errors.Is(err, domain.ErrLoopFailure) {
			return mcplib.NewToolResultErrorFromErr("review failed", err), nil
		}
		return toolResultJSON(run, true)
	}
	return toolResultJSON(run, false)
}

func (s *Server) handleGetRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviewer == nil {
		return mcplib.NewToolResultError("reviewer not configured"), nil
	}
	runID, ok := req.GetArguments()["run_id"].(string)
	if !ok || runID == "" {
		return mcplib.NewToolResultError("run_id is required"), nil
	}
	run, err := s.deps.Reviewer.Get(ctx, runID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get run %s", runID), err), nil
	}
	return toolResultJSON(run, false)
}

func (s *Server) handleListRuns(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviewer == nil {
		return mcplib.NewToolResultError("reviewer not configured"), nil
	}
	limit := runstore.DefaultListLimit
	if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	runs, err := s.deps.Reviewer.List(ctx, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list runs", err), nil
	}
	return toolResultJSON(runs, false)
}

// progressNotifier relays loop events as MCP progress notifications when
// the caller supplied a progress token.
func (s *Server) progressNotifier(ctx context.Context, req mcplib.CallToolRequest) progress.Sink { //nolint:gocritic // hugeParam: mcp-go request type
	if req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return nil
	}
	srv := mcpserver.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	token := req.Params.Meta.ProgressToken
	var n int
	return progress.Func(func(ctx context.Context, ev revision.Event) {
		n++
		msg := string(ev.Step)
		if ev.Message != "" {
			msg = ev.Message
		}
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      n,
			"message":       msg,
		})
		if err != nil {
			s.log.Debug("mcp progress notification failed", "error", err)
		}
	})
}

func toolResultJSON(v any, isError bool) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	res := mcplib.NewToolResultText(string(data))
	res.IsError = isError
	return res, nil
}
