package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/ReviewForge/internal/port/runstore"
)

const runsResourceURI = "reviewforge://runs"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			runsResourceURI,
			"Recent Runs",
			mcplib.WithResourceDescription("The most recent review runs, newest first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRunsResource,
	)
}

func (s *Server) handleRunsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text := `{"error":"reviewer not configured"}`
	if s.deps.Reviewer != nil {
		runs, err := s.deps.Reviewer.List(ctx, runstore.DefaultListLimit)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(runs)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
