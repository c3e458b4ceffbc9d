// Package mcp exposes the review service as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ReviewForge/internal/domain/document"
	"github.com/Strob0t/ReviewForge/internal/domain/revision"
	"github.com/Strob0t/ReviewForge/internal/port/progress"
)

// Reviewer runs and reads review runs.
type Reviewer interface {
	Process(ctx context.Context, doc document.Document, sink progress.Sink) (*revision.Run, error)
	Get(ctx context.Context, id string) (*revision.Run, error)
	List(ctx context.Context, limit int) ([]revision.Run, error)
}

// Ingester turns raw tool input into a validated document.
type Ingester interface {
	Ingest(ctx context.Context, filename, format string, data []byte) (document.Document, error)
}

// ServerConfig holds MCP server identity.
type ServerConfig struct {
	Name    string
	Version string
	APIKey  string // bearer token for the HTTP transport; empty disables auth

	// APIKeySource overrides APIKey and is read on every request.
	APIKeySource func() string
}

// ServerDeps bundles the services the tools call. Nil members make their
// tools report "not configured".
type ServerDeps struct {
	Reviewer Reviewer
	Ingester Ingester
	Logger   *slog.Logger
}

// Server wraps an mcp-go server with the ReviewForge tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	log       *slog.Logger
	mcpServer *mcpserver.MCPServer
}

// NewServer creates the server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// HTTPHandler returns the streamable HTTP transport, behind bearer auth when
// an API key is configured.
func (s *Server) HTTPHandler() http.Handler {
	h := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	if s.cfg.APIKeySource != nil {
		return KeySourceAuthMiddleware(s.cfg.APIKeySource, h)
	}
	return AuthMiddleware(s.cfg.APIKey, h)
}

// ServeStdio serves the protocol on stdin/stdout until EOF or a signal.
func (s *Server) ServeStdio() error {
	s.log.Info("mcp stdio server starting", "name", s.cfg.Name, "version", s.cfg.Version)
	return mcpserver.ServeStdio(s.mcpServer)
}
