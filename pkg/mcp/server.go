// Package mcp exposes the selection engine as an MCP server with three
// tools: detect, answer and finalize.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/version"
)

// Server implements the MCP server for ruler.
type Server struct {
	engine   *engine.Engine
	server   *mcp.Server
	sessions *SessionStore
	tracer   trace.Tracer
	address  string
	root     string
}

// ServerOpt configures a [Server].
type ServerOpt func(*serverOptions)

type serverOptions struct {
	sessionLimit int
}

// WithSessionLimit sets how many sessions are kept. See
// [DefaultSessionLimit].
func WithSessionLimit(n int) ServerOpt {
	return func(o *serverOptions) { o.sessionLimit = n }
}

// NewServer creates a new MCP server instance. Relative tool paths are
// resolved against root, and tools only read projects within it.
func NewServer(address string, eng *engine.Engine, root string, opts ...ServerOpt) (*Server, error) {
	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	sessions, err := NewSessionStore(o.sessionLimit)
	if err != nil {
		return nil, err
	}

	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	mcpServer := mcp.NewServer(impl, &mcp.ServerOptions{
		Instructions: instructions,
	})

	s := &Server{
		address:  address,
		server:   mcpServer,
		engine:   eng,
		sessions: sessions,
		root:     root,
		tracer:   otel.Tracer("github.com/macropower/ruler/pkg/mcp"),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, detectTool(), WithTracing(s.tracer, s.handleDetect))
	mcp.AddTool(s.server, answerTool(), WithTracing(s.tracer, s.handleAnswer))
	mcp.AddTool(s.server, finalizeTool(), WithTracing(s.tracer, s.handleFinalize))
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

// Sessions returns the sessions started by the detect tool.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Serve starts the MCP server. Without an address, it serves on stdio.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server",
		slog.String("address", s.address),
		slog.String("root", s.root),
	)

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve Stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		//nolint:contextcheck // Shutdown outlives the canceled context.
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "shut down MCP server", slog.Any("err", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)
	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
