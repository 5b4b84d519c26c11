// Package mcp exposes the diagram pipeline as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/matzehuels/text2block/pkg/buildinfo"
	"github.com/matzehuels/text2block/pkg/pipeline"
)

// Tool names.
const (
	ToolGenerate = "text2block.generate"
	ToolRender   = "text2block.render"
)

// Deps holds the dependencies of a [Server].
type Deps struct {
	Runner *pipeline.Runner

	// Logger must not write to stdout, which carries the protocol.
	Logger *log.Logger
}

// Server wraps an MCP server with the text2block tool handlers.
type Server struct {
	runner    *pipeline.Runner
	logger    *log.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a server with every tool registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	s := &Server{runner: deps.Runner, logger: logger}

	mcpSrv := server.NewMCPServer(
		"text2block",
		buildinfo.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("text2block turns a natural-language description into a Graphviz diagram. Use text2block.generate to create a diagram with an explanation, and text2block.render to render DOT source you already have."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve runs the stdio transport until ctx is canceled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server for tests or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: generateTool(), Handler: s.handleGenerate},
		{Tool: renderTool(), Handler: s.handleRender},
	}
}

func generateTool() mcp.Tool {
	return mcp.NewTool(ToolGenerate,
		mcp.WithDescription("Generate a diagram from a natural-language description. Returns the rendered image and an explanation"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What the diagram should show")),
		mcp.WithBoolean("refresh", mcp.Description("Ignore a cached result for the same prompt")),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool(ToolRender,
		mcp.WithDescription("Render Graphviz DOT source without calling a language model. Returns the rendered image, or the engine diagnostic when the source is rejected"),
		mcp.WithString("source", mcp.Required(), mcp.Description("DOT source; text before the first graph keyword is ignored")),
	)
}
