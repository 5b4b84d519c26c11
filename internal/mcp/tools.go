package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/pipeline"
	"github.com/matzehuels/text2block/pkg/render"
)

// handleGenerate runs the full pipeline for a prompt.
func (s *Server) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	dest := render.NewMemoryDestination(ToolGenerate)
	res, err := s.runner.Execute(ctx, pipeline.Options{
		Intent:  prompt,
		Dest:    dest,
		Refresh: req.GetBool("refresh", false),
	})
	if err != nil {
		s.logger.Warn("generate tool failed", "code", errors.GetCode(err), "stage", errors.StageOf(err))
		return toolError(err), nil
	}

	var b strings.Builder
	b.WriteString(res.Explanation.Text())
	fmt.Fprintf(&b, "\n\nRendered in %d attempt(s)", len(res.Attempts))
	if res.Cached {
		b.WriteString(" (cached)")
	}
	if res.RecordID != "" {
		fmt.Fprintf(&b, ", request %s", res.RecordID)
	}
	return imageResult(b.String(), res.Artifact), nil
}

// handleRender sanitizes and renders DOT source once.
func (s *Server) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	out, err := s.runner.Render(ctx, source, render.NewMemoryDestination(ToolRender))
	if err != nil {
		return toolError(err), nil
	}
	return imageResult(out.Description.String(), out.Artifact), nil
}

func imageResult(text string, a *render.Artifact) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
			mcp.NewImageContent(base64.StdEncoding.EncodeToString(a.Data), a.Format.MIMEType()),
		},
	}
}

// toolError reports err as a tool-level error carrying the code, stage and
// last diagnostic, so the calling agent can act on it.
func toolError(err error) *mcp.CallToolResult {
	var b strings.Builder
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	fmt.Fprintf(&b, "%s: %s", code, errors.UserMessage(err))
	if st := errors.StageOf(err); st != "" {
		fmt.Fprintf(&b, "\nstage: %s", st)
	}
	if n := errors.AttemptsOf(err); n > 0 {
		fmt.Fprintf(&b, "\nattempts: %d", n)
	}
	if d := errors.DiagnosticOf(err); d != "" {
		fmt.Fprintf(&b, "\ndiagnostic: %s", d)
	}
	return mcp.NewToolResultError(b.String())
}
