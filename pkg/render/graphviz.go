package render

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-graphviz"
)

// go-graphviz runs every instance on one WASM module per process, so parse,
// layout and render calls must not overlap.
var graphvizMu sync.Mutex

// GraphvizEngine renders DOT in-process with go-graphviz. Compiles are
// serialized across all engines in the process.
type GraphvizEngine struct{}

// NewGraphvizEngine creates an in-process Graphviz engine.
func NewGraphvizEngine() *GraphvizEngine {
	return &GraphvizEngine{}
}

// Name returns "graphviz".
func (e *GraphvizEngine) Name() string { return "graphviz" }

// Compile parses and renders source. Parse and layout failures are reported
// as diagnostics; failing to start the runtime is an engine error.
func (e *GraphvizEngine) Compile(ctx context.Context, source string, format Format, layout Layout) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	graphvizMu.Lock()
	defer graphvizMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.Layout(layout))

	g, err := graphviz.ParseBytes([]byte(source))
	if err != nil {
		return nil, diagnostic(err.Error(), "syntax error in DOT source")
	}
	if g == nil {
		return nil, diagnostic("", "syntax error in DOT source")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.Format(format), &buf); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, diagnostic(err.Error(), "graphviz failed to render the description")
	}
	return buf.Bytes(), nil
}

var _ Engine = (*GraphvizEngine)(nil)
