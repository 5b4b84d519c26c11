// Package pkg provides the core libraries for text2block.
//
// # Overview
//
// text2block turns a plain-language request into a rendered Graphviz diagram
// and an explanation of it. A language model writes the DOT description; the
// renderer either accepts it or returns a diagnostic, and the diagnostic is
// fed back to the model until the description renders or the attempt budget
// is spent.
//
// # Architecture
//
// The data flow of one request:
//
//	request
//	   ↓
//	[llm] diagram generator → raw text
//	   ↓
//	[dot] sanitize → Description
//	   ↓
//	[repair] render → diagnostic → repair generator → sanitize → render ...
//	   ↓
//	[render] artifact written to a Destination
//	   ↓
//	[explain] explanation generator → Explanation
//
// [diagram] runs that flow. [pipeline] wraps it with the result [cache] and
// the request [history], and is what the CLI, the HTTP server and the MCP
// server call.
//
// # Quick Start
//
//	gen, _ := llm.New(llm.Config{Provider: llm.ProviderOpenAI, APIKey: key})
//	svc, _ := diagram.NewService(diagram.Options{
//	    Generators: diagram.Generators{Diagram: gen},
//	    Renderer:   render.New(render.NewGraphvizEngine(), render.Config{}),
//	})
//	res, err := svc.Produce(ctx, "the TCP three-way handshake",
//	    render.NewFileDestination("handshake.png"))
//	if errors.Is(err, errors.ErrCodeRetryBudgetExhausted) {
//	    fmt.Println(errors.DiagnosticOf(err))
//	}
//	fmt.Println(res.Explanation.Text())
//
// # Main Packages
//
// [dot] - Sanitizer: anchors raw generator text on its first graph keyword
// and replaces characters outside the DOT allow-list.
//
// [render] - Renderer: compiles descriptions with the in-process Graphviz
// engine or an external dot binary and writes artifacts to destinations.
//
// [repair] - Repair loop: bounded render/repair cycle that records every
// attempt.
//
// [diagram] - Generate, resolve and explain as one operation.
//
// [llm] - Generators for OpenAI-compatible chat APIs and the Anthropic
// messages API.
//
// [prompt] - Prompt templates for the diagram, repair and explain roles.
//
// [explain] - Plain-text and schema-validated structured explanations.
//
// ## Infrastructure
//
// [cache] - Result cache with file and Redis backends.
//
// [history] - Request history with file and MongoDB backends.
//
// [config] - TOML/YAML configuration with TEXT2BLOCK_* environment overrides.
//
// [observability] - Hooks for logging and Prometheus metrics.
//
// [errors] - Error codes, pipeline stages and attached diagnostics.
//
// [httputil] - Retry with backoff for generator HTTP calls.
//
// # Testing
//
//	go test ./...
//	TEXT2BLOCK_TEST_REDIS=localhost:6379 go test ./pkg/cache/...
//	TEXT2BLOCK_TEST_MONGO=mongodb://localhost:27017 go test ./pkg/history/...
package pkg
