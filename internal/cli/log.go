// Package cli implements the text2block command-line interface.
//
// The CLI is built on cobra. Every command shares one [CLI] value holding
// the logger and the configuration loaded from --config.
//
// # Commands
//
//   - generate: produce a diagram and explanation from a request
//   - render: render existing DOT source, optionally repairing it
//   - sanitize: print the sanitized form of raw generator output
//   - chat: interactive session that produces one diagram per message
//   - serve: run the HTTP API
//   - mcp: run the MCP server over stdio
//   - history: list and inspect past requests
//   - cache: manage the result cache
//
// # Logging
//
// Logs go to stderr through charmbracelet/log. --verbose (-v) switches to
// debug level, which also logs every render attempt and generator call.
// Command output (paths, explanations, tables) goes to stdout.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level. Timestamps are
// formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// the elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time rounded to the millisecond, e.g.
// "Rendered diagram.png (1.234s)".
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))...)
}
