package observability

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/text2block/pkg/errors"
)

// LogHooks writes hook events as structured debug log lines.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks creates log hooks. A nil logger uses log.Default().
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

// Hooks returns a bundle routing every category to l.
func (l *LogHooks) Hooks() Hooks {
	return Hooks{Loop: l, Generator: l, Cache: l}
}

func (l *LogHooks) OnRenderComplete(_ context.Context, attempt int, d time.Duration, ok bool, err error) {
	l.logger.Debug("render attempt", "attempt", attempt, "ok", ok, "duration", d.Round(time.Millisecond), "err", err)
}

func (l *LogHooks) OnRepairComplete(_ context.Context, attempt int, d time.Duration, err error) {
	l.logger.Debug("repair call", "attempt", attempt, "duration", d.Round(time.Millisecond), "err", err)
}

func (l *LogHooks) OnResolveComplete(_ context.Context, attempts int, d time.Duration, err error) {
	l.logger.Debug("resolve finished", "attempts", attempts, "outcome", Outcome(err), "duration", d.Round(time.Millisecond))
}

func (l *LogHooks) OnGenerateComplete(_ context.Context, role string, d time.Duration, err error) {
	l.logger.Debug("generate", "role", role, "duration", d.Round(time.Millisecond), "err", err)
}

func (l *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	l.logger.Debug("cache hit", "type", keyType)
}

func (l *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	l.logger.Debug("cache miss", "type", keyType)
}

func (l *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	l.logger.Debug("cache set", "type", keyType, "bytes", size)
}

// Outcome returns a low-cardinality label for err: "success", the error code
// in lower case, or "error" for uncoded errors.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if code := errors.GetCode(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}

var (
	_ LoopHooks      = (*LogHooks)(nil)
	_ GeneratorHooks = (*LogHooks)(nil)
	_ CacheHooks     = (*LogHooks)(nil)
)
