// Package pipeline runs diagram requests for the CLI, the HTTP API and the
// MCP server.
//
// The core [diagram.Service] knows nothing about caching or persistence.
// A [Runner] wraps it with the two concerns every entry point shares:
//
//  1. Result cache: a successful result is stored under a key derived from
//     the intent and every setting that changes the output, and replayed
//     into the caller's destination on the next identical request.
//  2. History: every request, served from cache or not, successful or not,
//     is recorded in a [history.Store].
//
// # Usage
//
// Build a runner from configuration and execute a request:
//
//	runner, err := pipeline.Build(ctx, cfg, pipeline.BuildOptions{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Intent: "a login flow with retry",
//	    Dest:   render.NewFileDestination("login.png"),
//	})
package pipeline

import (
	"encoding/json"

	"github.com/matzehuels/text2block/pkg/diagram"
	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/explain"
	"github.com/matzehuels/text2block/pkg/render"
	"github.com/matzehuels/text2block/pkg/repair"
)

// cacheKeyType labels result cache events in hooks and metrics.
const cacheKeyType = "result"

// Options describes one request.
type Options struct {
	// Intent is the natural-language diagram request.
	Intent string

	// Dest receives the artifact.
	Dest render.Destination

	// Refresh skips the cache lookup. The fresh result is still stored.
	Refresh bool

	// NoCache disables both lookup and store for this request.
	NoCache bool
}

// Validate reports whether o can be executed.
func (o Options) Validate() error {
	if err := errors.ValidateIntent(o.Intent); err != nil {
		return err
	}
	if o.Dest == nil {
		return errors.New(errors.ErrCodeInvalidInput, "destination is required")
	}
	return nil
}

// Result is a finished request.
type Result struct {
	*diagram.Result

	// Cached reports whether the result was replayed from the cache.
	Cached bool

	// RecordID is the history record of the request, or "" when history
	// could not be written.
	RecordID string
}

// cachedResult is the cache encoding of a successful result. Artifact bytes
// are stored inline; the location is not, because a replay writes to the
// caller's destination.
type cachedResult struct {
	Format      render.Format       `json:"format"`
	Data        []byte              `json:"data"`
	Explanation explain.Explanation `json:"explanation"`
	Description dot.Description     `json:"description"`
	Attempts    []repair.Attempt    `json:"attempts"`
	Stats       diagram.Stats       `json:"stats"`
}

func encodeResult(res *diagram.Result) ([]byte, error) {
	if res.Artifact == nil {
		return nil, errors.New(errors.ErrCodeInternal, "result has no artifact")
	}
	return json.Marshal(cachedResult{
		Format:      res.Artifact.Format,
		Data:        res.Artifact.Data,
		Explanation: res.Explanation,
		Description: res.Description,
		Attempts:    res.Attempts,
		Stats:       res.Stats,
	})
}

func decodeResult(data []byte) (cachedResult, error) {
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return cachedResult{}, err
	}
	if len(c.Data) == 0 || c.Description.IsZero() {
		return cachedResult{}, errors.New(errors.ErrCodeInternal, "cached result is incomplete")
	}
	return c, nil
}
