package render

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/text2block/pkg/dot"
	"github.com/matzehuels/text2block/pkg/errors"
)

// Format is an artifact output format.
type Format string

// Supported output formats.
const (
	PNG Format = "png"
	JPG Format = "jpg"
	SVG Format = "svg"
)

// Formats lists every supported format.
var Formats = []Format{PNG, JPG, SVG}

// MIMEType returns the media type of artifacts in format f.
func (f Format) MIMEType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	case SVG:
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// ParseFormat parses a format name. "jpeg" is accepted as an alias of "jpg".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpeg" {
		f = JPG
	}
	if !slices.Contains(Formats, f) {
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want one of %v)", s, Formats)
	}
	return f, nil
}

// Layout is a Graphviz layout algorithm.
type Layout string

// Supported layout algorithms.
const (
	LayoutDot       Layout = "dot"
	LayoutNeato     Layout = "neato"
	LayoutFdp       Layout = "fdp"
	LayoutSfdp      Layout = "sfdp"
	LayoutCirco     Layout = "circo"
	LayoutTwopi     Layout = "twopi"
	LayoutOsage     Layout = "osage"
	LayoutPatchwork Layout = "patchwork"
)

// Layouts lists every supported layout algorithm.
var Layouts = []Layout{LayoutDot, LayoutNeato, LayoutFdp, LayoutSfdp, LayoutCirco, LayoutTwopi, LayoutOsage, LayoutPatchwork}

// ParseLayout parses a layout algorithm name.
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Layouts, l) {
		return "", errors.New(errors.ErrCodeInvalidLayout, "unsupported layout %q (want one of %v)", s, Layouts)
	}
	return l, nil
}

// Config selects output format and layout for a [Renderer].
type Config struct {
	Format Format
	Layout Layout
}

// Defaults applied by [Config.WithDefaults].
const (
	DefaultFormat = PNG
	DefaultLayout = LayoutDot
)

// WithDefaults returns c with empty fields set to PNG and the dot layout.
func (c Config) WithDefaults() Config {
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Layout == "" {
		c.Layout = DefaultLayout
	}
	return c
}

// Artifact describes a successfully written render.
type Artifact struct {
	Location string
	Format   Format
	Data     []byte
}

// Size returns the artifact size in bytes.
func (a *Artifact) Size() int { return len(a.Data) }

// Result is the outcome of one render. Exactly one of Artifact and
// Diagnostic is set.
type Result struct {
	Artifact   *Artifact
	Diagnostic string
}

// Succeeded reports whether the render produced an artifact.
func (r Result) Succeeded() bool { return r.Artifact != nil }

// Renderer compiles descriptions with an engine and writes them to destinations.
// It holds no mutable state and is safe for concurrent use when its engine is.
type Renderer struct {
	engine Engine
	cfg    Config
}

// New creates a renderer. Empty config fields take their defaults.
func New(engine Engine, cfg Config) *Renderer {
	return &Renderer{engine: engine, cfg: cfg.WithDefaults()}
}

// Config returns the renderer's effective configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Render compiles desc and writes the artifact to dest.
//
// An engine rejection yields a failed Result with the diagnostic passed
// through unmodified and dest cleared. A non-nil error means the engine or the
// destination failed outright; dest is cleared in that case too.
func (r *Renderer) Render(ctx context.Context, desc dot.Description, dest Destination) (Result, error) {
	if desc.IsZero() {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "empty description")
	}

	data, err := r.engine.Compile(ctx, desc.String(), r.cfg.Format, r.cfg.Layout)
	if err != nil {
		_ = dest.Remove()
		var diag *DiagnosticError
		if stderrors.As(err, &diag) {
			return Result{Diagnostic: diag.Message}, nil
		}
		return Result{}, errors.Wrap(errors.ErrCodeCollaborator, err, "render engine failed").WithStage(errors.StageRender)
	}
	if len(data) == 0 {
		_ = dest.Remove()
		return Result{Diagnostic: "engine produced no output"}, nil
	}

	if err := dest.Write(data); err != nil {
		_ = dest.Remove()
		return Result{}, errors.Wrap(errors.ErrCodeCollaborator, err,
			"write artifact to %s", dest.Location()).WithStage(errors.StageRender)
	}

	return Result{Artifact: &Artifact{
		Location: dest.Location(),
		Format:   r.cfg.Format,
		Data:     data,
	}}, nil
}

// String describes the renderer for logs.
func (r *Renderer) String() string {
	return fmt.Sprintf("%s/%s/%s", r.engine.Name(), r.cfg.Layout, r.cfg.Format)
}
