// Package render compiles sanitized DOT descriptions into image artifacts.
//
// # Overview
//
// A [Renderer] binds an [Engine] to an explicit [Config] (output format and
// layout algorithm) and writes successful output to a [Destination]:
//
//	r := render.New(render.NewGraphvizEngine(), render.Config{Format: render.PNG, Layout: render.LayoutDot})
//	res, err := r.Render(ctx, desc, render.NewFileDestination("out.png"))
//	switch {
//	case err != nil:
//	    // engine unreachable, IO failure, timeout
//	case res.Succeeded():
//	    fmt.Println(res.Artifact.Location)
//	default:
//	    fmt.Println(res.Diagnostic) // engine text, verbatim
//	}
//
// A rejected description is not an error: it is a [Result] carrying the
// engine's diagnostic unmodified, because that text is what the repair loop
// feeds back to the generator. Errors are reserved for collaborator failures.
//
// # Engines
//
//   - [GraphvizEngine] runs Graphviz in-process through go-graphviz. The
//     library keeps one WASM runtime per process, so compiles are serialized
//     behind a package lock; concurrent renders queue rather than interleave.
//   - [ExecEngine] runs an external dot binary. Its path is part of the
//     engine configuration; the process environment is never modified.
//
// # Destinations
//
// [FileDestination] writes through a temporary file and rename, so a
// destination path either holds a complete artifact or nothing.
// [MemoryDestination] keeps the artifact in memory.
package render
