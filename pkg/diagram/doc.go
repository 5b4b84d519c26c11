// Package diagram turns a natural-language request into a rendered diagram
// and its explanation.
//
// [Service.Produce] runs the full pipeline:
//
//  1. Validate the request.
//  2. Ask the diagram generator for a DOT description and sanitize it.
//  3. Render it through the repair loop ([repair.Loop]); rejected
//     descriptions are sent back to the repair generator with the engine
//     diagnostic until one renders or the attempt budget is spent.
//  4. Ask the explain generator to explain the rendered description.
//
// Every failure is an [*errors.Error] tagged with the stage that produced it,
// and leaves nothing at the destination. The service holds no per-request
// state; one Service can serve concurrent requests.
//
// [*errors.Error]: github.com/matzehuels/text2block/pkg/errors.Error
package diagram
