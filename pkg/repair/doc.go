// Package repair implements the bounded generate-validate-repair loop.
//
// A [Loop] renders a sanitized description. When the engine rejects it, the
// loop hands the failed description and the engine diagnostic to a
// [FixFunc], sanitizes what comes back, and renders again, until a render
// succeeds or the attempt budget is spent:
//
//	loop, _ := repair.New(renderer, repair.Options{MaxAttempts: 3})
//	out, err := loop.Resolve(ctx, initial, fix, dest)
//
// # Termination
//
//   - Success: the first successful render ends the loop.
//   - Budget: after MaxAttempts rejected renders the loop returns
//     RETRY_BUDGET_EXHAUSTED carrying the last diagnostic.
//   - Repair failure: a FixFunc error (COLLABORATOR_ERROR) or a corrected
//     output without a graph keyword (MALFORMED_OUTPUT) ends the loop at once,
//     tagged with stage "repair" so it is distinguishable from a render failure.
//   - Engine failure: a renderer error ends the loop with stage "render".
//   - Cancellation: the context is checked before every render and every
//     repair call; a cancelled run returns CANCELED.
//
// On every failure path the destination is cleared. A loop run keeps its
// attempt history only for the duration of the call; nothing is shared
// between runs, so one Loop can serve concurrent requests.
package repair
