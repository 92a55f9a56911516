// Package algo provides general-purpose search engines: a genetic algorithm,
// simulated annealing, Monte-Carlo tree search, and random and exhaustive
// search over boolean vectors.
//
// The engines know nothing about operator graphs or meshes. Every engine takes
// its random source from the caller, so a fixed seed reproduces a run, and
// every engine is an akita sim.Hookable that reports progress through hooks.
package algo

import (
	"context"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
)

// LevelTrace is the slog level of search progress records.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a search progress record.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// LogHook traces every hook invocation of the engine it is attached to.
type LogHook struct{}

// Func logs the hook position and item.
func (h LogHook) Func(ctx sim.HookCtx) {
	Trace("Search",
		"Pos", ctx.Pos.Name,
		"Item", ctx.Item,
	)
}
