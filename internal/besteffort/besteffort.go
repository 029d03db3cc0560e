// Package besteffort centralizes the fire-and-forget task contract: a task's
// failure is logged and otherwise ignored, never propagated. Every side call
// whose failure must not gate the pipeline goes through here instead of an
// ad hoc swallowed error at the call site.
package besteffort

import (
	"go.uber.org/zap"
)

// Run executes fn synchronously, logging and swallowing any error or panic.
// Returns true if fn completed without error.
func Run(name string, fn func() error) bool {
	defer recoverPanic(name)
	if err := fn(); err != nil {
		zap.L().Warn("best-effort task failed",
			zap.String("task", name),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Go executes fn on a new goroutine with Run semantics.
func Go(name string, fn func() error) {
	go Run(name, fn)
}

func recoverPanic(name string) {
	if r := recover(); r != nil {
		zap.L().Error("best-effort task panicked",
			zap.String("task", name),
			zap.Any("panic", r),
		)
	}
}
