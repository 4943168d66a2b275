// Package safego launches goroutines that log panics instead of dying
// silently.
package safego

import "log/slog"

// Go runs fn in a new goroutine with a recover guard. The server's listener
// and metrics goroutines run under it: a panic there should surface in the
// logs, not take the process down or vanish.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
