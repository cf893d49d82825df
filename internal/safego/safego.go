// Package safego launches fire-and-forget goroutines that survive panics.
package safego

import "log/slog"

// Go runs fn on a new goroutine, recovering any panic and logging it under
// the given task name. Use it for async side effects whose caller has already
// responded — audit writes, token bookkeeping — where an unrecovered panic
// would take the process down for work nobody is waiting on.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "task", task, "panic", r)
			}
		}()
		fn()
	}()
}
