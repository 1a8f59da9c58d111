package thttp

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/ridge/parallel"
	"github.com/ridge/travertine/tlog"
	"go.uber.org/zap"
)

// runTask executes the task in the current goroutine, recovering from panics.
// A panic is returned as ErrPanic.
func runTask(ctx context.Context, task parallel.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = parallel.ErrPanic{Value: p, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

// Recover is a middleware that catches panics from HTTP handlers, answers
// with 500 and hands the panic over to the Server, which shuts down
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := runTask(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err == nil {
			return
		}
		tlog.Get(r.Context()).Error("HTTP handler panicked", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		if panicChan, ok := r.Context().Value(panicKey).(chan error); ok {
			select {
			case panicChan <- err:
			default:
			}
		}
	})
}
