package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridge/travertine/tlog"
	"go.uber.org/zap"
)

var terminationSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP}

// handleSignals returns nil on the first termination signal, which closes the
// context of the main task
func handleSignals(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, terminationSignals...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		tlog.Get(ctx).Info("Received signal, terminating", zap.Stringer("signal", sig))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
