// Package run starts the top-level task of a program: it sets up logging from
// the command line and closes the task context on termination signals.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/travertine/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var fs = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

func init() {
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("log-format", "", "Log format (json|text)")
	fs.String("log-color", "", "Colored logs (yes|no|auto)")
	fs.BoolP("verbose", "v", false, "Enable verbose (debug level) messages")
	// Hide usage while parsing the command line here, will be covered by a regular command line parsing.
	fs.Usage = func() {}

	// Add options help to the main command-line parser.
	pflag.CommandLine.AddFlagSet(fs)
}

// Tool runs the top-level task of your program, watching for signals.
//
// The context passed to the task contains a logger configured from the
// --log-format, --log-color and --verbose flags. If an interruption or
// termination signal arrives, the context is closed.
//
// Tool does not return. It exits with code 0 if the task returns nil, and
// with code 1 if the task returns an error. Deferred functions of the caller
// do not run, so keep the program logic inside the task:
//
//	func main() {
//	    pflag.Parse()
//	    run.Tool(func(ctx context.Context) error {
//	        return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
//	            spawn("sessions", parallel.Fail, store.Run)
//	            spawn("http", parallel.Fail, server.Run)
//	            return nil
//	        })
//	    })
//	}
func Tool(task func(ctx context.Context) error) {
	// os.Exit doesn't run deferred functions, so we'll call it in the first
	// defer which runs last
	var err error
	defer func() {
		var wec WithExitCode
		if errors.As(err, &wec) {
			os.Exit(wec.ExitCode())
		}
		if err != nil {
			os.Exit(1)
		}
	}()

	ctx := rootContext()

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("main", parallel.Exit, task)
		spawn("signals", parallel.Exit, handleSignals)
		return nil
	})
	if err != nil {
		tlog.Get(ctx).Error("Error", zap.Error(err))
	}
}

// Server runs the top-level task of your program like Tool, except that
// context.Canceled returned by the task after a signal counts as success
func Server(task func(ctx context.Context) error) {
	Tool(func(ctx context.Context) error {
		err := task(ctx)
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	})
}

// WithExitCode is an optional interface that can be implemented by an error.
//
// When a (possibly wrapped) error implementing WithExitCode reaches the top
// level, the value returned by the ExitCode method becomes the exit code of the
// process. The default exit code for other errors is 1.
type WithExitCode interface {
	ExitCode() int
}

type usageError struct {
	error
}

func (usageError) ExitCode() int {
	return 2
}

func logConfig(args []string) (tlog.Config, error) {
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return tlog.Config{}, usageError{err}
	}

	config := tlog.Config{Format: tlog.FormatText, Color: tlog.ColorAuto}
	if fs.Lookup("log-format").Changed {
		switch format := tlog.Format(must.OK1(fs.GetString("log-format"))); format {
		case tlog.FormatText, tlog.FormatJSON:
			config.Format = format
		default:
			return tlog.Config{}, usageError{fmt.Errorf("invalid --log-format value %q", format)}
		}
	}
	if fs.Lookup("log-color").Changed {
		colorArg := must.OK1(fs.GetString("log-color"))
		color, ok := tlog.ParseColor(colorArg)
		if !ok {
			return tlog.Config{}, usageError{fmt.Errorf("invalid --log-color value %q", colorArg)}
		}
		config.Color = color
	}
	config.Verbose = must.OK1(fs.GetBool("verbose"))
	return config, nil
}

func rootContext() context.Context {
	config, err := logConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return tlog.WithLogger(context.Background(), tlog.New(config))
}
