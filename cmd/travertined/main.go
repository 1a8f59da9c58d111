// Command travertined serves a demonstration of the travertine request core:
// parameter and cookie decoding, sessions, multipart uploads, compressed
// responses and a compressed WebSocket echo.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/ridge/parallel"
	"github.com/ridge/travertine/mpfd"
	"github.com/ridge/travertine/run"
	"github.com/ridge/travertine/session"
	"github.com/ridge/travertine/thttp"
	"github.com/ridge/travertine/tlog"
	"github.com/ridge/travertine/tnet"
	"github.com/ridge/travertine/tws"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	listen         string
	tls            tnet.TLSConfig
	tempDir        string
	storeFiles     bool
	probeTempNames bool
	maxFieldSize   int64
	sessionTimeout time.Duration
	corsOrigins    []string
}

func main() {
	var opts options
	pflag.StringVar(&opts.listen, "listen", "localhost:8080", "Address to listen on (tcp:host:port or unix:path)")
	pflag.StringVar(&opts.tls.CertFile, "tls-cert", "", "TLS certificate chain; serve plain HTTP if empty")
	pflag.StringVar(&opts.tls.KeyFile, "tls-key", "", "TLS private key")
	pflag.StringVar(&opts.tls.ClientCAFile, "client-ca", "", "CA for client certificates")
	pflag.StringVar(&opts.tempDir, "temp-dir", "", "Directory for uploaded files (default: system temporary directory)")
	pflag.BoolVar(&opts.storeFiles, "store-files", false, "Keep uploaded files on disk instead of memory")
	pflag.BoolVar(&opts.probeTempNames, "probe-temp-names", false, "Name uploaded files after the first unused name in --temp-dir")
	pflag.Int64Var(&opts.maxFieldSize, "max-field-size", 64<<20, "Maximum size of an uploaded field (0 for no limit)")
	pflag.DurationVar(&opts.sessionTimeout, "session-timeout", session.DefaultConfig.IdleTimeout, "Idle session lifetime (0 for no expiry)")
	pflag.StringSliceVar(&opts.corsOrigins, "cors-origin", []string{"*"}, "Origins allowed to make cross-origin requests")
	pflag.Parse()

	run.Server(func(ctx context.Context) error {
		return serve(ctx, opts)
	})
}

func listen(opts options) (net.Listener, error) {
	if opts.tls.CertFile == "" {
		return tnet.Listen(opts.listen)
	}
	config, err := opts.tls.Load()
	if err != nil {
		return nil, err
	}
	return tnet.ListenTLS(opts.listen, config)
}

func serve(ctx context.Context, opts options) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		store := session.NewMemStore(session.Config{IdleTimeout: opts.sessionTimeout})
		spawn("sessions", parallel.Fail, func(ctx context.Context) error {
			defer store.Close()
			return store.Run(ctx)
		})

		listener, err := listen(opts)
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
		tlog.Get(ctx).Info("Listening", zap.Stringer("addr", listener.Addr()), zap.Bool("tls", opts.tls.CertFile != ""))

		config := thttp.DefaultConfig
		config.TempDir = opts.tempDir
		config.ProbeTempNames = opts.probeTempNames
		config.MaxFieldSize = opts.maxFieldSize
		if opts.storeFiles {
			config.Storage = mpfd.StoreInFilesystem
		}

		server := thttp.NewServer(listener, thttp.Wrap(router(config, store),
			thttp.Log, thttp.Recover, thttp.NewCORS(opts.corsOrigins), thttp.LogBodies))
		spawn("http", parallel.Fail, server.Run)
		return nil
	})
}

func router(config thttp.Config, store session.Store) http.Handler {
	r := mux.NewRouter()
	r.Handle("/echo", thttp.NewHandler(config, store, echo))
	r.Handle("/session", thttp.NewHandler(config, store, sessionAttributes)).
		Methods(http.MethodGet, http.MethodPost, http.MethodDelete)
	r.Handle("/upload", thttp.NewHandler(config, store, upload)).Methods(http.MethodPost)
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsConfig := tws.DefaultConfig
		wsConfig.Compression = r.URL.Query().Get("compress") != ""
		tws.Serve(w, r, wsConfig, wsEcho)
	})
	return r
}
