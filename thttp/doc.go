// Package thttp serves travertine requests over HTTP.
//
// # HTTP Server
//
// thttp.Server is controlled with a context passed to its Run method instead
// of the start-and-stop paradigm of http.Server. This fits hierarchies of
// components that are started and shut down as a whole with parallel.Run.
// Every incoming request has a context inherited from the context passed to
// Run, so every request context carries a logger, and the graceful shutdown
// sequence is taken care of, hijacked connections included.
//
// The server numbers accepted connections. ConnFromContext returns the
// request.Conn describing the connection a request arrived on.
//
// # Handler
//
// thttp.Handler turns an *http.Request into a request.Request: it decodes the
// query string and urlencoded body into parameters, reads the Cookie header,
// binds the session named by the SID cookie, streams multipart bodies into an
// mpfd.Decoder and keeps JSON bodies as they are. The handler function
// writes its response into a ResponseWriter, which compresses it with gzip or
// raw deflate when the client accepts it. Session cookies are set or expired
// after the handler function returns, and uploaded files are released.
//
// # Example
//
//	func RunServer(ctx context.Context, addr string) error {
//	    return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
//	        store := session.NewMemStore(session.DefaultConfig)
//	        spawn("sessions", parallel.Fail, store.Run)
//
//	        listener, err := tnet.Listen(addr)
//	        if err != nil {
//	            return fmt.Errorf("failed to run server: %w", err)
//	        }
//
//	        router := mux.NewRouter()
//	        router.Handle("/hello", thttp.NewHandler(thttp.DefaultConfig, store,
//	            func(w *thttp.ResponseWriter, r *request.Request) {
//	                fmt.Fprintf(w, "Hello, %s", r.ParamOr("name", "world"))
//	            }))
//
//	        server := thttp.NewServer(listener, thttp.Wrap(router, thttp.StandardMiddleware, thttp.LogBodies))
//	        spawn("http", parallel.Fail, server.Run)
//	        return nil
//	    })
//	}
package thttp
