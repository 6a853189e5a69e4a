// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, functional options, and health-check handlers.
//
// Run blocks until the context is canceled or an interrupt/TERM signal is
// received, then shuts the listener down within the configured deadline.
// Listen failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown so callers can inspect them with errors.Is.
//
// Usage:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
package httpserver
