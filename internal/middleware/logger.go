package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// WithContext copies the logger, configs and database of base into every
// request context.
func WithContext(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := xcontext.WithLogger(r.Context(), xcontext.Logger(base))
			ctx = xcontext.WithConfigs(ctx, xcontext.Configs(base))
			if db := xcontext.DB(base); db != nil {
				ctx = xcontext.WithDB(ctx, db)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if sw.status >= http.StatusBadRequest {
				xcontext.Logger(r.Context()).Warnf("%s | %s | %d", r.Method, r.URL.Path, sw.status)
			} else {
				xcontext.Logger(r.Context()).Debugf("%s | %s | %d | %s", r.Method, r.URL.Path, sw.status, time.Since(start))
			}
		})
	}
}

// Chain applies middlewares so that the first one is the outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	return h
}
