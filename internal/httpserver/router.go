// Package httpserver builds the chi router shared by the discovery
// controller's /health and /metrics endpoints, grounded on
// pkg/api/router.go's middleware stack: request ID, real IP, request
// logging through the internal logger, panic recovery, and a request
// timeout.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hreinecke/nvme-discd-go/internal/logger"
)

// requestTimeout bounds how long a single request may run before chi's
// Timeout middleware cancels its context. The controller's HTTP surface
// only ever serves small, synchronous JSON/text responses, so this is
// generous headroom rather than a tuned budget.
const requestTimeout = 10 * time.Second

// NewRouter returns a chi.Router with the standard middleware stack
// applied. Callers mount their routes on the returned router.
func NewRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	return r
}

// requestLogger logs request start at DEBUG and request completion at
// INFO through the internal logger, mirroring pkg/api/router.go's
// requestLogger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("http request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("http request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
