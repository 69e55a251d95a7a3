package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"img2tex/api/internal/handle"
)

type Routes struct {
	// Extract answers OPTIONS and POST on / and /img2tex.
	Extract http.Handler
	Health  http.Handler
	Metrics http.Handler
	// Webhook is mounted on POST WebhookPath (default /telegram) when set.
	Webhook     http.Handler
	WebhookPath string
}

func NewRouter(log *slog.Logger, rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.NotFound(handle.StatusHandler(http.StatusNotFound))
	r.MethodNotAllowed(handle.StatusHandler(http.StatusMethodNotAllowed))

	for _, path := range []string{"/", "/img2tex"} {
		r.Method(http.MethodOptions, path, rt.Extract)
		r.Method(http.MethodPost, path, rt.Extract)
	}
	if rt.Health != nil {
		r.Method(http.MethodGet, "/healthz", rt.Health)
	}
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}
	if rt.Webhook != nil {
		path := rt.WebhookPath
		if path == "" {
			path = "/telegram"
		}
		r.Method(http.MethodPost, path, rt.Webhook)
	}
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
