package handle

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type HealthCheck func(ctx context.Context) error

// Health reports provider and profile, and pings optional dependencies.
func (h *Handle) Health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				h.log.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}

		writeJSON(w, code, map[string]any{
			"provider": h.svc.Provider(),
			"profile":  h.svc.Profile().Name,
			"checks":   status,
		})
	}
}
