package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hreinecke/nvme-discd-go/internal/cli/health"
	"github.com/hreinecke/nvme-discd-go/internal/httpserver"
	"github.com/hreinecke/nvme-discd-go/internal/iface"
	"github.com/hreinecke/nvme-discd-go/internal/session"
	"github.com/hreinecke/nvme-discd-go/pkg/config"
)

// newHealthServer builds the /health HTTP server the status command
// polls, routed through httpserver.NewRouter's request-id/logging/
// recoverer/timeout stack. It reports bound port count and active
// session count directly from the running iface.Manager/session.Manager
// rather than caching them, so status always reflects the live
// topology.
func newHealthServer(cfg *config.Config, startedAt time.Time, ifaceMgr *iface.Manager, sessions *session.Manager) *http.Server {
	status := func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startedAt)

		resp := health.Response{
			Status:    "healthy",
			Timestamp: time.Now().Format(time.RFC3339),
		}
		resp.Data.Service = "nvme-discd"
		resp.Data.StartedAt = startedAt.Format(time.RFC3339)
		resp.Data.Uptime = uptime.String()
		resp.Data.UptimeSec = int64(uptime.Seconds())
		resp.Data.BoundPorts = len(ifaceMgr.ActivePorts())
		resp.Data.ActiveSessions = sessions.Count()
		resp.Data.DatabaseBackend = cfg.Database.Backend

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}

	r := httpserver.NewRouter()
	r.Route("/health", func(r chi.Router) {
		r.Get("/", status)
		// Readiness mirrors liveness here: the controller has no
		// separate warm-up phase once the reflector and iface
		// manager are constructed, so any request this server can
		// answer is also ready to serve.
		r.Get("/ready", status)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HealthPort),
		Handler: r,
	}
}
