// Package health provides shared types for the discovery controller's
// /health endpoint and the status command that polls it.
package health

// Response is the /health endpoint's JSON body.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service        string `json:"service"`
		StartedAt      string `json:"started_at"`
		Uptime         string `json:"uptime"`
		UptimeSec      int64  `json:"uptime_sec"`
		BoundPorts     int    `json:"bound_ports"`
		ActiveSessions int    `json:"active_sessions"`
		DatabaseBackend string `json:"database_backend"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}
