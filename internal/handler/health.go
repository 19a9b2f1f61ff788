package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/Cator197/checkauto-saas/pkg/response"
)

// StartTime tracks when the agent started for uptime calculation.
var StartTime = time.Now()

// StoreInfo reports persistent-store health facts for the status page.
type StoreInfo interface {
	CurrentVersion() (int, error)
}

// Handler contains the shared agent-status handlers.
type Handler struct {
	store StoreInfo
}

// New creates a new handler.
func New(store StoreInfo) *Handler {
	return &Handler{store: store}
}

// StatusChecks represents the checks in the status response.
type StatusChecks struct {
	Store         string  `json:"store"`
	SchemaVersion int     `json:"schema_version"`
	MemoryMB      float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status - unified health check.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	checks := StatusChecks{Store: "ok", MemoryMB: float64(int(memoryMB*100)) / 100}
	status := "ok"
	if h.store != nil {
		if version, err := h.store.CurrentVersion(); err != nil {
			checks.Store = "error"
			status = "degraded"
		} else {
			checks.SchemaVersion = version
		}
	}

	resp := StatusResponse{
		Service:       "checkauto-sync-agent",
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(StartTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
