package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/config"
)

// HealthHandler serves the unauthenticated service endpoints: the root
// banner, the load balancer health probe, and the ping diagnostics.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes mounts the handler on mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
}

// Root answers GET / with a short banner identifying the service.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	banner := map[string]string{
		"message": "Veracity data quality engine API",
		"status":  "running",
	}
	if err := WriteJSON(w, http.StatusOK, banner); err != nil {
		h.logger.Error("Failed to encode root response", zap.Error(err))
	}
}

// Health answers the load balancer probe with a bare "ok". No JSON, no
// dependencies touched.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// PingResponse describes the running build for /ping.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// Ping reports build and runtime details, useful for checking which version
// a deployment is actually running.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	resp := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "veracity-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
