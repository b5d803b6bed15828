package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger checks a backend's reachability.
type Pinger func(ctx context.Context) error

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Store     string    `json:"store"`
	Backend   string    `json:"backend"`
}

type HealthHandler struct {
	version string
	backend string
	ping    Pinger
}

// NewHealthHandler reports on backend, pinging it when ping is non-nil.
func NewHealthHandler(version, backend string, ping Pinger) *HealthHandler {
	return &HealthHandler{version: version, backend: backend, ping: ping}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Store:     "up",
		Backend:   h.backend,
	}
	code := http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Store = "down"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, resp)
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.HealthCheck)
}
