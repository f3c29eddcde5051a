package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/astroguard/backend/internal/infrastructure/logger"
	"github.com/astroguard/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is the API version reported by the system endpoints
const Version = "1.0.0"

// Pinger checks a backing service
type Pinger interface {
	Ping() error
}

// SystemHandler serves the health and system info endpoints
type SystemHandler struct {
	BaseHandler
	name        string
	db          Pinger
	subscribers func() int
	startTime   time.Time
}

// NewSystemHandler creates a new SystemHandler. subscribers may be nil.
func NewSystemHandler(name string, db Pinger, subscribers func() int) *SystemHandler {
	return &SystemHandler{
		name:        name,
		db:          db,
		subscribers: subscribers,
		startTime:   time.Now(),
	}
}

// HealthResponse is the health check result
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health. It answers 503 when the database does not respond.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "up",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.db.Ping(); err != nil {
		logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		resp.Status = "unhealthy"
		resp.Database = "down"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Uptime      string `json:"uptime"`
	Subscribers int    `json:"subscribers"`
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.subscribers != nil {
		info.Subscribers = h.subscribers()
	}
	h.Success(c, info)
}
