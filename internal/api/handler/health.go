package handler

import (
	"context"
	"net/http"

	"github.com/fleetboard/fleetboard/internal/api/middleware"
	"github.com/fleetboard/fleetboard/internal/api/response"
)

// Pinger checks connectivity to a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      Pinger
	redis   Pinger // nil when rate limiting is disabled
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db, redis Pinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		version: version,
	}
}

type componentStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Database componentStatus  `json:"database"`
	Redis    *componentStatus `json:"redis,omitempty"`
}

// ServeHTTP handles the health check request. The database being down
// makes the service degraded; redis is optional and only reported when
// configured.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	status := "healthy"

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	if !dbConnected {
		status = "degraded"
	}

	data := healthData{
		Status:   status,
		Version:  h.version,
		Database: componentStatus{Connected: dbConnected},
	}

	if h.redis != nil {
		connected := h.redis.Ping(r.Context()) == nil
		data.Redis = &componentStatus{Connected: connected}
		if !connected {
			data.Status = "degraded"
		}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
