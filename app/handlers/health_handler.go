package handlers

import (
	"context"

	"github.com/amirphl/lead-manager/app/dto"
	"github.com/amirphl/lead-manager/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	statusOK       = "ok"
	statusDown     = "down"
	statusDisabled = "disabled"
)

// HealthHandler reports the state of the store and the optional cache
type HealthHandler struct {
	db      *gorm.DB
	rc      *redis.Client
	version string
}

// NewHealthHandler creates a health handler; rc may be nil when caching is off
func NewHealthHandler(db *gorm.DB, rc *redis.Client, version string) *HealthHandler {
	return &HealthHandler{db: db, rc: rc, version: version}
}

// Health check
// @Summary Service health
// @Description Pings the database and, when configured, redis. A cache outage degrades but does not fail the check.
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse} "Service is healthy"
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse} "Database unavailable"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), utils.HealthCheckTimeout)
	defer cancel()

	res := dto.HealthResponse{
		Status:    statusOK,
		Database:  h.databaseStatus(ctx),
		Cache:     h.cacheStatus(ctx),
		Version:   h.version,
		Timestamp: utils.UTCNowRFC3339(),
	}

	if res.Database != statusOK {
		res.Status = statusDown
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is unhealthy",
			Data:    res,
			Error:   dto.ErrorDetail{Code: "SERVICE_UNAVAILABLE"},
		})
	}
	if res.Cache == statusDown {
		res.Status = "degraded"
	}

	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    res,
	})
}

func (h *HealthHandler) databaseStatus(ctx context.Context) string {
	if h.db == nil {
		return statusDown
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return statusDown
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return statusDown
	}
	return statusOK
}

func (h *HealthHandler) cacheStatus(ctx context.Context) string {
	if h.rc == nil {
		return statusDisabled
	}
	if err := h.rc.Ping(ctx).Err(); err != nil {
		return statusDown
	}
	return statusOK
}
