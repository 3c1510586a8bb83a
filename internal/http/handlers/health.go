package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

const welcomeMessage = "Autopilot.dev Backend"

type HealthHandler struct {
	log *logger.Logger
	db  *gorm.DB
	now func() time.Time
}

func NewHealthHandler(log *logger.Logger, db *gorm.DB) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "HealthHandler"), db: db, now: time.Now}
}

// GET /
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	dbStatus := "healthy"
	if err := h.ping(c.Request.Context()); err != nil {
		h.log.Error("Database health check failed", "error", err.Error())
		dbStatus = "unhealthy"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    dbStatus,
		"database":  dbStatus,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	if h.db == nil {
		return gorm.ErrInvalidDB
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
