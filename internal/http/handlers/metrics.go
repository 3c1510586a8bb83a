package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/services"
)

// ActiveTaskCounter reports live supervised tasks.
type ActiveTaskCounter interface {
	Active() int
}

type MetricsHandler struct {
	runs    services.RunService
	tasks   ActiveTaskCounter
	metrics *observability.Metrics
}

func NewMetricsHandler(runs services.RunService, tasks ActiveTaskCounter, metrics *observability.Metrics) *MetricsHandler {
	return &MetricsHandler{runs: runs, tasks: tasks, metrics: metrics}
}

// GET /metrics
func (h *MetricsHandler) Stats(c *gin.Context) {
	st, err := h.runs.Stats(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	active := 0
	if h.tasks != nil {
		active = h.tasks.Active()
	}
	c.JSON(http.StatusOK, gin.H{
		"total_runs":      st.TotalRuns,
		"total_artefacts": st.TotalArtefacts,
		"total_reports":   st.TotalReports,
		"recent_runs_24h": st.RecentRuns24h,
		"active_tasks":    active,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /metrics/prometheus
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	h.metrics.WriteHTTP(c.Writer, c.Request)
}
