package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/reports
func (h *ReportHandler) Generate(c *gin.Context) {
	var req services.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondErr(c, apierr.Wrap(apierr.ErrInvalidArgument, "invalid request: %v", err))
		return
	}
	rep, err := h.reports.Generate(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// GET /api/reports/:execution_id
func (h *ReportHandler) Get(c *gin.Context) {
	rep, err := h.reports.Get(c.Request.Context(), c.Param("execution_id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, rep)
}
