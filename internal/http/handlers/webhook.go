package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type WebhookHandler struct {
	log        *logger.Logger
	dispatcher services.CompletionDispatcher
	metrics    *observability.Metrics
}

func NewWebhookHandler(log *logger.Logger, dispatcher services.CompletionDispatcher, metrics *observability.Metrics) *WebhookHandler {
	return &WebhookHandler{
		log:        log.With("handler", "WebhookHandler"),
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// POST /webhook/kestra
// The dispatcher counts every decoded signal; only bind failures are
// counted here.
func (h *WebhookHandler) Kestra(c *gin.Context) {
	var sig services.CompletionSignal
	if err := c.ShouldBindJSON(&sig); err != nil {
		h.metrics.IncWebhook("kestra", "invalid")
		response.RespondErr(c, apierr.Wrap(apierr.ErrInvalidArgument, "invalid webhook payload: %v", err))
		return
	}
	res, err := h.dispatcher.HandleCompletion(c.Request.Context(), sig)
	if err != nil {
		h.log.Error("Kestra webhook failed", "run_id", sig.RunID(), "error", err.Error())
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /webhook/vercel
func (h *WebhookHandler) Vercel(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.metrics.IncWebhook("vercel", "invalid")
		response.RespondErr(c, apierr.Wrap(apierr.ErrInvalidArgument, "invalid webhook payload: %v", err))
		return
	}
	h.metrics.IncWebhook("vercel", "deployed")
	c.JSON(http.StatusOK, gin.H{"status": "deployed", "payload": payload})
}
