package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/objectstore"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type RunHandler struct {
	log   *logger.Logger
	runs  services.RunService
	blobs objectstore.Store
}

// blobs may be nil when artefacts are stored inline.
func NewRunHandler(log *logger.Logger, runs services.RunService, blobs objectstore.Store) *RunHandler {
	return &RunHandler{log: log.With("handler", "RunHandler"), runs: runs, blobs: blobs}
}

// GET /api/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	runs, err := h.runs.ListRecent(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, run)
}

// GET /api/video/:execution_id
func (h *RunHandler) GetVideo(c *gin.Context) {
	id := strings.TrimSpace(c.Param("execution_id"))
	artefact, err := h.runs.Video(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}

	data := artefact.VideoBytes
	if len(data) == 0 && artefact.StorageKey != "" {
		if h.blobs == nil {
			response.RespondErr(c, apierr.Wrap(apierr.ErrConfig, "object storage not configured for artefact %s", artefact.ID))
			return
		}
		data, err = h.blobs.Get(c.Request.Context(), artefact.StorageKey)
		if err != nil {
			h.log.Error("Artefact fetch failed", "run_id", id, "key", artefact.StorageKey, "error", err.Error())
			response.RespondErr(c, err)
			return
		}
	}
	if len(data) == 0 {
		response.RespondError(c, http.StatusInternalServerError, "video_missing", fmt.Errorf("Video data is missing in artefact"))
		return
	}

	contentType := artefact.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	c.Header("Content-Disposition", inlineDisposition(id+".mp4"))
	c.Data(http.StatusOK, contentType, data)
}

func inlineDisposition(filename string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}

// GET /api/status/:execution_id
//
// Streams the engine's log messages as server-sent events. Failures after
// the stream opened are reported in-band.
func (h *RunHandler) StreamStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("execution_id"))
	if id == "" {
		response.RespondErr(c, apierr.Wrap(apierr.ErrInvalidArgument, "execution id required"))
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	entries, err := h.runs.Logs(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("Log stream failed", "run_id", id, "error", err.Error())
		writeEvent(c.Writer, "Log stream error: "+err.Error())
		c.Writer.Flush()
		return
	}
	for _, e := range entries {
		writeEvent(c.Writer, e.Message)
		c.Writer.Flush()
	}
}

func writeEvent(w io.Writer, msg string) {
	// A bare newline would end the event early.
	msg = strings.ReplaceAll(msg, "\n", " ")
	_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
}

// POST /api/trigger
func (h *RunHandler) Trigger(c *gin.Context) {
	var req services.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondErr(c, apierr.Wrap(apierr.ErrInvalidArgument, "invalid request: %v", err))
		return
	}
	if req.UserEmail == "" {
		if caller := ctxutil.GetCaller(c.Request.Context()); caller != nil {
			req.UserEmail = caller.Email
		}
	}
	res, err := h.runs.Trigger(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
