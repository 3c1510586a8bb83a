package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr derives status and code from the error kind.
func RespondErr(c *gin.Context, err error) {
	RespondError(c, apierr.StatusOf(err), apierr.CodeOf(err), err)
}

// AbortErr is RespondErr for middleware.
func AbortErr(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apierr.StatusOf(err), ErrorEnvelope{
		Error: APIError{Message: err.Error(), Code: apierr.CodeOf(err)},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
