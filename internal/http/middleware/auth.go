package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/autopilot-backend/internal/http/response"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/ctxutil"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/services"
)

const headerWebhookSecret = "X-Webhook-Secret"

type AuthMiddleware struct {
	log  *logger.Logger
	auth services.OperatorAuth
}

func NewAuthMiddleware(log *logger.Logger, auth services.OperatorAuth) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("Middleware", "AuthMiddleware"), auth: auth}
}

// RequireAuth guards operator endpoints with a Bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.auth == nil || !am.auth.Enabled() {
			response.AbortErr(c, apierr.Wrap(apierr.ErrConfig, "operator auth not configured"))
			return
		}
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.AbortErr(c, apierr.Wrap(apierr.ErrUnauthorized, "missing or invalid token"))
			return
		}
		ctx, err := am.auth.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("Rejected operator token", "path", c.FullPath(), "error", err.Error())
			response.AbortErr(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		if caller := ctxutil.GetCaller(ctx); caller != nil {
			c.Set("caller", caller.Email)
		}
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// WebhookSecret rejects deliveries without the shared secret. An empty
// secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader(headerWebhookSecret))
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.AbortErr(c, apierr.Wrap(apierr.ErrUnauthorized, "invalid webhook secret"))
			return
		}
		c.Next()
	}
}
