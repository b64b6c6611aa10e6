package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/telemetry"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IssuerKeyMiddleware guards endpoints used by link issuers (the chat bot).
// The key is sent as "Authorization: Bearer <key>".
func IssuerKeyMiddleware(admission *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("missing issuer key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing issuer key"})
			return
		}

		if err := admission.CheckIssuerKey(parts[1]); err != nil {
			if errors.Is(err, auth.ErrIssuanceDisabled) {
				c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "link issuance disabled"})
				return
			}
			logger.Debug().Err(err).Msg("invalid issuer key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid issuer key"})
			return
		}

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetString(telemetry.ContextKeyRequestID)).
			Msg("http request")
	}
}
