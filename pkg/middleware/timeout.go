package middleware

import (
	"net/http"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/courier-dispatch/pkg/config"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout enforces per-route deadlines from TimeoutConfig. Routes
// without an override in ROUTE_TIMEOUT_OVERRIDES use DefaultRequestTimeout.
// Expired requests get a 504 with an X-Timeout marker header.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		routeTimeout := cfg.TimeoutForRoute(c.Request.Method, c.FullPath())

		handler := timeout.New(
			timeout.WithTimeout(routeTimeout),
			timeout.WithHandler(func(c *gin.Context) {
				c.Next()
			}),
			timeout.WithResponse(timeoutResponse),
		)

		// gin-contrib/timeout re-panics handler panics on the caller
		// goroutine; convert them to a 500 so the server stays up even
		// when no recovery middleware is installed ahead of us.
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(c.Request.Context()).Error("panic in handler",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error":   "Internal server error",
						"message": "The server encountered an unexpected condition",
					})
				}
			}
		}()

		handler(c)
	}
}

func timeoutResponse(c *gin.Context) {
	c.Header("X-Timeout", "true")
	c.JSON(http.StatusGatewayTimeout, gin.H{
		"error":   "Request timeout",
		"message": "The request took too long to process",
	})

	logger.WithContext(c.Request.Context()).Warn("Request timeout",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
}
