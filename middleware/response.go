package middleware

import (
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CtxUserIDKey is where the auth middleware stores the caller's user id.
const CtxUserIDKey = "userId"

// Fail aborts with the JSON error envelope for err.
func Fail(c *gin.Context, err error) {
	status, env := errs.Response(err)
	if status >= 500 {
		logger.Error("[HTTP] request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, env)
}

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				Fail(c, errs.ErrPanic(r))
			}
		}()
		c.Next()
	}
}

// RequestLog logs one line per request.
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("[HTTP] request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}
