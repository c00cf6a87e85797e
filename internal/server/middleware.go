package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ngenohkevin/hftp/internal/log"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware tags each request with an ID, reusing one sent by the client
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware creates logging middleware. Requests are only logged in
// debug mode.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !log.DebugEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		log.Debug("[%s] %s %s | Status: %d | Latency: %v | Client: %s | ID: %s",
			method, path, c.Request.URL.RawQuery, status, latency, clientIP, c.GetString(requestIDKey))
	}
}

// RecoveryMiddleware handles panics
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				c.Header("Connection", "close")
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// DrainMiddleware asks clients to close their connection once the running
// flag is cleared, so keep-alive workers finish after the current request.
func DrainMiddleware(running *atomic.Bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !running.Load() {
			c.Header("Connection", "close")
		}
		c.Next()
	}
}
