package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500

	requestIDHeader = "X-Request-ID"
)

// ZerologLogger is a Gin middleware that tags each request with an ID and
// logs its outcome using zerolog.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		evt := levelFor(status)
		if id := c.Param("id"); id != "" {
			evt = evt.Str("job_id", id)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.
			Str("request_id", requestID).
			Int("status", status).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("path", c.Request.URL.Path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int64("content_length", c.Request.ContentLength).
			Int("bytes", c.Writer.Size()).
			Msg("http request completed")
	}
}

func levelFor(status int) *zerolog.Event {
	switch {
	case status >= statusErrorThreshold:
		return log.Error()
	case status >= statusWarnThreshold:
		return log.Warn()
	default:
		return log.Info()
	}
}
