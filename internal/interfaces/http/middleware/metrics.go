package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics records request counts and latencies.
type HTTPMetrics interface {
	ObserveHTTP(method, path string, status int, d time.Duration)
}

// Metrics records every request against its route template, so path
// parameters do not create new series.  Unrouted requests use "unmatched".
func Metrics(m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
