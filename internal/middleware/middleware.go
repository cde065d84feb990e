// Package middleware holds the gin middlewares shared by the services.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HealthCheck responds with status ok.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CORS allows the given origins to call the service. With no origins, every
// origin is allowed.
func CORS(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"POST", "GET"},
		AllowHeaders:     []string{"Origin", "Api-Key", "Content-Type", "Content-Length"},
		ExposeHeaders:    []string{"Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		conf.AllowOrigins = nil
		conf.AllowAllOrigins = true
		conf.AllowCredentials = false
	}
	return cors.New(conf)
}

// APIKey rejects requests without an Api-Key header matching one of keys. If
// keys is empty, every request is allowed.
func APIKey(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		for _, k := range c.Request.Header.Values("Api-Key") {
			for _, vk := range keys {
				if k == vk {
					c.Next()
					return
				}
			}
		}
		slog.Warn("request without a valid API key", slog.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "a valid API key is missing"})
	}
}

// RequirePayload rejects requests that have no body.
func RequirePayload() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 {
			slog.Debug("payload missing", slog.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payload missing"})
			return
		}
		c.Next()
	}
}

// Logger logs one record per request at debug level, or at warn level for
// responses with an error status.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusBadRequest {
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
