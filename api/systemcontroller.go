package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterSystemRoutes registers health and limiter endpoints.
func (s *Server) RegisterSystemRoutes(r *gin.Engine) {
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/limiter/:domain", s.handleLimiter)
}

// handleHealth reports 503 when the store does not answer.
func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": "ok"})
}

// handleLimiter returns the current window and backoff for a domain.
func (s *Server) handleLimiter(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Limiter.Snapshot(c.Param("domain")))
}
