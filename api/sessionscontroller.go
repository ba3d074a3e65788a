package api

import (
	"errors"
	"net/http"

	"catalystbot/config"
	"catalystbot/session"
	"catalystbot/types"

	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes registers session lifecycle endpoints.
func (s *Server) RegisterSessionRoutes(r *gin.Engine) {
	g := r.Group("/api/sessions")
	g.POST("", s.handleStartSession)
	g.GET("", s.handleListSessions)
	g.GET("/:id", s.handleGetSession)
	g.POST("/:id/cancel", s.handleCancelSession)
}

// StartSessionRequest is the body of POST /api/sessions. MinConfidence is a
// pointer so an omitted value gets the default while 0 disables the filter.
type StartSessionRequest struct {
	Sources       []string           `json:"sources" binding:"required"`
	MaxPositions  int                `json:"max_positions"`
	MinConfidence *float64           `json:"min_confidence"`
	Model         string             `json:"model"`
	Mode          types.AnalysisMode `json:"mode"`
	Force         bool               `json:"force"`
	Concurrency   int                `json:"concurrency"`
	MaxItems      int                `json:"max_items"`
}

// Config converts the request into a session config.
func (r StartSessionRequest) Config() types.SessionConfig {
	minConfidence := config.DefaultMinConfidence
	if r.MinConfidence != nil {
		minConfidence = *r.MinConfidence
	}
	return types.SessionConfig{
		MaxPositions:  r.MaxPositions,
		MinConfidence: minConfidence,
		Model:         r.Model,
		Sources:       r.Sources,
		Mode:          r.Mode,
		Force:         r.Force,
		Concurrency:   r.Concurrency,
		MaxItems:      r.MaxItems,
	}
}

// handleStartSession starts a session and returns 202 with its id. A session
// that was recorded but could not start returns 422 with the id and cause.
func (s *Server) handleStartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.deps.Sessions.StartSession(c.Request.Context(), req.Config())
	if err != nil {
		if id == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"session_id": id, "status": types.StatusFailed, "error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": id, "status": types.StatusRunning})
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.deps.Sessions.ListSessions()})
}

func (s *Server) handleGetSession(c *gin.Context) {
	snap, err := s.deps.Sessions.GetSessionStatus(c.Param("id"))
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleCancelSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Sessions.CancelSession(id); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": id, "status": "cancelling"})
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
