package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catalystbot/types"

	"github.com/gin-gonic/gin"
)

// RegisterEventRoutes registers activity event endpoints.
func (s *Server) RegisterEventRoutes(r *gin.Engine) {
	g := r.Group("/api/sessions/:id")
	g.GET("/events", s.handleEventStream)
	g.GET("/history", s.handleEventHistory)
}

// handleEventHistory returns the retained events for a session.
func (s *Server) handleEventHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Sessions.GetSessionStatus(id); err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": s.deps.Events.History(id)})
}

// handleEventStream replays retained events, then streams new ones as SSE
// until the session's stream closes, the client goes away or the server shuts
// down. Events a slow client missed are filled in from the history.
func (s *Server) handleEventStream(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Sessions.GetSessionStatus(id); err != nil {
		writeSessionError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	history, live, cancel := s.deps.Events.Subscribe(id)
	defer cancel()

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	var last uint64
	write := func(ev types.ActivityEvent) {
		if ev.Seq <= last {
			return
		}
		sseWrite(c.Writer, "activity", ev)
		last = ev.Seq
	}
	// catchUp writes retained events after the last one sent and before upTo
	// (0 means no upper bound).
	catchUp := func(upTo uint64) {
		for _, ev := range s.deps.Events.History(id) {
			if upTo == 0 || ev.Seq < upTo {
				write(ev)
			}
		}
	}

	for _, ev := range history {
		write(ev)
	}
	flusher.Flush()

	ctx := c.Request.Context()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.streams.Done():
			sseWrite(c.Writer, "shutdown", "server shutting down")
			flusher.Flush()
			return
		case <-ticker.C:
			sseWrite(c.Writer, "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
		case ev, ok := <-live:
			if !ok {
				catchUp(0)
				flusher.Flush()
				return
			}
			if ev.Seq > last+1 {
				catchUp(ev.Seq)
			}
			write(ev)
			flusher.Flush()
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, event string, data any) {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			payload = fmt.Sprintf("%v", v)
		} else {
			payload = string(b)
		}
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}
