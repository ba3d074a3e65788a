package events

import (
	"sync"

	"catalystbot/config"
	"catalystbot/types"

	"github.com/rs/zerolog"
)

// LogSink writes events to a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink that logs every event.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "activity").Logger()}
}

func (s *LogSink) Publish(sessionID string, ev types.ActivityEvent) {
	var e *zerolog.Event
	switch ev.Severity {
	case types.SeverityError:
		e = s.log.Error()
	case types.SeverityWarning:
		e = s.log.Warn()
	default:
		e = s.log.Info()
	}
	e.Str("session", sessionID).
		Uint64("seq", ev.Seq).
		Str("category", ev.Category).
		Str("action", ev.Action).
		Fields(ev.Details).
		Msg(ev.Message)
}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(sessionID string, ev types.ActivityEvent) {
	for _, s := range m {
		s.Publish(sessionID, ev)
	}
}

// End forwards to every member that tracks session ends.
func (m MultiSink) End(sessionID string) {
	for _, s := range m {
		if e, ok := s.(SessionEnder); ok {
			e.End(sessionID)
		}
	}
}

// Hub keeps a bounded history per session and fans events out to live
// subscribers. Slow subscribers miss events rather than stall the session;
// they catch up from History. When a session's stream closes, its subscriber
// channels are closed and its history is kept until more than maxEnded later
// sessions have also ended. Only the ended marker outlives that.
type Hub struct {
	mu       sync.RWMutex
	limit    int
	maxEnded int
	history  map[string][]types.ActivityEvent
	subs     map[string]map[chan types.ActivityEvent]struct{}
	ended    map[string]struct{}
	endOrder []string
}

// NewHub creates a hub keeping up to config.EventHistory events per session
// for the last config.EventRetainedSessions ended sessions.
func NewHub() *Hub {
	return &Hub{
		limit:    config.EventHistory,
		maxEnded: config.EventRetainedSessions,
		history:  make(map[string][]types.ActivityEvent),
		subs:     make(map[string]map[chan types.ActivityEvent]struct{}),
		ended:    make(map[string]struct{}),
	}
}

func (h *Hub) Publish(sessionID string, ev types.ActivityEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	hist := append(h.history[sessionID], ev)
	if len(hist) > h.limit {
		hist = hist[len(hist)-h.limit:]
	}
	h.history[sessionID] = hist

	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// End closes the session's subscriber channels and schedules its history for
// eviction.
func (h *Hub) End(sessionID string) {
	if sessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[sessionID] {
		close(ch)
	}
	delete(h.subs, sessionID)

	if _, ok := h.ended[sessionID]; ok {
		return
	}
	h.ended[sessionID] = struct{}{}
	h.endOrder = append(h.endOrder, sessionID)
	for len(h.endOrder) > h.maxEnded {
		oldest := h.endOrder[0]
		h.endOrder = h.endOrder[1:]
		delete(h.history, oldest)
	}
}

// History returns the retained events for a session, oldest first.
func (h *Hub) History(sessionID string) []types.ActivityEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]types.ActivityEvent(nil), h.history[sessionID]...)
}

// Subscribe returns the retained history and a channel of later events. The
// channel is closed once the session's stream has closed, immediately so for
// a session that already ended. Call cancel to stop receiving.
func (h *Hub) Subscribe(sessionID string) (history []types.ActivityEvent, ch <-chan types.ActivityEvent, cancel func()) {
	c := make(chan types.ActivityEvent, 64)

	h.mu.Lock()
	history = append([]types.ActivityEvent(nil), h.history[sessionID]...)
	if _, ok := h.ended[sessionID]; ok {
		h.mu.Unlock()
		close(c)
		return history, c, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan types.ActivityEvent]struct{})
	}
	h.subs[sessionID][c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], c)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
		})
	}
	return history, c, cancel
}
