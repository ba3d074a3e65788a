// Package events carries ActivityEvents from a session to observers. Each
// session writes to its own ordered channel; one goroutine per session drains
// it into a Sink.
package events

import (
	"sync"
	"time"

	"catalystbot/config"
	"catalystbot/types"

	"github.com/rs/zerolog"
)

// Emitter is how pipeline components report progress.
type Emitter interface {
	Emit(severity types.Severity, category, action, message string, details map[string]any)
}

type discard struct{}

func (discard) Emit(types.Severity, string, string, string, map[string]any) {}

// Discard drops every event.
var Discard Emitter = discard{}

// Sink receives events in order for each session.
type Sink interface {
	Publish(sessionID string, ev types.ActivityEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(sessionID string, ev types.ActivityEvent)

func (f SinkFunc) Publish(sessionID string, ev types.ActivityEvent) { f(sessionID, ev) }

// SessionEnder is implemented by sinks that want to know when a session's
// stream has closed and every one of its events has been published.
type SessionEnder interface {
	End(sessionID string)
}

// Bus opens per-session streams over a shared sink.
type Bus struct {
	sink   Sink
	buffer int
	log    zerolog.Logger
	now    func() time.Time

	systemOnce sync.Once
	system     *Stream
}

// NewBus creates a bus publishing into sink.
func NewBus(sink Sink, logger zerolog.Logger) *Bus {
	return &Bus{
		sink:   sink,
		buffer: config.EventBuffer,
		log:    logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
}

// Open starts the stream for a session. Close it when the session ends.
func (b *Bus) Open(sessionID string) *Stream {
	s := &Stream{
		sessionID: sessionID,
		ch:        make(chan types.ActivityEvent, b.buffer),
		done:      make(chan struct{}),
		now:       b.now,
	}
	go s.drain(b.sink)
	return s
}

// System is the process-wide stream for events that belong to no session.
func (b *Bus) System() *Stream {
	b.systemOnce.Do(func() { b.system = b.Open("") })
	return b.system
}

// Stream is one session's ordered event channel. Sequence numbers are
// assigned under the stream lock at emit time, so the sink sees events in
// exactly the order they were emitted.
type Stream struct {
	sessionID string
	now       func() time.Time

	mu     sync.Mutex
	seq    uint64
	closed bool
	ch     chan types.ActivityEvent
	done   chan struct{}
}

// Emit enqueues an event. It blocks when the buffer is full and is a no-op
// after Close.
func (s *Stream) Emit(severity types.Severity, category, action, message string, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	s.ch <- types.ActivityEvent{
		SessionID: s.sessionID,
		Seq:       s.seq,
		Timestamp: s.now().UTC(),
		Severity:  severity,
		Category:  category,
		Action:    action,
		Message:   message,
		Details:   details,
	}
}

// Close stops accepting events and waits until everything queued has been
// published.
func (s *Stream) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
	<-s.done
}

// SessionID returns the session this stream belongs to.
func (s *Stream) SessionID() string { return s.sessionID }

func (s *Stream) drain(sink Sink) {
	defer close(s.done)
	for ev := range s.ch {
		sink.Publish(s.sessionID, ev)
	}
	if e, ok := sink.(SessionEnder); ok {
		e.End(s.sessionID)
	}
}
