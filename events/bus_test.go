package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"catalystbot/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps everything it is handed.
type recordingSink struct {
	mu     sync.Mutex
	events []types.ActivityEvent
}

func (r *recordingSink) Publish(_ string, ev types.ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) all() []types.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ActivityEvent(nil), r.events...)
}

func TestStream_DeliversInEmitOrder(t *testing.T) {
	sink := &recordingSink{}
	bus := NewBus(sink, zerolog.Nop())
	stream := bus.Open("s1")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				stream.Emit(types.SeverityInfo, types.CategoryProgress, "tick",
					fmt.Sprintf("worker %d event %d", w, i), map[string]any{"worker": w, "i": i})
			}
		}(w)
	}
	wg.Wait()
	stream.Close()

	got := sink.all()
	require.Len(t, got, 400)
	lastPerWorker := map[int]int{}
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, "s1", ev.SessionID)
		w := ev.Details["worker"].(int)
		n := ev.Details["i"].(int)
		if prev, ok := lastPerWorker[w]; ok {
			assert.Greater(t, n, prev, "events from one emitter must not reorder")
		}
		lastPerWorker[w] = n
	}
}

func TestStream_EmitAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	stream := NewBus(sink, zerolog.Nop()).Open("s1")

	stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "start", "go", nil)
	stream.Close()
	stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "late", "ignored", nil)
	stream.Close()

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, "start", got[0].Action)
}

func TestBus_SystemStreamHasNoSession(t *testing.T) {
	sink := &recordingSink{}
	bus := NewBus(sink, zerolog.Nop())
	assert.Same(t, bus.System(), bus.System())

	bus.System().Emit(types.SeverityInfo, types.CategorySystem, "boot", "up", nil)
	bus.System().Close()

	got := sink.all()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].SessionID)
}

func TestHub_HistoryAndSubscribers(t *testing.T) {
	hub := NewHub()
	hub.limit = 3

	for i := 1; i <= 5; i++ {
		hub.Publish("s1", types.ActivityEvent{Seq: uint64(i)})
	}
	hist := hub.History("s1")
	require.Len(t, hist, 3)
	assert.Equal(t, uint64(3), hist[0].Seq)

	replay, ch, cancel := hub.Subscribe("s1")
	assert.Len(t, replay, 3)

	hub.Publish("s1", types.ActivityEvent{Seq: 6})
	hub.Publish("other", types.ActivityEvent{Seq: 1})
	ev := <-ch
	assert.Equal(t, uint64(6), ev.Seq)

	cancel()
	cancel()
	hub.Publish("s1", types.ActivityEvent{Seq: 7})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after cancel: %+v", ev)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, _, cancel := hub.Subscribe("s1")
	defer cancel()

	for i := 0; i < 500; i++ {
		hub.Publish("s1", types.ActivityEvent{Seq: uint64(i)})
	}
	assert.Len(t, hub.History("s1"), hub.limit)
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	MultiSink{a, b}.Publish("s", types.ActivityEvent{Action: "x"})
	assert.Len(t, a.all(), 1)
	assert.Len(t, b.all(), 1)
}

// endingSink records which sessions were ended.
type endingSink struct {
	recordingSink
	ended []string
}

func (e *endingSink) End(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ended = append(e.ended, sessionID)
}

func TestMultiSink_ForwardsEnd(t *testing.T) {
	a, b := &endingSink{}, &recordingSink{}
	MultiSink{a, b}.End("s1")
	assert.Equal(t, []string{"s1"}, a.ended)
}

func TestStream_CloseEndsSessionAfterLastEvent(t *testing.T) {
	sink := &endingSink{}
	stream := NewBus(sink, zerolog.Nop()).Open("s1")
	stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "complete", "done", nil)
	stream.Close()

	require.Len(t, sink.all(), 1)
	assert.Equal(t, []string{"s1"}, sink.ended)
}

func TestHub_UndrainedSubscriberStillSeesTerminalEvent(t *testing.T) {
	hub := NewHub()
	bus := NewBus(hub, zerolog.Nop())
	_, ch, cancel := hub.Subscribe("s1")
	defer cancel()

	stream := bus.Open("s1")
	for i := 0; i < 70; i++ {
		stream.Emit(types.SeverityInfo, types.CategoryProgress, "batch", "tick", nil)
	}
	stream.Emit(types.SeverityInfo, types.CategoryAnalysis, "complete", "done", nil)
	stream.Close()

	var received []types.ActivityEvent
	for ev := range ch {
		received = append(received, ev)
	}
	assert.Less(t, len(received), 71, "a full subscriber buffer drops live events")

	hist := hub.History("s1")
	last := hist[len(hist)-1]
	assert.Equal(t, "complete", last.Action)
	assert.Equal(t, uint64(71), last.Seq)
}

func TestHub_SubscribeAfterEnd(t *testing.T) {
	hub := NewHub()
	hub.Publish("s1", types.ActivityEvent{Seq: 1, Action: "complete"})
	hub.End("s1")
	hub.End("s1")

	replay, ch, cancel := hub.Subscribe("s1")
	defer cancel()
	assert.Len(t, replay, 1)
	_, open := <-ch
	assert.False(t, open)
}

func TestHub_EvictsHistoryOfOldEndedSessions(t *testing.T) {
	hub := NewHub()
	hub.maxEnded = 2

	for _, id := range []string{"a", "b", "c"} {
		hub.Publish(id, types.ActivityEvent{Seq: 1})
		hub.End(id)
	}
	hub.Publish("live", types.ActivityEvent{Seq: 1})

	assert.Empty(t, hub.History("a"))
	assert.Len(t, hub.History("b"), 1)
	assert.Len(t, hub.History("c"), 1)
	assert.Len(t, hub.History("live"), 1)

	_, ch, cancel := hub.Subscribe("a")
	defer cancel()
	_, open := <-ch
	assert.False(t, open, "an evicted session still reads as ended")
}

func TestKafkaSink_PublishesKeyedJSON(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev types.ActivityEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Action != "complete" {
			return fmt.Errorf("unexpected action %q", ev.Action)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(errors.New("broker down"))

	sink := NewKafkaSink(producer, "events", zerolog.Nop())
	sink.Publish("s1", types.ActivityEvent{Seq: 1, Action: "complete"})
	sink.Publish("", types.ActivityEvent{Seq: 2, Action: "boot"})

	require.NoError(t, sink.Close())
}
