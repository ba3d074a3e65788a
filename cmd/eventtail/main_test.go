package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"catalystbot/shared/kafka"
	"catalystbot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFilter(t *testing.T) {
	f := eventFilter{sessionID: "abc", minSeverity: types.SeverityWarning}

	assert.True(t, f.match(&types.ActivityEvent{SessionID: "abc", Severity: types.SeverityError}))
	assert.True(t, f.match(&types.ActivityEvent{SessionID: "abc", Severity: types.SeverityWarning}))
	assert.False(t, f.match(&types.ActivityEvent{SessionID: "abc", Severity: types.SeverityInfo}))
	assert.False(t, f.match(&types.ActivityEvent{SessionID: "other", Severity: types.SeverityError}))

	all := eventFilter{minSeverity: types.SeverityInfo}
	assert.True(t, all.match(&types.ActivityEvent{Severity: types.SeverityInfo}))
}

func TestTypedHandler_PrintsMatchingEvents(t *testing.T) {
	var buf bytes.Buffer
	h := &kafka.TypedMessageHandler[types.ActivityEvent]{
		Validate:   eventFilter{minSeverity: types.SeverityWarning}.match,
		Process:    printer(&buf),
		AlwaysMark: true,
	}

	ev := `{"session_id":"0123456789","seq":4,"timestamp":"2026-01-02T10:11:12Z","severity":"WARNING","category":"scraping","action":"source_failed","message":"cnbc: 503"}`
	mark, err := h.HandleMessage(context.Background(), []byte(ev))
	require.NoError(t, err)
	assert.True(t, mark)
	assert.Equal(t, "10:11:12.000 01234567 WARNING scraping/source_failed cnbc: 503\n", buf.String())

	buf.Reset()
	mark, err = h.HandleMessage(context.Background(), []byte(`{"severity":"INFO","category":"progress","action":"batch"}`))
	require.NoError(t, err)
	assert.True(t, mark)
	assert.Empty(t, buf.String())

	mark, err = h.HandleMessage(context.Background(), []byte("{broken"))
	assert.Error(t, err)
	assert.True(t, mark)
}

func TestPrinter_SystemEvents(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, printer(&buf)(context.Background(), &types.ActivityEvent{
		Timestamp: ts, Severity: types.SeverityInfo, Category: "system", Action: "ready", Message: "up",
	}))
	assert.Equal(t, "03:04:05.000 system   INFO    system/ready up\n", buf.String())
}
