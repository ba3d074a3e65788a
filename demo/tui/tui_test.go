package tui

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"catalystbot/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var cfg types.SessionConfig
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cfg))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "abc", "status": "running"})
	})
	mux.HandleFunc("GET /api/sessions/abc", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.AnalysisSession{
			ID:     "abc",
			Status: types.StatusCompleted,
			Positions: []types.Position{
				{Ticker: "NVDA", Tier: types.TierStrongBuy, SentimentScore: 0.82, Confidence: 0.9},
			},
		})
	})
	mux.HandleFunc("GET /api/sessions/abc/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"events": []types.ActivityEvent{
			{SessionID: "abc", Seq: 1, Category: "analysis", Action: "start"},
		}})
	})
	mux.HandleFunc("POST /api/sessions/abc/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"session already finished"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClient(t *testing.T) {
	srv := fakeAPI(t)
	c := NewAPIClient(srv.URL)

	id, err := c.StartSession(types.SessionConfig{Sources: []string{"yahoo"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	s, err := c.GetSession("abc")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, s.Status)
	require.Len(t, s.Positions, 1)

	events, err := c.History("abc")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	err = c.Cancel("abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	_, err = c.GetSession("missing")
	assert.Error(t, err)
}

func TestModel_StartAndPoll(t *testing.T) {
	srv := fakeAPI(t)
	m := NewModel(srv.URL, types.SessionConfig{Sources: []string{"yahoo"}}, "")
	assert.Nil(t, m.Init())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)
	msg := cmd()
	started, ok := msg.(SessionStartedMsg)
	require.True(t, ok)
	assert.Equal(t, "abc", started.ID)

	next, _ = next.(Model).Update(started)
	m = next.(Model)
	assert.Equal(t, "abc", m.SessionID)
	assert.True(t, m.running())

	poll := pollStatus(m.Client, m.SessionID)()
	next, _ = m.Update(poll)
	m = next.(Model)
	require.NotNil(t, m.Session)
	assert.False(t, m.running())
	assert.Contains(t, m.View(), "NVDA")
	assert.Contains(t, m.View(), TextFooterDone)
}

func TestModel_PollErrorDisconnects(t *testing.T) {
	m := NewModel("http://unused", types.SessionConfig{}, "abc")
	next, _ := m.Update(StatusUpdateMsg{Err: errors.New("connection refused")})
	m = next.(Model)
	assert.False(t, m.Connected)
	assert.Contains(t, m.View(), "connection refused")
}

func TestModel_KeepsRecentEvents(t *testing.T) {
	m := NewModel("http://unused", types.SessionConfig{}, "abc")
	var events []types.ActivityEvent
	for i := 0; i < maxLogLines+5; i++ {
		events = append(events, types.ActivityEvent{Seq: uint64(i + 1)})
	}
	next, _ := m.Update(StatusUpdateMsg{Session: &types.AnalysisSession{ID: "abc", Status: types.StatusRunning}, Events: events})
	m = next.(Model)
	require.Len(t, m.Events, maxLogLines)
	assert.Equal(t, uint64(6), m.Events[0].Seq)
}

func TestFormatPositions(t *testing.T) {
	out := formatPositions(nil)
	assert.Contains(t, out, "No positions")

	out = formatPositions([]types.Position{{
		Ticker: "TSLA", Tier: types.TierShort, SentimentScore: -0.55, Confidence: 0.7,
		Catalysts: []types.Catalyst{{Type: "legal"}, {Type: "earnings"}},
	}})
	assert.Contains(t, out, "TSLA")
	assert.Contains(t, out, "-0.55")
	assert.Contains(t, out, "legal,earnings")
}
