package store

import (
	"context"
	"sync"

	"catalystbot/types"
)

// Memory is an in-process Store. Nothing survives a restart.
type Memory struct {
	mu        sync.RWMutex
	articles  map[string]types.Article
	analyses  map[string]types.Analysis
	positions map[string][]types.Position
	processed map[string]struct{}
	cache     map[string]types.Analysis
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		articles:  make(map[string]types.Article),
		analyses:  make(map[string]types.Analysis),
		positions: make(map[string][]types.Position),
		processed: make(map[string]struct{}),
		cache:     make(map[string]types.Analysis),
	}
}

func (m *Memory) SaveArticle(_ context.Context, a types.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.articles[a.ID]; exists {
		return nil
	}
	a.Categories = append([]string(nil), a.Categories...)
	m.articles[a.ID] = a
	return nil
}

func (m *Memory) SaveAnalysis(_ context.Context, a types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[a.ID] = a.Clone()
	return nil
}

func (m *Memory) SavePosition(_ context.Context, sessionID string, p types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sessionID] = append(m.positions[sessionID], p.Clone())
	return nil
}

func (m *Memory) MarkProcessed(_ context.Context, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[articleID] = struct{}{}
	if a, ok := m.articles[articleID]; ok {
		a.Processed = true
		m.articles[articleID] = a
	}
	return nil
}

func (m *Memory) IsProcessed(_ context.Context, articleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[articleID]
	return ok, nil
}

func (m *Memory) GetCachedAnalysis(_ context.Context, fingerprint string) (types.Analysis, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.cache[fingerprint]
	return a.Clone(), ok, nil
}

func (m *Memory) PutCachedAnalysis(_ context.Context, fingerprint string, a types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[fingerprint] = a.Clone()
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

// Article returns a stored article by id.
func (m *Memory) Article(id string) (types.Article, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	return a, ok
}

// Analyses returns every stored analysis.
func (m *Memory) Analyses() []types.Analysis {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		out = append(out, a.Clone())
	}
	return out
}

// Positions returns the positions saved for a session, in save order.
func (m *Memory) Positions(sessionID string) []types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Position, len(m.positions[sessionID]))
	for i, p := range m.positions[sessionID] {
		out[i] = p.Clone()
	}
	return out
}
