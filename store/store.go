// Package store persists articles, analyses and positions, and backs the
// analysis cache.
package store

import (
	"context"
	"errors"
	"fmt"

	"catalystbot/config"
	"catalystbot/types"

	"github.com/rs/zerolog"
)

// Store is everything the pipeline needs from persistence.
type Store interface {
	SaveArticle(ctx context.Context, a types.Article) error
	SaveAnalysis(ctx context.Context, a types.Analysis) error
	SavePosition(ctx context.Context, sessionID string, p types.Position) error
	MarkProcessed(ctx context.Context, articleID string) error
	IsProcessed(ctx context.Context, articleID string) (bool, error)
	GetCachedAnalysis(ctx context.Context, fingerprint string) (types.Analysis, bool, error)
	PutCachedAnalysis(ctx context.Context, fingerprint string, a types.Analysis) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrUnknownBackend is returned by Open for an unrecognised STORE value.
var ErrUnknownBackend = errors.New("unknown store backend")

// Open builds the backend named by settings.Store.
func Open(settings config.Settings, logger zerolog.Logger) (Store, error) {
	switch settings.Store {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(RedisConfig{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPass,
			DB:       settings.RedisDB,
			TTL:      settings.CacheTTL,
		})
	case "sqlite":
		return NewSQL(settings.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, settings.Store)
	}
}
