package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalystbot/types"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis connection and key layout
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	// Prefix namespaces every key, default "catalyst"
	Prefix string
	// TTL applies to cached analyses and the processed set
	TTL time.Duration
}

// Redis stores JSON documents under prefixed keys. The processed set uses a
// sliding TTL refreshed on every add.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects and verifies the server responds.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return newRedisWithClient(client, cfg), nil
}

func newRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "catalyst"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *Redis) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// SaveArticle stores the article once; later saves for the same id are ignored.
func (r *Redis) SaveArticle(ctx context.Context, a types.Article) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	return r.client.SetNX(ctx, r.key("article", a.ID), data, r.ttl).Err()
}

func (r *Redis) SaveAnalysis(ctx context.Context, a types.Analysis) error {
	return r.setJSON(ctx, r.key("analysis", a.ID), a, r.ttl)
}

func (r *Redis) SavePosition(ctx context.Context, sessionID string, p types.Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	key := r.key("session", sessionID, "positions")
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) MarkProcessed(ctx context.Context, articleID string) error {
	key := r.key("processed")
	if err := r.client.SAdd(ctx, key, articleID).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

func (r *Redis) IsProcessed(ctx context.Context, articleID string) (bool, error) {
	return r.client.SIsMember(ctx, r.key("processed"), articleID).Result()
}

func (r *Redis) GetCachedAnalysis(ctx context.Context, fingerprint string) (types.Analysis, bool, error) {
	data, err := r.client.Get(ctx, r.key("cache", fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.Analysis{}, false, nil
	}
	if err != nil {
		return types.Analysis{}, false, err
	}
	var a types.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return types.Analysis{}, false, fmt.Errorf("decode cached analysis: %w", err)
	}
	return a, true, nil
}

func (r *Redis) PutCachedAnalysis(ctx context.Context, fingerprint string, a types.Analysis) error {
	return r.setJSON(ctx, r.key("cache", fingerprint), a, r.ttl)
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
