package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"price-action-bot/internal/position"
)

const (
	// positionKeyPrefix is the prefix for individual position snapshot keys.
	// Format: pab:position:{id}
	positionKeyPrefix = "pab:position"

	// positionListKey holds the set of open position ids.
	positionListKey = "pab:positions:list"

	// positionStateTTL keeps snapshots around well past any plausible hold
	// time so a crashed process can always recover its book.
	positionStateTTL = 7 * 24 * time.Hour
)

// persistedPosition is the wire form of a position snapshot.
type persistedPosition struct {
	Position position.Position `json:"position"`
	SavedAt  time.Time         `json:"saved_at"`
}

// PositionStateRepository stores open-position snapshots in Redis so the
// book survives a restart. When Redis is unavailable it falls back to an
// in-memory cache and trading continues uninterrupted.
type PositionStateRepository struct {
	client         *redis.Client
	inMemoryCache  map[string]persistedPosition
	cacheMu        sync.RWMutex
	redisAvailable atomic.Bool
	logger         zerolog.Logger
}

// NewPositionStateRepository creates the repository. A nil client means
// memory-only mode.
func NewPositionStateRepository(client *redis.Client, logger zerolog.Logger) *PositionStateRepository {
	repo := &PositionStateRepository{
		client:        client,
		inMemoryCache: make(map[string]persistedPosition),
		logger:        logger.With().Str("component", "position_state").Logger(),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			repo.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory cache")
			repo.redisAvailable.Store(false)
		} else {
			repo.logger.Info().Msg("Redis connected")
			repo.redisAvailable.Store(true)
		}
	} else {
		repo.logger.Info().Msg("no Redis client provided, using in-memory cache only")
		repo.redisAvailable.Store(false)
	}

	return repo
}

func (r *PositionStateRepository) positionKey(id string) string {
	return fmt.Sprintf("%s:%s", positionKeyPrefix, id)
}

// SavePosition persists a snapshot of an open position. The in-memory cache
// is always updated; a Redis failure downgrades to cache-only, never an
// error to the caller.
func (r *PositionStateRepository) SavePosition(ctx context.Context, p position.Position) error {
	state := persistedPosition{Position: p, SavedAt: time.Now().UTC()}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal position state: %w", err)
	}

	r.cacheMu.Lock()
	r.inMemoryCache[p.ID] = state
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, r.positionKey(p.ID), data, positionStateTTL)
		pipe.SAdd(ctx, positionListKey, p.ID)
		pipe.Expire(ctx, positionListKey, positionStateTTL)

		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("failed to save to Redis, using in-memory cache")
			r.redisAvailable.Store(false)
		}
	}
	return nil
}

// LoadPositions returns all persisted open positions, Redis first with the
// in-memory cache as fallback.
func (r *PositionStateRepository) LoadPositions(ctx context.Context) ([]position.Position, error) {
	if r.client != nil && r.redisAvailable.Load() {
		ids, err := r.client.SMembers(ctx, positionListKey).Result()
		if err == nil {
			out := make([]position.Position, 0, len(ids))
			for _, id := range ids {
				data, err := r.client.Get(ctx, r.positionKey(id)).Result()
				if err == redis.Nil {
					continue
				}
				if err != nil {
					r.logger.Warn().Err(err).Msg("Redis read error, using in-memory cache")
					r.redisAvailable.Store(false)
					return r.cachedPositions(), nil
				}
				var state persistedPosition
				if err := json.Unmarshal([]byte(data), &state); err != nil {
					r.logger.Error().Err(err).Str("position_id", id).Msg("corrupt position snapshot skipped")
					continue
				}
				out = append(out, state.Position)
			}
			return out, nil
		}
		r.logger.Warn().Err(err).Msg("Redis list error, using in-memory cache")
		r.redisAvailable.Store(false)
	}
	return r.cachedPositions(), nil
}

// DeletePosition removes a closed position's snapshot.
func (r *PositionStateRepository) DeletePosition(ctx context.Context, id string) error {
	r.cacheMu.Lock()
	delete(r.inMemoryCache, id)
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.positionKey(id))
		pipe.SRem(ctx, positionListKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("failed to delete from Redis")
			r.redisAvailable.Store(false)
		}
	}
	return nil
}

func (r *PositionStateRepository) cachedPositions() []position.Position {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	out := make([]position.Position, 0, len(r.inMemoryCache))
	for _, state := range r.inMemoryCache {
		out = append(out, state.Position)
	}
	return out
}
