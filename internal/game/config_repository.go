// Package game resolves per-game configuration from the games root.
package game

import (
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"puzzle-quiz-service/internal/domain"
	"puzzle-quiz-service/internal/levels"
)

// ConfigRepository caches parsed game configs with TTL so concurrent chat
// handlers don't hammer the filesystem for the same game.
type ConfigRepository struct {
	root  string
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedConfig
}

type cachedConfig struct {
	cfg       domain.GameConfig
	expiresAt time.Time
}

func NewConfigRepository(root string, ttl time.Duration) *ConfigRepository {
	return &ConfigRepository{
		root:  root,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedConfig),
	}
}

// Dir returns the directory of a game under the repository root.
func (r *ConfigRepository) Dir(gameType string) string {
	return filepath.Join(r.root, gameType)
}

// Get loads the config of a game, serving from cache while fresh.
func (r *ConfigRepository) Get(gameType string) (domain.GameConfig, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[gameType]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.cfg, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(gameType, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[gameType]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.cfg, nil
		}
		r.mu.RUnlock()

		store, err := levels.NewStore(r.Dir(gameType))
		if err != nil {
			return domain.GameConfig{}, err
		}
		cfg, err := store.Config()
		if err != nil {
			return domain.GameConfig{}, err
		}

		r.mu.Lock()
		r.cache[gameType] = cachedConfig{cfg: cfg, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return domain.GameConfig{}, err
	}
	return result.(domain.GameConfig), nil
}

func (r *ConfigRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
