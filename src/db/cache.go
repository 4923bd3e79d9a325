package db

import (
	"context"
	"sync"
	"time"

	"bankflow-server/src/models"

	"github.com/dgraph-io/ristretto"
)

const (
	allRulesCacheKey = "rules:all"
	// Upper bound on how long a rule list may be served without a reload.
	ruleCacheTTL = 10 * time.Minute
)

// Cache keys are tracked per cache name so a whole family can be cleared at once.
// Every Clear bumps the name's generation, which lets loaders detect that a
// value they read before the Clear is already stale.
type Cache struct {
	store *ristretto.Cache
	mu    sync.Mutex
	keys  map[string]map[string]struct{}
	gens  map[string]uint64
}

func NewCache() (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10000, // number of keys to track frequency of
		MaxCost:            10000,
		BufferItems:        64, // number of keys per Get buffer
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{
		store: store,
		keys:  make(map[string]map[string]struct{}),
		gens:  make(map[string]uint64),
	}, nil
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *Cache) Set(name, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(name, key, value, 0)
}

func (c *Cache) Generation(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[name]
}

// SetIfCurrent stores value only if name has not been cleared since gen was
// read. A zero ttl means no expiry.
func (c *Cache) SetIfCurrent(name, key string, value interface{}, gen uint64, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[name] != gen {
		return false
	}
	c.set(name, key, value, ttl)
	return true
}

// set requires c.mu.
func (c *Cache) set(name, key string, value interface{}, ttl time.Duration) {
	if c.keys[name] == nil {
		c.keys[name] = make(map[string]struct{})
	}
	c.keys[name][key] = struct{}{}
	c.store.SetWithTTL(key, value, 1, ttl)
	c.store.Wait()
}

// Clear drops every key registered under name and reports whether name was known.
func (c *Cache) Clear(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[name]++
	keys, ok := c.keys[name]
	for key := range keys {
		c.store.Del(key)
	}
	delete(c.keys, name)
	return ok
}

func (c *Cache) Close() {
	c.store.Close()
}

type RuleLister interface {
	ListAllRules(ctx context.Context) ([]models.ClassificationRule, error)
}

// CachedRuleSource serves the rule set from cache. Every rule mutation must
// call Invalidate.
type CachedRuleSource struct {
	cache *Cache
	next  RuleLister
}

const RulesCacheName = "rules"

func NewCachedRuleSource(cache *Cache, next RuleLister) *CachedRuleSource {
	return &CachedRuleSource{cache: cache, next: next}
}

func (s *CachedRuleSource) ListAllRules(ctx context.Context) ([]models.ClassificationRule, error) {
	if cached, ok := s.cache.Get(allRulesCacheKey); ok {
		if rules, ok := cached.([]models.ClassificationRule); ok {
			return rules, nil
		}
	}
	gen := s.cache.Generation(RulesCacheName)
	rules, err := s.next.ListAllRules(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetIfCurrent(RulesCacheName, allRulesCacheKey, rules, gen, ruleCacheTTL)
	return rules, nil
}

func (s *CachedRuleSource) Invalidate() {
	s.cache.Clear(RulesCacheName)
}
