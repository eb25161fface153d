package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/stackguard/internal/model"
)

// ResultCache stores analysis results keyed by product identity and the
// attributes that affect scoring. Entries are serialized on write so every
// read yields an independent copy.
type ResultCache struct {
	store  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewResultCache wraps a byte cache
func NewResultCache(store Cache, ttl time.Duration, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResultCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// New builds the configured result cache: bounded memory, plus a disk layer
// when a directory is configured.
func New(cfg model.CacheConfig, logger *slog.Logger) *ResultCache {
	var store Cache = NewMemoryCache(cfg.TTL, cfg.MaxEntries)
	if cfg.Dir != "" {
		store = NewLayeredCache(store, NewDiskCache(cfg.Dir, cfg.TTL))
	}
	return NewResultCache(store, cfg.TTL, logger)
}

// Get returns the cached result for key. Undecodable entries are misses.
func (c *ResultCache) Get(key string) (*model.AnalysisResult, bool) {
	data, found := c.store.Get(key)
	if !found {
		return nil, false
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

// Set stores a result under key
func (c *ResultCache) Set(key string, result *model.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return c.store.Set(key, data, c.ttl)
}

// Clear drops every entry
func (c *ResultCache) Clear() error {
	return c.store.Clear()
}

// ProductKey derives the cache key for a product analysis. Products with the
// same identity, ingredient list and verification flags share a key.
func ProductKey(p model.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "id=%s\n", strings.TrimSpace(p.ID))
	fmt.Fprintf(&b, "name=%s\n", model.NormalizeName(p.Name))
	fmt.Fprintf(&b, "brand=%s\n", model.NormalizeName(p.Brand))
	fmt.Fprintf(&b, "verified=%t\n", p.Verified)
	fmt.Fprintf(&b, "third_party=%t\n", p.ThirdPartyTested)
	for _, cert := range p.Certifications {
		fmt.Fprintf(&b, "cert=%s\n", model.NormalizeName(cert))
	}
	for _, ing := range p.Ingredients {
		fmt.Fprintf(&b, "ing=%s|%s|%g|%s\n",
			model.NormalizeName(ing.Name), model.NormalizeName(ing.Form), ing.Amount, strings.ToLower(ing.Unit))
	}
	return CacheKey("analysis", []byte(b.String()))
}
