package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a namespaced cache key from arbitrary key material
func CacheKey(namespace string, material []byte) string {
	hash := sha256.Sum256(material)
	return "stackguard:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}
