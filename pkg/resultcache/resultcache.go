// Package resultcache caches full analysis results for the server so
// repeated requests for the same hypnogram and parameters skip the
// pipeline.
package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/somnolab/hypnocycle/pkg/analyzer"
)

// Cache is a bounded in-memory result cache with write-expiry.
type Cache struct {
	cache  *otter.Cache[string, *analyzer.Result]
	logger *slog.Logger
}

// New builds a cache holding up to 10k results, each expiring ttl
// after being stored.
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		cache: otter.Must(&otter.Options[string, *analyzer.Result]{
			MaximumSize:      10_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, *analyzer.Result](ttl),
		}),
		logger: logger,
	}
}

// Key derives the cache key from the hypnogram source and every
// parameter that can change the result.
func Key(source string, wakeThreshold, minLength, minSeparation, epoch time.Duration, dropTrailing bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%d|%t", source, wakeThreshold, minLength, minSeparation, epoch, dropTrailing)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key, if present.
func (c *Cache) Get(key string) (*analyzer.Result, bool) {
	result, found := c.cache.GetIfPresent(key)
	if !found {
		c.logger.Debug("result cache miss", "key", key)
		return nil, false
	}
	return result, true
}

// Set stores a result under key.
func (c *Cache) Set(key string, result *analyzer.Result) {
	c.cache.Set(key, result)
	c.logger.Debug("result cache set", "key", key, "cycles", len(result.Cycles))
}
