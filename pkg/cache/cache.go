// Package cache keeps adapter results for a short time, keyed by the bank and
// session they were fetched under.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/db"
	"github.com/vpnda/statement-relay/pkg/models"
)

// DefaultTTL is how long a cached adapter result stays valid.
const DefaultTTL = 15 * time.Minute

const keyPrefix = "cached"

// keyEscaper keeps the separator out of key components, so that distinct
// components never join into the same key.
var keyEscaper = strings.NewReplacer("%", "%25", "_", "%5F")

// Key builds cached_{operation}_{bankId}_{sessionId}[_{accountId}]. Any change in
// bank, session or account yields a different key.
func Key(operation, bankID, sessionID string, accountID ...string) string {
	parts := []string{keyPrefix}
	for _, p := range append([]string{operation, bankID, sessionID}, accountID...) {
		parts = append(parts, keyEscaper.Replace(p))
	}
	return strings.Join(parts, "_")
}

// Fingerprint identifies key in logs. Keys hold session ids, which are
// credentials for most banks.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}

type Cache struct {
	store db.DBInterface
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now, tests use it to move past the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func New(store db.DBInterface, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the entry under key into v. Expired entries are evicted and
// reported as a miss.
func (c *Cache) Get(key string, v any) (bool, error) {
	entry, err := c.store.GetEntry(key)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}

	if c.now().Sub(entry.Timestamp) >= c.ttl {
		log.Debug().Str("entry", Fingerprint(key)).Msg("cache entry expired")
		if err := c.store.DeleteEntry(key); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, v); err != nil {
		// an unreadable entry is as good as a missing one
		log.Warn().Err(err).Str("entry", Fingerprint(key)).Msg("dropping undecodable cache entry")
		if err := c.store.DeleteEntry(key); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Set stores v under key stamped with the current time.
func (c *Cache) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.store.PutEntry(key, &models.CacheEntry{
		Data:      b,
		Timestamp: c.now(),
	})
}

// Clear removes every entry regardless of key.
func (c *Cache) Clear() error {
	return c.store.ClearEntries()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}
