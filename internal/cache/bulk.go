package cache

import (
	"errors"
	"fmt"

	"github.com/Amund211/gqlcache/internal/domain"
)

// KeyMatcher selects the cache keys a bulk operation applies to. A nil matcher matches every key.
type KeyMatcher func(key string) bool

// Matching keys are collected up front, so listeners mutating the store can't cause keys
// to be skipped or visited twice. Keys removed by a listener before their turn are skipped.
func forEachMatching(c *Cache, matcher KeyMatcher, operation func(c *Cache, key string) error) error {
	if err := validateCache(c); err != nil {
		return err
	}

	for _, key := range c.Keys() {
		if matcher != nil && !matcher(key) {
			continue
		}
		if !c.Has(key) {
			continue
		}
		if err := operation(c, key); err != nil {
			return fmt.Errorf("failed to apply operation to cache key %s: %w", key, err)
		}
	}
	return nil
}

// Delete deletes every entry whose key matches
func Delete(c *Cache, matcher KeyMatcher) error {
	return forEachMatching(c, matcher, DeleteEntry)
}

// Prune prunes every entry whose key matches. Prevented prunes leave their entry in place.
func Prune(c *Cache, matcher KeyMatcher) error {
	return forEachMatching(c, matcher, PruneEntry)
}

// Stale marks every entry whose key matches as stale
func Stale(c *Cache, matcher KeyMatcher) error {
	return forEachMatching(c, matcher, func(c *Cache, key string) error {
		err := StaleEntry(c, key)
		if errors.Is(err, domain.ErrEntryNotFound) {
			// Removed between the presence check and the stale
			return nil
		}
		return err
	})
}
