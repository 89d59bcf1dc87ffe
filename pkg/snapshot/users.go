package snapshot

import (
	"os/user"
	"strconv"
	"sync"
)

// UserCache memoizes UID→username lookups across scrapes. Lookups are
// safe for concurrent use; staleness is acceptable since UID→name
// mappings rarely change on a running host. It is passed into the
// pipeline explicitly so tests can substitute an empty or pre-seeded
// cache.
type UserCache struct {
	mu sync.Mutex
	m  map[int]string

	// lookup is a seam for tests; defaults to os/user.
	lookup func(uid string) (*user.User, error)
}

// NewUserCache returns an empty cache backed by os/user.
func NewUserCache() *UserCache {
	return &UserCache{
		m:      make(map[int]string),
		lookup: user.LookupId,
	}
}

// Lookup resolves a UID to a username, falling back to the numeric UID
// string when the user database has no entry. Failed lookups are cached
// too, so an unresolvable UID costs one database hit per process
// lifetime, not one per scrape.
func (c *UserCache) Lookup(uid int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.m[uid]; ok {
		return name
	}
	name := strconv.Itoa(uid)
	if u, err := c.lookup(name); err == nil && u.Username != "" {
		name = u.Username
	}
	c.m[uid] = name
	return name
}
