// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package lru provides a least-recently-used cache whose locking behaviour is
// chosen once, at construction time.
package lru

import (
	"math"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// NoLock is a sync.Locker which does nothing. Use it for caches which are
// confined to a single goroutine.
type NoLock struct{}

var _ sync.Locker = NoLock{}

// Lock does nothing.
func (NoLock) Lock() {}

// Unlock does nothing.
func (NoLock) Unlock() {}

// Cache is an LRU cache. A Cache with a non-positive size never evicts.
type Cache[K comparable, V any] struct {
	mu    sync.Locker
	store *simplelru.LRU[K, V]
}

// New returns a new cache holding at most size entries, guarded by mu. A nil
// mu is treated as NoLock.
func New[K comparable, V any](size int, mu sync.Locker) *Cache[K, V] {
	if size <= 0 {
		size = math.MaxInt
	}
	if mu == nil {
		mu = NoLock{}
	}
	// NewLRU only fails for a non-positive size.
	store, _ := simplelru.NewLRU[K, V](size, nil)
	return &Cache[K, V]{
		mu:    mu,
		store: store,
	}
}

// GetOrAdd returns the value stored under key, marking it most recently
// used. If there is none, the result of newValue is stored and returned,
// evicting the oldest entry if the cache is full.
func (c *Cache[K, V]) GetOrAdd(key K, newValue func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.store.Get(key); ok {
		return v
	}
	v := newValue()
	c.store.Add(key, v)
	return v
}

// Remove deletes key from the cache, reporting whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Remove(key)
}
