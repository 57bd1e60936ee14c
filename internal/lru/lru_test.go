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

package lru

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingLock struct {
	sync.Mutex
	locks int
}

func (l *countingLock) Lock() {
	l.Mutex.Lock()
	l.locks++
}

// counter returns a value constructor recording the keys it was asked for.
func counter(created *[]string) func(string) func() int {
	return func(key string) func() int {
		return func() int {
			*created = append(*created, key)
			return len(*created)
		}
	}
}

func TestCacheEviction(t *testing.T) {
	var created []string
	newValue := counter(&created)
	c := New[string, int](2, &sync.Mutex{})
	c.GetOrAdd("a", newValue("a"))
	c.GetOrAdd("b", newValue("b"))
	if v := c.GetOrAdd("a", newValue("a")); v != 1 {
		t.Errorf("a should be cached, got %d", v)
	}
	c.GetOrAdd("c", newValue("c"))
	// b was least recently used, so it is the one rebuilt.
	c.GetOrAdd("a", newValue("a"))
	c.GetOrAdd("b", newValue("b"))
	if d := cmp.Diff([]string{"a", "b", "c", "b"}, created); d != "" {
		t.Errorf("Unexpected constructions:\n%s", d)
	}
}

func TestCacheUnbounded(t *testing.T) {
	c := New[int, int](0, nil)
	calls := 0
	for i := 0; i < 1000; i++ {
		c.GetOrAdd(i, func() int { calls++; return i })
	}
	if v := c.GetOrAdd(0, func() int { calls++; return -1 }); v != 0 {
		t.Errorf("Oldest entry was evicted")
	}
	if calls != 1000 {
		t.Errorf("Unexpected constructions: %d", calls)
	}
}

func TestCacheGetOrAdd(t *testing.T) {
	c := New[string, *int](-1, NoLock{})
	calls := 0
	newValue := func() *int {
		calls++
		v := calls
		return &v
	}
	first := c.GetOrAdd("x", newValue)
	second := c.GetOrAdd("x", newValue)
	if first != second {
		t.Error("GetOrAdd returned a different value for the same key")
	}
	if calls != 1 {
		t.Errorf("newValue called %d times", calls)
	}
	if !c.Remove("x") {
		t.Error("Remove reported key absent")
	}
	if c.Remove("x") {
		t.Error("Remove reported key present twice")
	}
	if third := c.GetOrAdd("x", newValue); third == first {
		t.Error("Expected a new value after Remove")
	}
}

func TestCacheLockPolicy(t *testing.T) {
	lock := &countingLock{}
	c := New[string, int](1, lock)
	c.GetOrAdd("a", func() int { return 1 })
	c.GetOrAdd("a", func() int { return 2 })
	_ = c.Remove("a")
	if lock.locks != 3 {
		t.Errorf("Expected 3 lock acquisitions, got %d", lock.locks)
	}
}
