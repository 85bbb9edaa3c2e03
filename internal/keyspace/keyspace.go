// Package keyspace implements the in-memory key/value engine: a
// mutex-guarded map plus a min-heap expiration index swept by a background
// reaper goroutine.
package keyspace

import (
	"container/heap"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
)

// ErrKeyExpired is returned by Increment when the key it operates on has
// already passed its expiration deadline; the key is evicted as a side
// effect of the check.
var ErrKeyExpired = errors.New("keyspace: key expired")

// ErrNotFound is returned by operations that require an existing key.
var ErrNotFound = errors.New("keyspace: key not found")

// ErrNotInteger is returned by Increment when the stored value cannot be
// parsed as a base-10 int64.
var ErrNotInteger = errors.New("keyspace: value is not an integer")

// ErrOverflow is returned by Increment when adding one to the stored value
// would overflow int64.
var ErrOverflow = errors.New("keyspace: increment or decrement would overflow")

type entry struct {
	value      []byte
	expiresAt  time.Time // zero value means no expiration
	hasExpires bool
}

func (e *entry) expired(now time.Time) bool {
	return e.hasExpires && !now.Before(e.expiresAt)
}

// Keyspace is the concurrent key/value store. The zero value is not usable;
// construct with New.
type Keyspace struct {
	mu   sync.Mutex
	data map[string]*entry
	heap expirationHeap

	tick     time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	sweeps  atomic.Uint64
	expired atomic.Uint64
}

// New creates a Keyspace and starts its background reaper goroutine,
// sweeping the expiration index every tick. Call Close to stop the reaper.
func New(tick time.Duration) *Keyspace {
	ks := &Keyspace{
		data:   make(map[string]*entry),
		tick:   tick,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	heap.Init(&ks.heap)
	go ks.reap()
	return ks
}

// Close stops the reaper goroutine. Idempotent.
func (ks *Keyspace) Close() {
	ks.stopOnce.Do(func() { close(ks.stopCh) })
	<-ks.doneCh
}

func (ks *Keyspace) reap() {
	defer close(ks.doneCh)
	ticker := time.NewTicker(ks.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ks.stopCh:
			return
		case <-ticker.C:
			ks.sweepExpired()
		}
	}
}

// sweepExpired pops heap entries whose deadline has passed and deletes them
// from the map, tolerating stale heap entries left behind by Expire/Set
// overwriting a key's deadline: a popped entry is only honored if it still
// matches the map's current expiresAt for that key.
func (ks *Keyspace) sweepExpired() {
	now := time.Now()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	expiredCount := 0
	for ks.heap.Len() > 0 {
		top := ks.heap[0]
		if top.deadline.After(now) {
			break
		}
		heap.Pop(&ks.heap)

		e, ok := ks.data[top.key]
		if !ok {
			continue // already removed by Del or an expired Increment
		}
		if !e.hasExpires || !e.expiresAt.Equal(top.deadline) {
			continue // stale: key was re-set/expired with a new deadline
		}
		delete(ks.data, top.key)
		expiredCount++
	}

	ks.sweeps.Add(1)
	ks.expired.Add(uint64(expiredCount))
}

// Set stores key/value, optionally with a TTL. A zero ttl means no
// expiration.
func (ks *Keyspace) Set(key string, value []byte, ttl time.Duration) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.setLocked(key, value, ttl)
}

func (ks *Keyspace) setLocked(key string, value []byte, ttl time.Duration) {
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
		e.hasExpires = true
		heap.Push(&ks.heap, heapItem{key: key, deadline: e.expiresAt})
	}
	ks.data[key] = e
}

// Get returns the value for key, or ErrNotFound if it does not exist or has
// expired (lazy expiration: an expired-but-not-yet-reaped key reads as
// absent).
func (ks *Keyspace) Get(key string) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, ok := ks.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Exists reports how many of the given keys are currently present
// (non-expired).
func (ks *Keyspace) Exists(keys []string) int {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	count := 0
	for _, k := range keys {
		if e, ok := ks.data[k]; ok && !e.expired(now) {
			count++
		}
	}
	return count
}

// Del removes the given keys and returns how many were actually present.
func (ks *Keyspace) Del(keys []string) int {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	count := 0
	for _, k := range keys {
		if e, ok := ks.data[k]; ok {
			if !e.expired(now) {
				count++
			}
			delete(ks.data, k)
		}
	}
	return count
}

// Size returns the number of entries currently stored, including keys that
// have expired but have not yet been reaped — matching the original
// implementation's plain map length.
func (ks *Keyspace) Size() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return len(ks.data)
}

// Flush removes every key.
func (ks *Keyspace) Flush() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.data = make(map[string]*entry)
	ks.heap = ks.heap[:0]
}

// Keys returns every non-expired key matching a glob pattern (`*`, `?`,
// `[...]`), evaluated with github.com/gobwas/glob.
func (ks *Keyspace) Keys(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := time.Now()
	matches := make([]string, 0)
	for k, e := range ks.data {
		if e.expired(now) {
			continue
		}
		if g.Match(k) {
			matches = append(matches, k)
		}
	}
	return matches, nil
}

// Increment parses key's value as a base-10 int64, adds one, and stores the
// result back. A missing key is treated as 0. An expired key returns
// ErrKeyExpired after evicting it, matching original_source's db.rs
// behavior of removing the stale entry on the failed increment attempt.
func (ks *Keyspace) Increment(key string) (int64, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, ok := ks.data[key]
	if ok && e.expired(time.Now()) {
		delete(ks.data, key)
		return 0, ErrKeyExpired
	}

	if !ok {
		ks.setLocked(key, []byte("1"), 0)
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	if n == math.MaxInt64 {
		return 0, ErrOverflow
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// Expire sets (or replaces) key's TTL, returning false if the key does not
// exist.
func (ks *Keyspace) Expire(key string, ttl time.Duration) bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, ok := ks.data[key]
	if !ok {
		return false
	}

	e.expiresAt = time.Now().Add(ttl)
	e.hasExpires = true
	heap.Push(&ks.heap, heapItem{key: key, deadline: e.expiresAt})
	return true
}

// TTL returns the remaining time-to-live for key. ok is false if the key
// does not exist or has expired. A present key with no expiration returns
// (0, false, true); a key with an expiration returns its remaining duration
// with hasTTL and ok both true.
func (ks *Keyspace) TTL(key string) (ttl time.Duration, hasTTL bool, ok bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	e, exists := ks.data[key]
	if !exists {
		return 0, false, false
	}
	if e.expired(time.Now()) {
		return 0, false, false
	}
	if !e.hasExpires {
		return 0, false, true
	}
	return time.Until(e.expiresAt), true, true
}

// Stats reports reaper activity counters, sampled by the metrics exporter.
type Stats struct {
	Sweeps  uint64
	Expired uint64
	Size    int
}

// Stats returns a snapshot of reaper and keyspace-size counters.
func (ks *Keyspace) Stats() Stats {
	return Stats{
		Sweeps:  ks.sweeps.Load(),
		Expired: ks.expired.Load(),
		Size:    ks.Size(),
	}
}
