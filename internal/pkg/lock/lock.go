// Package lock provides keyed locking for concurrent balance and
// tournament operations. The backing store serializes conflicting writes
// with row locks; these in-process locks keep concurrent callers for the
// same key from piling up on the database and from racing external
// gateway calls that cannot run inside a database transaction.
package lock

import "sync"

// keyMutex wraps a mutex with reference counting for reuse.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyedLock provides per-key locking. Keys are caller-defined strings,
// e.g. a tournament id or a formatted user id.
type KeyedLock struct {
	locks sync.Map // map[string]*keyMutex
	pool  sync.Pool
}

// NewKeyedLock creates a new KeyedLock instance.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given key.
func (kl *KeyedLock) getLock(key string) *keyMutex {
	if v, ok := kl.locks.Load(key); ok {
		return v.(*keyMutex)
	}

	newLock := kl.pool.Get().(*keyMutex)
	newLock.refCount = 0

	actual, loaded := kl.locks.LoadOrStore(key, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		kl.pool.Put(newLock)
	}
	return actual.(*keyMutex)
}

// Lock acquires the lock for a key.
func (kl *KeyedLock) Lock(key string) {
	lock := kl.getLock(key)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a key.
func (kl *KeyedLock) Unlock(key string) {
	if v, ok := kl.locks.Load(key); ok {
		lock := v.(*keyMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (kl *KeyedLock) TryLock(key string) bool {
	lock := kl.getLock(key)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// WithLock executes a function while holding the key's lock.
func (kl *KeyedLock) WithLock(key string, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}
