package pipeline

import "sync"

// keyedLocks serializes runs per (tenant, entity) so two concurrent runs
// cannot interleave their read-merge-write cycles on the same record.
// Mutexes are created on first use and kept for the process lifetime; the
// keyspace is bounded by the tenant's entity count.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns its unlock func.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
