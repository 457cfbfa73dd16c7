package lockmap

import "sync"

// LockMap hands out one mutex per key. Locks are created lazily on first use
// and are never removed, so two callers for the same key always serialize.
type LockMap struct {
	locks sync.Map // string -> *sync.Mutex
}

func New() *LockMap {
	return &LockMap{}
}

func (m *LockMap) Get(key string) *sync.Mutex {
	if l, ok := m.locks.Load(key); ok {
		return l.(*sync.Mutex)
	}
	l, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// WithLock runs fn while holding the lock for key.
func (m *LockMap) WithLock(key string, fn func()) {
	l := m.Get(key)
	l.Lock()
	defer l.Unlock()
	fn()
}

func (m *LockMap) Len() int {
	n := 0
	m.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
