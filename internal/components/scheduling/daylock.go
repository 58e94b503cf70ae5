package scheduling

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// DayLocker hands out in-process locks keyed by string.
// Entries exist only while someone holds or waits for them.
type DayLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewDayLocker returns an empty locker.
func NewDayLocker() *DayLocker {
	return &DayLocker{locks: make(map[string]*keyLock)}
}

// BusyKey is the lock key of a (user, day) claim.
func BusyKey(user uuid.UUID, d Date) string {
	return "busy:" + user.String() + ":" + d.String()
}

// InvitationKey is the lock key of an invitation's state transition.
func InvitationKey(id uuid.UUID) string {
	return "invitation:" + id.String()
}

// Lock acquires all keys in sorted order and returns a release func.
// Duplicate keys are acquired once. If ctx ends while waiting, every key
// taken so far is released and ctx.Err() is returned.
func (l *DayLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range keys {
		kl := l.acquireRef(key)
		select {
		case kl.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.dropRef(key)
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (l *DayLocker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *DayLocker) dropRef(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl := l.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *DayLocker) unlock(key string) {
	l.mu.Lock()
	kl := l.locks[key]
	l.mu.Unlock()
	<-kl.sem
	l.dropRef(key)
}

// size reports the number of live entries.
func (l *DayLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
