package projectcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// KeyLocker serializes work per source key. With a lock directory it also
// holds an flock on a per-key file so separate processes do not race.
type KeyLocker struct {
	dir   string
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyLocker returns a locker. An empty dir disables cross-process locking.
func NewKeyLocker(dir string) *KeyLocker {
	return &KeyLocker{dir: dir, slots: make(map[string]*lockSlot)}
}

// Lock blocks until key is held or ctx ends. The returned func releases it.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	slot := l.acquireSlot(key)
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key)
		return nil, ctx.Err()
	}

	var fileLock *flock.Flock
	if l.dir != "" {
		fileLock = flock.New(l.lockPath(key))
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			l.unlockSlot(key, slot)
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
		ok, err := fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil || !ok {
			l.unlockSlot(key, slot)
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("acquire project lock: %w", err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			l.unlockSlot(key, slot)
		})
	}, nil
}

func (l *KeyLocker) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(l.dir, "project-"+hex.EncodeToString(sum[:8])+".lock")
}

func (l *KeyLocker) acquireSlot(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *KeyLocker) unlockSlot(key string, slot *lockSlot) {
	<-slot.ch
	l.releaseSlot(key)
}

func (l *KeyLocker) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, key)
	}
}
