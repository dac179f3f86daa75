package store

import (
	"context"
	"sync"
)

// Local is an in-process Store. Data lives for the process lifetime only.
// A single RWMutex guards the whole mapping; contention is expected to be
// low and reads never block reads.
type Local struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewLocal creates an empty in-process store.
func NewLocal() *Local {
	return &Local{
		sets: make(map[string]map[string]struct{}),
	}
}

func (l *Local) Insert(ctx context.Context, key, member string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(key, member)
	return nil
}

func (l *Local) insertLocked(key, member string) {
	set, ok := l.sets[key]
	if !ok {
		set = make(map[string]struct{})
		l.sets[key] = set
	}
	set[member] = struct{}{}
}

func (l *Local) Members(ctx context.Context, key string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	set, ok := l.sets[key]
	if !ok {
		return nil, nil
	}
	// Copy under the read lock so callers never observe live mutation.
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	return members, nil
}

func (l *Local) Has(ctx context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sets[key]
	return ok, nil
}

func (l *Local) Remove(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sets, key)
	return nil
}

func (l *Local) RemoveMember(ctx context.Context, key, member string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.sets[key]
	if !ok {
		return nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(l.sets, key)
	}
	return nil
}

func (l *Local) Keys(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.sets))
	for key := range l.sets {
		keys = append(keys, key)
	}
	return keys, nil
}

func (l *Local) Size(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sets), nil
}

func (l *Local) ItemCounts(ctx context.Context) (map[string]int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[string]int64, len(l.sets))
	for key, set := range l.sets {
		counts[key] = int64(len(set))
	}
	return counts, nil
}

func (l *Local) NewBatch() Batch {
	return &localBatch{store: l}
}

func (l *Local) Ping(ctx context.Context) error {
	return nil
}

func (l *Local) Close() error {
	return nil
}

type localBatch struct {
	store   *Local
	entries []entry
}

type entry struct {
	key    string
	member string
}

func (b *localBatch) Insert(key, member string) {
	b.entries = append(b.entries, entry{key: key, member: member})
}

func (b *localBatch) Flush(ctx context.Context) error {
	if len(b.entries) == 0 {
		return nil
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, e := range b.entries {
		b.store.insertLocked(e.key, e.member)
	}
	b.entries = b.entries[:0]
	return nil
}
