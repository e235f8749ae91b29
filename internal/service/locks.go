package service

import "sync"

// generationLocks serializes generation per schedule id. TryAcquire is
// non-blocking: a second caller for the same schedule is refused instead of
// queued, so concurrent generate requests fail fast.
type generationLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newGenerationLocks() *generationLocks {
	return &generationLocks{active: make(map[string]struct{})}
}

func (l *generationLocks) TryAcquire(scheduleID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[scheduleID]; busy {
		return false
	}
	l.active[scheduleID] = struct{}{}
	return true
}

func (l *generationLocks) Release(scheduleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, scheduleID)
}
