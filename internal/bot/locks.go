package bot

import (
	"context"
	"sync"
)

// convLocks serializes turns per conversation. Entries are reference counted
// so idle conversations hold no state.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	sem  chan struct{}
	refs int
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*convLock)}
}

// acquire blocks until the conversation is free or ctx ends.
func (l *convLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	c, ok := l.locks[key]
	if !ok {
		c = &convLock{sem: make(chan struct{}, 1)}
		l.locks[key] = c
	}
	c.refs++
	l.mu.Unlock()

	select {
	case c.sem <- struct{}{}:
		return func() {
			<-c.sem
			l.release(key, c)
		}, nil
	case <-ctx.Done():
		l.release(key, c)
		return nil, ctx.Err()
	}
}

func (l *convLocks) release(key string, c *convLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.refs--
	if c.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *convLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
