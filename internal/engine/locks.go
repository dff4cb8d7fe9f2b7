package engine

import (
	"context"
	"sync"
)

// sessionLocks hands out one exclusive token per session id. Turns on the
// same session queue behind each other; different sessions never contend.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	token chan struct{}
	refs  int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{held: make(map[string]*lockEntry)}
}

// acquire blocks until id is free or ctx is done. The returned func releases
// the token and must be called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	e, ok := l.held[id]
	if !ok {
		e = &lockEntry{token: make(chan struct{}, 1)}
		l.held[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.token <- struct{}{}:
		return func() {
			<-e.token
			l.unref(id, e)
		}, nil
	case <-ctx.Done():
		l.unref(id, e)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) unref(id string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.held, id)
	}
}

// size reports how many ids currently have holders or waiters.
func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
