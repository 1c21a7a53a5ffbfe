package swipe

import "sync"

// pairKey identifies an unordered user pair, lower id first.
type pairKey [2]uint64

func keyFor(x, y uint64) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{x, y}
}

// pairLocks hands out one mutex per unordered user pair so the
// check-reciprocal-and-commit step of match formation is serialized for
// that pair. Entries are refcounted and dropped once released, so the
// map only holds pairs with an in-flight swipe.
type pairLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[pairKey]*pairLock)}
}

// lock acquires the mutex for the pair and returns the unlock func.
func (p *pairLocks) lock(x, y uint64) func() {
	key := keyFor(x, y)

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
