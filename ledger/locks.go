package ledger

import (
	"sort"
	"sync"
)

// =============================================================================
// ACCOUNT LOCKS - Per-account serialization point
// =============================================================================

// accountLocks hands out one mutex per account so that concurrent applies
// against the same account serialize while disjoint accounts proceed
// independently. Locks are created lazily and never evicted; the registry
// grows with the number of distinct accounts seen by this process, which is
// bounded by the community size.
type accountLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[UserID]*sync.Mutex)}
}

func (a *accountLocks) lockFor(user UserID) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[user]
	if !ok {
		l = &sync.Mutex{}
		a.locks[user] = l
	}
	return l
}

// acquire locks all given accounts in sorted order and returns the release
// function. Sorted acquisition makes transfer pairs deadlock-free: two
// concurrent A->B and B->A transfers always take the locks in the same order.
func (a *accountLocks) acquire(users ...*UserID) func() {
	var ids []UserID
	for _, u := range users {
		if u != nil {
			ids = append(ids, *u)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var held []*sync.Mutex
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue // same account listed twice
		}
		l := a.lockFor(id)
		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
