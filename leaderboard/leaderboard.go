/*
Package leaderboard derives ranked snapshots from the ledger.

PURPOSE:
  Read-only projection over accounts and the transaction log. Never mutates
  ledger or quest state. Results are cached for a bounded TTL: serving a
  slightly stale snapshot is an explicit trade-off, not a bug.

RANKING:
  - PeriodAll:   current balance, descending. Ties break by earliest
                 account creation, then UserID, so pagination over
                 successive calls is deterministic.
  - PeriodWeek / PeriodMonth: points credited within the trailing 7/30-day
                 window, descending, independent of the current balance —
                 a user who earned a lot and spent it all still ranks.

SEE ALSO:
  - ledger/store.go: The Source methods (Accounts, CreditsSince)
  - api/scheduler.go: Periodic background refresh
*/
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neighborly/points-engine/ledger"
)

// Period selects the ranking window.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps the wire value to a Period, defaulting to PeriodAll for
// an empty string.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodAll, "":
		return PeriodAll, nil
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown leaderboard period %q", s)
	}
}

// Entry is one ranked row.
type Entry struct {
	UserID ledger.UserID
	Points int64
	Rank   int
}

// Source is the read-only slice of the ledger store the view needs.
type Source interface {
	Accounts(ctx context.Context) ([]ledger.Account, error)
	CreditsSince(ctx context.Context, since time.Time) (map[ledger.UserID]int64, error)
}

// View computes and caches leaderboards.
type View struct {
	src   Source
	ttl   time.Duration
	clock func() time.Time

	mu    sync.Mutex
	cache map[Period]snapshot
}

type snapshot struct {
	entries []Entry
	takenAt time.Time
}

// NewView creates a view with the given cache TTL. A TTL of 0 disables
// caching and recomputes on every call.
func NewView(src Source, ttl time.Duration) *View {
	return &View{
		src:   src,
		ttl:   ttl,
		clock: func() time.Time { return time.Now().UTC() },
		cache: make(map[Period]snapshot),
	}
}

// SetClock overrides the time source for tests.
func (v *View) SetClock(clock func() time.Time) { v.clock = clock }

// Top returns the first n entries for the period. n <= 0 returns the whole
// board.
func (v *View) Top(ctx context.Context, period Period, n int) ([]Entry, error) {
	v.mu.Lock()
	cached, ok := v.cache[period]
	fresh := ok && v.ttl > 0 && v.clock().Sub(cached.takenAt) < v.ttl
	v.mu.Unlock()

	entries := cached.entries
	if !fresh {
		var err error
		entries, err = v.compute(ctx, period)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.cache[period] = snapshot{entries: entries, takenAt: v.clock()}
		v.mu.Unlock()
	}

	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	// Copy so callers cannot mutate the cached snapshot.
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// Refresh recomputes every cached period. Used by the background scheduler.
func (v *View) Refresh(ctx context.Context) error {
	for _, period := range []Period{PeriodAll, PeriodWeek, PeriodMonth} {
		entries, err := v.compute(ctx, period)
		if err != nil {
			return err
		}
		v.mu.Lock()
		v.cache[period] = snapshot{entries: entries, takenAt: v.clock()}
		v.mu.Unlock()
	}
	return nil
}

func (v *View) compute(ctx context.Context, period Period) ([]Entry, error) {
	accounts, err := v.src.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	points := make(map[ledger.UserID]int64, len(accounts))
	switch period {
	case PeriodAll:
		for _, a := range accounts {
			points[a.UserID] = a.Balance
		}
	case PeriodWeek, PeriodMonth:
		window := 7 * 24 * time.Hour
		if period == PeriodMonth {
			window = 30 * 24 * time.Hour
		}
		credits, err := v.src.CreditsSince(ctx, v.clock().Add(-window))
		if err != nil {
			return nil, err
		}
		// Every known account appears, including zero earners.
		for _, a := range accounts {
			points[a.UserID] = credits[a.UserID]
		}
	default:
		return nil, fmt.Errorf("unknown leaderboard period %q", period)
	}

	createdAt := make(map[ledger.UserID]time.Time, len(accounts))
	for _, a := range accounts {
		createdAt[a.UserID] = a.CreatedAt
	}

	entries := make([]Entry, 0, len(points))
	for user, pts := range points {
		entries = append(entries, Entry{UserID: user, Points: pts})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		ca, cb := createdAt[a.UserID], createdAt[b.UserID]
		if !ca.Equal(cb) {
			return ca.Before(cb)
		}
		return a.UserID < b.UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
