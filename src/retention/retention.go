// Package retention prunes directories left in the build root by builds
// that never cleaned up after themselves. It works with any named and
// timestamped items; policies are additive, so an item survives if ANY
// rule wants to keep it.
package retention

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Item is a named, timestamped entity that can be pruned.
type Item struct {
	Name      string
	CreatedAt time.Time
}

// Policy selects which items survive a prune. The zero policy keeps
// nothing.
type Policy struct {
	KeepLast   int           // the N most recent items
	KeepDaily  int           // the newest item of each of the last N days
	KeepWeekly int           // the newest item of each of the last N weeks
	KeepWithin time.Duration // every item younger than this
}

// Active reports whether any rule is set.
func (p Policy) Active() bool {
	return p.KeepLast > 0 || p.KeepDaily > 0 || p.KeepWeekly > 0 || p.KeepWithin > 0
}

// Result captures what a prune did.
type Result struct {
	Matched int      // items listed by the store
	Kept    int      // items kept by policy
	Deleted []string // items successfully deleted
	Errors  []error  // errors from individual deletes
}

// Store abstracts listing and deleting items.
type Store interface {
	List(ctx context.Context) ([]Item, error)
	Delete(ctx context.Context, name string) error
}

// Apply lists all items from the store, sorts them newest first, applies
// policy and deletes what is not kept. With dryRun nothing is deleted and
// Deleted names what would have been.
func Apply(ctx context.Context, store Store, policy Policy, now time.Time, dryRun bool) (*Result, error) {
	result := &Result{}

	items, err := store.List(ctx)
	if err != nil {
		return result, fmt.Errorf("retention: listing items: %w", err)
	}
	result.Matched = len(items)
	if len(items) == 0 {
		return result, nil
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	keepSet := ApplyPolicies(items, policy, now)
	for i, item := range items {
		if keepSet[i] {
			result.Kept++
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if dryRun {
			result.Deleted = append(result.Deleted, item.Name)
			continue
		}
		if err := store.Delete(ctx, item.Name); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deleting %s: %w", item.Name, err))
		} else {
			result.Deleted = append(result.Deleted, item.Name)
		}
	}
	return result, nil
}

// ApplyPolicies returns a keep/prune decision for each candidate.
// candidates must be sorted newest-first.
func ApplyPolicies(candidates []Item, policy Policy, now time.Time) []bool {
	keepSet := make([]bool, len(candidates))

	for i := 0; i < len(candidates) && i < policy.KeepLast; i++ {
		keepSet[i] = true
	}
	if policy.KeepWithin > 0 {
		cutoff := now.Add(-policy.KeepWithin)
		for i, item := range candidates {
			if item.CreatedAt.After(cutoff) {
				keepSet[i] = true
			}
		}
	}
	if policy.KeepDaily > 0 {
		applyTimeBucket(candidates, keepSet, policy.KeepDaily, truncateToDay)
	}
	if policy.KeepWeekly > 0 {
		applyTimeBucket(candidates, keepSet, policy.KeepWeekly, truncateToWeek)
	}
	return keepSet
}

// applyTimeBucket keeps the newest item in each of the last count distinct
// buckets.
func applyTimeBucket(candidates []Item, keepSet []bool, count int, bucket func(time.Time) time.Time) {
	seen := make(map[time.Time]bool)
	for i, item := range candidates {
		if item.CreatedAt.IsZero() {
			continue
		}
		key := bucket(item.CreatedAt)
		if seen[key] {
			continue
		}
		seen[key] = true
		keepSet[i] = true
		if len(seen) >= count {
			break
		}
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// truncateToWeek truncates to the Monday starting the ISO week.
func truncateToWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	d := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}
