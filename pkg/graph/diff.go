package graph

import (
	"context"
	"slices"
	"time"
)

// Lister is the remote side of a reconcile.
type Lister interface {
	Subscriptions(ctx context.Context) ([]Subscription, error)
}

// Diff compares the local store against what Graph reports. Dead IDs
// are tracked locally but gone from Graph (expired or deleted out of
// band); untracked IDs exist in Graph with no local record. Both come
// back sorted.
func Diff(ctx context.Context, remote Lister, local Store) (dead, untracked []string, err error) {
	subs, err := remote.Subscriptions(ctx)
	if err != nil {
		return nil, nil, err
	}
	recs, err := local.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	remoteIDs := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		remoteIDs[sub.ID] = struct{}{}
	}
	localIDs := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		localIDs[rec.ID] = struct{}{}
	}

	for id := range localIDs {
		if _, ok := remoteIDs[id]; !ok {
			dead = append(dead, id)
		}
	}
	for id := range remoteIDs {
		if _, ok := localIDs[id]; !ok {
			untracked = append(untracked, id)
		}
	}
	slices.Sort(dead)
	slices.Sort(untracked)
	return dead, untracked, nil
}

// Due filters records whose expiration falls inside the renewal
// window, measured from now. Records with no recorded expiration are
// always due.
func Due(recs []Record, window time.Duration, now time.Time) []Record {
	var due []Record
	for _, rec := range recs {
		if rec.Expiration.IsZero() || !rec.Expiration.After(now.Add(window)) {
			due = append(due, rec)
		}
	}
	return due
}
