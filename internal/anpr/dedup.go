package anpr

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Dedup suppresses repeated ANPR events for the same plate within a short
// window, per camera. Keyed by "plate || floor(now / windowSeconds)"
// (SPEC_FULL §4.4 "Dedup filter"): an event is suppressed if its key is
// already present. Entries older than maxAge are pruned on every call to
// Prune, which Run invokes once per prune interval.
type Dedup struct {
	window time.Duration
	maxAge time.Duration

	mu      sync.Mutex
	entries map[string]map[string]time.Time // cameraID -> key -> insertedAt
}

// NewDedup builds a Dedup with the given bucket window and max entry age.
// Non-positive values fall back to the spec's 5s window / 30s max age.
func NewDedup(window, maxAge time.Duration) *Dedup {
	if window <= 0 {
		window = 5 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &Dedup{window: window, maxAge: maxAge, entries: make(map[string]map[string]time.Time)}
}

func (d *Dedup) key(plate string, now time.Time) string {
	bucket := now.Unix() / int64(d.window.Seconds())
	return fmt.Sprintf("%s|%d", plate, bucket)
}

// Accept reports whether plate should produce a new event for cameraID at
// now, recording the key if so. A false return means the detection must
// be suppressed.
func (d *Dedup) Accept(cameraID, plate string, now time.Time) bool {
	key := d.key(plate, now)

	d.mu.Lock()
	defer d.mu.Unlock()

	camEntries, ok := d.entries[cameraID]
	if !ok {
		camEntries = make(map[string]time.Time)
		d.entries[cameraID] = camEntries
	}
	if _, seen := camEntries[key]; seen {
		return false
	}
	camEntries[key] = now
	return true
}

// Prune drops entries inserted more than maxAge before now.
func (d *Dedup) Prune(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for cameraID, camEntries := range d.entries {
		for key, insertedAt := range camEntries {
			if now.Sub(insertedAt) > d.maxAge {
				delete(camEntries, key)
			}
		}
		if len(camEntries) == 0 {
			delete(d.entries, cameraID)
		}
	}
}

// Run prunes on pruneInterval until ctx is cancelled.
func (d *Dedup) Run(ctx context.Context, pruneInterval time.Duration) {
	if pruneInterval <= 0 {
		pruneInterval = 60 * time.Second
	}
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Prune(time.Now())
		}
	}
}
