package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/staybook/frontdesk/internal/platform/logutil"
)

// Status selects a time-based view of the merged feed.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusAll     Status = "all"
)

// ParseStatus maps a query value to a Status. Unknown values yield StatusActive, false.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusExpired, StatusAll:
		return Status(s), true
	case "":
		return StatusActive, true
	default:
		return StatusActive, false
	}
}

// Reconciler owns the feed state of one board. Entries are never removed;
// expiry is applied only when reading.
//
// Merged order is the snapshot order followed by streamed entries in arrival
// order. An id already present (from either source) is never replaced.
type Reconciler struct {
	log *slog.Logger
	now func() time.Time

	mu          sync.Mutex
	seeded      bool
	snapshot    []Announcement
	snapshotIDs map[int64]struct{}
	stream      []Announcement
	streamIDs   map[int64]struct{}
}

// NewReconciler creates an empty reconciler. now may be nil for time.Now.
func NewReconciler(logger *slog.Logger, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		log:         logutil.NoopIfNil(logger),
		now:         now,
		snapshotIDs: make(map[int64]struct{}),
		streamIDs:   make(map[int64]struct{}),
	}
}

// Seed installs the REST snapshot, replacing any earlier snapshot.
// Streamed entries already ingested are kept; where an id appears in both,
// the snapshot entry wins its position and content.
func (r *Reconciler) Seed(snapshot []Announcement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = make([]Announcement, 0, len(snapshot))
	r.snapshotIDs = make(map[int64]struct{}, len(snapshot))
	for _, a := range snapshot {
		if _, dup := r.snapshotIDs[a.ID]; dup {
			r.log.Warn("duplicate id in snapshot, keeping first", "id", a.ID)
			continue
		}
		r.snapshotIDs[a.ID] = struct{}{}
		r.snapshot = append(r.snapshot, a)
	}
	r.seeded = true
}

// Seeded reports whether Seed has been called.
func (r *Reconciler) Seeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeded
}

// Ingest parses one streamed payload and appends it if its id is new.
// It is valid before Seed. The error, if any, is a *ParseError.
func (r *Reconciler) Ingest(raw []byte) (Announcement, bool, error) {
	a, err := Parse(raw)
	if err != nil {
		return Announcement{}, false, err
	}
	return a, r.Add(a), nil
}

// Add appends an already parsed announcement if its id is new.
func (r *Reconciler) Add(a Announcement) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshotIDs[a.ID]; ok {
		return false
	}
	if _, ok := r.streamIDs[a.ID]; ok {
		return false
	}
	r.streamIDs[a.ID] = struct{}{}
	r.stream = append(r.stream, a)
	return true
}

// Merged returns a copy of the deduplicated feed.
func (r *Reconciler) Merged() []Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Announcement, 0, len(r.snapshot)+len(r.stream))
	out = append(out, r.snapshot...)
	for _, a := range r.stream {
		if _, ok := r.snapshotIDs[a.ID]; ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Len returns the number of merged entries.
func (r *Reconciler) Len() int {
	return len(r.Merged())
}

// Filter returns the merged entries matching pred, in merged order.
func (r *Reconciler) Filter(pred func(Announcement) bool) []Announcement {
	merged := r.Merged()
	out := merged[:0]
	for _, a := range merged {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

// View applies a status filter against the current time.
func (r *Reconciler) View(status Status) []Announcement {
	now := r.now()
	switch status {
	case StatusExpired:
		return r.Filter(func(a Announcement) bool { return !a.ActiveAt(now) })
	case StatusAll:
		return r.Merged()
	default:
		return r.Filter(func(a Announcement) bool { return a.ActiveAt(now) })
	}
}
