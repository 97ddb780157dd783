// Package board runs one announcements page view: a REST snapshot and a
// realtime subscription feeding one reconciler.
package board

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staybook/frontdesk/internal/components/feed"
	"github.com/staybook/frontdesk/internal/components/realtime"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

// ErrClosed is returned when waiting on a board that was closed first.
var ErrClosed = errors.New("board closed")

// Snapshotter fetches the point-in-time announcement list.
type Snapshotter interface {
	List(ctx context.Context) ([]feed.Announcement, error)
}

// Subscription is a running stream.
type Subscription interface {
	Close()
	State() realtime.State
}

// ConnectFunc opens a stream that calls onMessage per inbound payload.
type ConnectFunc func(onMessage func(raw []byte)) Subscription

// Board is one page view.
type Board struct {
	id      string
	rec     *feed.Reconciler
	snap    Snapshotter
	connect ConnectFunc
	log     *slog.Logger

	mu       sync.Mutex
	opened   bool
	closed   bool
	sub      Subscription
	snapErr  error
	cancel   context.CancelFunc
	snapDone chan struct{}
}

// New creates a board. now may be nil for time.Now.
func New(snap Snapshotter, connect ConnectFunc, logger *slog.Logger, now func() time.Time) *Board {
	id := uuid.NewString()
	log := logutil.NoopIfNil(logger).With("board_id", id)
	return &Board{
		id:       id,
		rec:      feed.NewReconciler(log, now),
		snap:     snap,
		connect:  connect,
		log:      log,
		snapDone: make(chan struct{}),
	}
}

// ID identifies the board in logs.
func (b *Board) ID() string { return b.id }

// Open starts the snapshot fetch and the stream concurrently. It does not
// wait for either. ctx supplies values only; the board lives until Close.
func (b *Board) Open(ctx context.Context) {
	b.mu.Lock()
	if b.opened || b.closed {
		b.mu.Unlock()
		return
	}
	b.opened = true
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.mu.Unlock()

	sub := b.connect(b.onMessage)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return
	}
	b.sub = sub
	b.mu.Unlock()

	go b.fetchSnapshot(fetchCtx)
}

func (b *Board) fetchSnapshot(ctx context.Context) {
	defer close(b.snapDone)

	items, err := b.snap.List(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if err != nil {
		b.snapErr = err
		b.log.Warn("snapshot fetch failed", "error", err)
		return
	}
	b.rec.Seed(items)
	b.log.Debug("snapshot seeded", "count", len(items))
}

func (b *Board) onMessage(raw []byte) {
	a, added, err := b.rec.Ingest(raw)
	if err != nil {
		b.log.Warn("dropping stream message", "error", err)
		return
	}
	if added {
		b.log.Debug("announcement received", "id", a.ID)
	}
}

// WaitSnapshot blocks until the snapshot fetch has finished or ctx is done,
// and returns the fetch error.
func (b *Board) WaitSnapshot(ctx context.Context) error {
	b.mu.Lock()
	opened := b.opened
	b.mu.Unlock()
	if !opened {
		return ErrClosed
	}
	select {
	case <-b.snapDone:
		return b.SnapshotErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SnapshotErr returns the snapshot fetch error, if any.
func (b *Board) SnapshotErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapErr
}

// Seeded reports whether the snapshot has been applied.
func (b *Board) Seeded() bool { return b.rec.Seeded() }

// View returns the merged feed filtered by status.
func (b *Board) View(status feed.Status) []feed.Announcement {
	return b.rec.View(status)
}

// Add inserts an announcement the console itself created, unless its id is
// already present.
func (b *Board) Add(a feed.Announcement) bool {
	return b.rec.Add(a)
}

// State returns the stream state.
func (b *Board) State() realtime.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return realtime.StateClosedFinal
	case b.sub == nil:
		return realtime.StateConnecting
	default:
		return b.sub.State()
	}
}

// Close stops the stream and abandons the snapshot. Safe to call repeatedly.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	sub, cancel := b.sub, b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	b.log.Debug("board closed")
}
