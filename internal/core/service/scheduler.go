package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// DefaultDebounceInterval is the quiet period after the last mutation
// before a debounced write fires.
const DefaultDebounceInterval = 300 * time.Millisecond

const writeTimeout = 5 * time.Second

// ErrWriteSuperseded resolves a pending write that was cancelled by a
// later mutation or an immediate flush. The cart state it carried has
// been replaced by a newer snapshot, so nothing was lost.
var ErrWriteSuperseded = errors.New("write superseded by a newer snapshot")

// PersistFunc performs one storage write of a full cart snapshot.
type PersistFunc func(ctx context.Context, items []domain.CartItem) error

// PendingWrite tracks one scheduled debounced write. It resolves once
// exactly: with nil when the write lands, with the write error when it
// fails, or with ErrWriteSuperseded when a newer snapshot replaced it.
type PendingWrite struct {
	id   uuid.UUID
	done chan struct{}
	once sync.Once
	err  error
}

func newPendingWrite() *PendingWrite {
	return &PendingWrite{id: uuid.New(), done: make(chan struct{})}
}

func (p *PendingWrite) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed when the write has completed, failed or been
// superseded.
func (p *PendingWrite) Done() <-chan struct{} { return p.done }

// Err is valid after Done is closed.
func (p *PendingWrite) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write resolves or the context expires.
func (p *PendingWrite) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PersistScheduler coalesces rapid successive write requests into a
// single deferred write. At most one write is pending at any instant;
// scheduling replaces both the timer and the snapshot, so the write
// that eventually fires always carries the latest cart state. A write
// already handed to the store cannot be cancelled and is allowed to
// complete, but writes are serialized in schedule order: a flush that
// races an in-flight debounced write waits for it, so the flushed
// snapshot is always the one that ends up durable.
type PersistScheduler struct {
	interval time.Duration
	persist  PersistFunc
	log      *zap.Logger

	mu       sync.Mutex
	timer    *time.Timer
	pending  *PendingWrite
	snapshot []domain.CartItem

	// writeMu is held across every storage write.
	writeMu sync.Mutex
}

func NewPersistScheduler(interval time.Duration, persist PersistFunc, log *zap.Logger) *PersistScheduler {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &PersistScheduler{
		interval: interval,
		persist:  persist,
		log:      log,
	}
}

// Schedule cancels any pending write and arms a new one for the given
// snapshot after the quiet interval. The snapshot must not alias live
// cart state.
func (s *PersistScheduler) Schedule(snapshot []domain.CartItem) *PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supersedeLocked()

	pw := newPendingWrite()
	s.pending = pw
	s.snapshot = snapshot
	s.timer = time.AfterFunc(s.interval, func() { s.fire(pw) })
	return pw
}

// Flush cancels any pending debounced write and performs an immediate
// write of the given snapshot, returning once it has landed or failed.
func (s *PersistScheduler) Flush(ctx context.Context, snapshot []domain.CartItem) error {
	s.mu.Lock()
	s.supersedeLocked()
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.persist(ctx, snapshot)
}

// Stop cancels any pending write without flushing it.
func (s *PersistScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
}

func (s *PersistScheduler) supersedeLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		s.log.Debug("cancelled pending cart write",
			zap.String("write_id", s.pending.id.String()))
		s.pending.resolve(ErrWriteSuperseded)
		s.pending = nil
		s.snapshot = nil
	}
}

func (s *PersistScheduler) fire(pw *PendingWrite) {
	s.mu.Lock()
	if s.pending != pw {
		// Superseded between the timer firing and the lock.
		s.mu.Unlock()
		return
	}
	snapshot := s.snapshot
	s.pending = nil
	s.timer = nil
	s.snapshot = nil
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := s.persist(ctx, snapshot)
	pw.resolve(err)
	if err != nil {
		s.log.Warn("debounced cart write failed",
			zap.String("write_id", pw.id.String()), zap.Error(err))
	}
}
