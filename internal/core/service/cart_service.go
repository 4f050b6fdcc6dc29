package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/port"
)

// CartService owns the in-memory cart: an ordered list of items mutated
// only through its methods. Every state-changing call applies the
// mutation synchronously, then hands an immutable snapshot to the
// persistence scheduler; operations that find nothing to change do not
// schedule a write. Persistence failures never roll the cart back, they
// are recorded on the service and the in-memory state stays
// authoritative for the session.
type CartService struct {
	store  port.LocalStore
	remote port.RemoteStore // nil when running local-only
	auth   port.AuthProvider
	sched  *PersistScheduler
	log    *zap.Logger

	mu               sync.Mutex
	items            []domain.CartItem
	lastWriteErr     error
	storageAvailable bool
}

// NewCartService builds a cart over a local store. remote may be nil;
// debounce <= 0 selects DefaultDebounceInterval.
func NewCartService(store port.LocalStore, remote port.RemoteStore, auth port.AuthProvider, debounce time.Duration, log *zap.Logger) *CartService {
	s := &CartService{
		store:            store,
		remote:           remote,
		auth:             auth,
		log:              log,
		storageAvailable: true,
	}
	s.sched = NewPersistScheduler(debounce, s.persistSnapshot, log)
	return s
}

func (s *CartService) storageKey() string {
	if s.auth.IsAuthenticated() {
		return port.KeyAuthCart
	}
	return port.KeyGuestCart
}

// persistSnapshot is the scheduler's write callback. It resolves the
// active storage key at write time so a login between schedule and fire
// lands the snapshot under the right key.
func (s *CartService) persistSnapshot(ctx context.Context, items []domain.CartItem) error {
	err := s.store.Write(ctx, s.storageKey(), items)

	s.mu.Lock()
	s.lastWriteErr = err
	s.storageAvailable = err == nil
	s.mu.Unlock()

	return err
}

// Hydrate loads the persisted snapshot for the active key into the
// cart, replacing whatever is in memory, without scheduling a write. A
// storage failure leaves the cart empty, flips the availability flag
// and is otherwise swallowed: the cart keeps working unsaved.
func (s *CartService) Hydrate(ctx context.Context) {
	items, err := s.store.Read(ctx, s.storageKey())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.items = nil
		s.storageAvailable = false
		s.log.Warn("cart hydrate failed, starting empty", zap.Error(err))
		return
	}
	s.items = domain.NormalizeItems(items)
	s.storageAvailable = true
}

// AddItem adds a product to the cart or tops up an existing line. On an
// existing line it merges the fresher catalog fields in, recording a
// price change when the price moved, and clears the unavailable flag.
func (s *CartService) AddItem(snap domain.ProductSnapshot, quantity int) (*PendingWrite, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.indexLocked(snap.ID)

	current := 0
	if idx >= 0 {
		current = s.items[idx].Quantity
	}
	target := current + quantity
	if snap.StockLimit != nil && int64(target) > *snap.StockLimit {
		s.mu.Unlock()
		return nil, domain.ErrStockExceeded
	}

	price := *snap.Price
	if idx >= 0 {
		it := &s.items[idx]
		it.Quantity = target
		if it.UnitPrice != price {
			it.PreviousPrice = it.UnitPrice
			it.PriceChanged = true
		}
		it.UnitPrice = price
		it.DiscountPercent = domain.ClampDiscount(snap.DiscountPercent)
		if snap.ImageRef != "" {
			it.ImageRef = snap.ImageRef
		}
		it.Name = snap.Name
		it.StockLimit = copyInt64(snap.StockLimit)
		if snap.Size != nil {
			it.Size = copyString(snap.Size)
		}
		if snap.Color != nil {
			it.Color = copyString(snap.Color)
		}
		it.Unavailable = false
	} else {
		s.items = append(s.items, domain.CartItem{
			ID:              snap.ID,
			Name:            snap.Name,
			UnitPrice:       price,
			PreviousPrice:   price,
			PriceChanged:    false,
			DiscountPercent: domain.ClampDiscount(snap.DiscountPercent),
			Quantity:        quantity,
			StockLimit:      copyInt64(snap.StockLimit),
			Unavailable:     false,
			ImageRef:        snap.ImageRef,
			Size:            copyString(snap.Size),
			Color:           copyString(snap.Color),
		})
	}

	pw := s.scheduleLocked()
	s.mu.Unlock()
	return pw, nil
}

// DecreaseItem subtracts quantity from a line, removing it when the
// result drops to zero or below. Reports whether the line was removed;
// an absent id is a no-op.
func (s *CartService) DecreaseItem(id string, quantity int) (removed bool, pw *PendingWrite, err error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false, nil, nil
	}

	next := s.items[idx].Quantity - quantity
	if next <= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		removed = true
	} else {
		s.items[idx].Quantity = next
	}
	return removed, s.scheduleLocked(), nil
}

// RemoveItem drops a line unconditionally. Nothing is persisted when
// the id was not present.
func (s *CartService) RemoveItem(id string) *PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return s.scheduleLocked()
}

// SetQuantity overwrites a line's quantity after validation and stock
// checks. An absent id is a no-op.
func (s *CartService) SetQuantity(id string, quantity int) (*PendingWrite, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, nil
	}
	it := &s.items[idx]
	if it.Unavailable {
		return nil, domain.ErrItemUnavailable
	}
	if it.StockLimit != nil && int64(quantity) > *it.StockLimit {
		return nil, domain.ErrStockExceeded
	}
	it.Quantity = quantity
	return s.scheduleLocked(), nil
}

// Clear empties the cart and persists the empty snapshot.
func (s *CartService) Clear() *PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	return s.scheduleLocked()
}

// AcknowledgePriceChange clears a line's price-changed banner flag.
func (s *CartService) AcknowledgePriceChange(id string) *PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	s.items[idx].PriceChanged = false
	return s.scheduleLocked()
}

// MarkUnavailable flags a line as removed from sale. Only a catalog
// reconciliation reporting the product active again clears the flag.
func (s *CartService) MarkUnavailable(id string) *PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil
	}
	s.items[idx].Unavailable = true
	return s.scheduleLocked()
}

// Flush cancels any pending debounced write and writes the current
// snapshot immediately, returning once it has landed or failed.
func (s *CartService) Flush(ctx context.Context) error {
	s.mu.Lock()
	snapshot := domain.CloneItems(s.items)
	s.mu.Unlock()
	return s.sched.Flush(ctx, snapshot)
}

// Close cancels any pending write without flushing it.
func (s *CartService) Close() {
	s.sched.Stop()
}

// Items returns a defensive copy of the cart in insertion order.
func (s *CartService) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneItems(s.items)
}

// Len returns the number of lines in the cart.
func (s *CartService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalQuantity sums line quantities, for the nav badge.
func (s *CartService) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, it := range s.items {
		sum += it.Quantity
	}
	return sum
}

// ItemSubtotal returns one line's discounted subtotal, 0 for an absent
// id.
func (s *CartService) ItemSubtotal(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return 0
	}
	return domain.ItemSubtotal(s.items[idx])
}

// Subtotal sums the discounted subtotals of all lines.
func (s *CartService) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, it := range s.items {
		sum += domain.ItemSubtotal(it)
	}
	return sum
}

// Total is the order total. Today it equals the subtotal; fees and
// coupons would hook in here.
func (s *CartService) Total() int64 {
	return s.Subtotal()
}

// LastWriteError reports the most recent persistence failure, nil after
// a successful write.
func (s *CartService) LastWriteError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWriteErr
}

// StorageAvailable is false after a failed read or write, warning that
// the cart may not survive a reload.
func (s *CartService) StorageAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storageAvailable
}

// The cart never aliases pointer fields with caller-owned snapshots.
func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *CartService) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *CartService) scheduleLocked() *PendingWrite {
	return s.sched.Schedule(domain.CloneItems(s.items))
}
