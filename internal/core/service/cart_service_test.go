package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/port"
)

// Mock LocalStore
type mockLocalStore struct {
	mu       sync.Mutex
	data     map[string][]domain.CartItem
	writes   int
	failWith error
}

func newMockLocalStore() *mockLocalStore {
	return &mockLocalStore{data: make(map[string][]domain.CartItem)}
}

func (m *mockLocalStore) Read(ctx context.Context, key string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return domain.CloneItems(m.data[key]), nil
}

func (m *mockLocalStore) Write(ctx context.Context, key string, items []domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.writes++
	m.data[key] = domain.CloneItems(items)
	return nil
}

func (m *mockLocalStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockLocalStore) stored(key string) []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneItems(m.data[key])
}

func (m *mockLocalStore) setFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

type mockAuth struct{ authenticated bool }

func (a *mockAuth) IsAuthenticated() bool { return a.authenticated }

const testDebounce = 20 * time.Millisecond

func newTestCart(t *testing.T) (*CartService, *mockLocalStore) {
	t.Helper()
	store := newMockLocalStore()
	svc := NewCartService(store, nil, &mockAuth{}, testDebounce, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc, store
}

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }
func boolp(v bool) *bool    { return &v }

func snapshot(id string, price int64) domain.ProductSnapshot {
	return domain.ProductSnapshot{ID: id, Name: "Item " + id, Price: int64p(price)}
}

func waitWrite(t *testing.T, pw *PendingWrite) {
	t.Helper()
	if pw == nil {
		t.Fatal("expected a pending write")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pw.Wait(ctx); err != nil && !errors.Is(err, ErrWriteSuperseded) {
		t.Fatalf("pending write failed: %v", err)
	}
}

func TestAddItem_MergesQuantity(t *testing.T) {
	svc, _ := newTestCart(t)

	if _, err := svc.AddItem(snapshot("p-1", 100), 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	pw, err := svc.AddItem(snapshot("p-1", 100), 3)
	if err != nil {
		t.Fatalf("second add failed: %v", err)
	}
	waitWrite(t, pw)

	items := svc.Items()
	if len(items) != 1 {
		t.Fatalf("expected one line, got %d", len(items))
	}
	if items[0].Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", items[0].Quantity)
	}
}

func TestAddItem_StockExceeded(t *testing.T) {
	svc, _ := newTestCart(t)

	snap := snapshot("p-1", 100)
	snap.StockLimit = int64p(5)
	if _, err := svc.AddItem(snap, 4); err != nil {
		t.Fatalf("add within stock failed: %v", err)
	}

	_, err := svc.AddItem(snap, 2)
	if !errors.Is(err, domain.ErrStockExceeded) {
		t.Fatalf("expected ErrStockExceeded, got %v", err)
	}

	if got := svc.Items()[0].Quantity; got != 4 {
		t.Errorf("expected quantity unchanged at 4, got %d", got)
	}
}

func TestAddItem_ValidationFailures(t *testing.T) {
	svc, store := newTestCart(t)

	cases := []struct {
		name string
		snap domain.ProductSnapshot
		qty  int
		want error
	}{
		{"zero quantity", snapshot("p-1", 100), 0, domain.ErrInvalidQuantity},
		{"incomplete", domain.ProductSnapshot{ID: "p-1"}, 1, domain.ErrIncompleteProduct},
		{"negative price", domain.ProductSnapshot{ID: "p-1", Name: "X", Price: int64p(-5)}, 1, domain.ErrInvalidPrice},
		{"inactive", domain.ProductSnapshot{ID: "p-1", Name: "X", Price: int64p(5), Active: boolp(false)}, 1, domain.ErrProductInactive},
	}
	for _, c := range cases {
		if _, err := svc.AddItem(c.snap, c.qty); !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}

	if svc.Len() != 0 {
		t.Error("failed adds must not mutate the cart")
	}
	time.Sleep(3 * testDebounce)
	if store.writeCount() != 0 {
		t.Error("failed adds must not schedule a write")
	}
}

func TestAddItem_RecordsPriceChange(t *testing.T) {
	svc, _ := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.AddItem(snapshot("p-1", 120), 1)

	it := svc.Items()[0]
	if !it.PriceChanged {
		t.Error("expected priceChanged flag")
	}
	if it.PreviousPrice != 100 || it.UnitPrice != 120 {
		t.Errorf("expected 100 -> 120, got %d -> %d", it.PreviousPrice, it.UnitPrice)
	}
}

func TestAddItem_MergePreservesVariant(t *testing.T) {
	svc, _ := newTestCart(t)

	snap := snapshot("p-1", 100)
	snap.Size = strp("M")
	snap.Color = strp("red")
	svc.AddItem(snap, 1)

	// Incoming nil variant fields must not erase the stored ones.
	svc.AddItem(snapshot("p-1", 100), 1)

	it := svc.Items()[0]
	if it.Size == nil || *it.Size != "M" || it.Color == nil || *it.Color != "red" {
		t.Errorf("variant fields were erased: size=%v color=%v", it.Size, it.Color)
	}
}

func TestAddItem_ClearsUnavailable(t *testing.T) {
	svc, _ := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.MarkUnavailable("p-1")
	svc.AddItem(snapshot("p-1", 100), 1)

	if svc.Items()[0].Unavailable {
		t.Error("re-adding an item should clear the unavailable flag")
	}
}

func TestDecreaseItem_RemovesAtZero(t *testing.T) {
	svc, _ := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.AddItem(snapshot("p-2", 50), 2)

	removed, _, err := svc.DecreaseItem("p-1", 1)
	if err != nil {
		t.Fatalf("decrease failed: %v", err)
	}
	if !removed {
		t.Error("expected the line to be removed")
	}
	if svc.Len() != 1 {
		t.Errorf("expected cart length 1, got %d", svc.Len())
	}

	removed, _, err = svc.DecreaseItem("p-2", 1)
	if err != nil || removed {
		t.Errorf("expected in-place decrease, removed=%v err=%v", removed, err)
	}
	if got := svc.Items()[0].Quantity; got != 1 {
		t.Errorf("expected quantity 1, got %d", got)
	}
}

func TestDecreaseItem_AbsentIsNoop(t *testing.T) {
	svc, store := newTestCart(t)

	removed, pw, err := svc.DecreaseItem("ghost", 1)
	if removed || pw != nil || err != nil {
		t.Errorf("expected a silent no-op, got removed=%v pw=%v err=%v", removed, pw, err)
	}
	time.Sleep(3 * testDebounce)
	if store.writeCount() != 0 {
		t.Error("no-op must not schedule a write")
	}
}

func TestRemoveItem_PersistsOnlyWhenRemoved(t *testing.T) {
	svc, store := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	pw := svc.RemoveItem("p-1")
	waitWrite(t, pw)

	if svc.Len() != 0 {
		t.Error("expected empty cart")
	}
	writes := store.writeCount()

	if pw := svc.RemoveItem("p-1"); pw != nil {
		t.Error("removing an absent item must not schedule a write")
	}
	time.Sleep(3 * testDebounce)
	if store.writeCount() != writes {
		t.Error("no write expected for an absent id")
	}
}

func TestSetQuantity(t *testing.T) {
	svc, _ := newTestCart(t)

	snap := snapshot("p-1", 100)
	snap.StockLimit = int64p(5)
	svc.AddItem(snap, 1)

	if _, err := svc.SetQuantity("p-1", 4); err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if got := svc.Items()[0].Quantity; got != 4 {
		t.Errorf("expected quantity 4, got %d", got)
	}

	if _, err := svc.SetQuantity("p-1", 6); !errors.Is(err, domain.ErrStockExceeded) {
		t.Errorf("expected ErrStockExceeded, got %v", err)
	}
	if _, err := svc.SetQuantity("p-1", 0); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if pw, err := svc.SetQuantity("ghost", 2); pw != nil || err != nil {
		t.Errorf("absent id should be a no-op, got pw=%v err=%v", pw, err)
	}
}

func TestSetQuantity_Unavailable(t *testing.T) {
	svc, _ := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.MarkUnavailable("p-1")

	for _, q := range []int{1, 2, 100} {
		if _, err := svc.SetQuantity("p-1", q); !errors.Is(err, domain.ErrItemUnavailable) {
			t.Errorf("quantity %d: expected ErrItemUnavailable, got %v", q, err)
		}
	}
}

func TestClear_PersistsEmptySnapshot(t *testing.T) {
	svc, store := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 2)
	pw := svc.Clear()
	waitWrite(t, pw)

	if svc.Len() != 0 {
		t.Error("expected empty cart")
	}
	if got := store.stored(port.KeyGuestCart); len(got) != 0 {
		t.Errorf("expected empty persisted snapshot, got %d items", len(got))
	}
}

func TestAcknowledgePriceChange(t *testing.T) {
	svc, _ := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.AddItem(snapshot("p-1", 120), 1)
	pw := svc.AcknowledgePriceChange("p-1")
	waitWrite(t, pw)

	if svc.Items()[0].PriceChanged {
		t.Error("expected priceChanged cleared")
	}
	if pw := svc.AcknowledgePriceChange("ghost"); pw != nil {
		t.Error("absent id should be a no-op")
	}
}

func TestDebounce_CoalescesMutations(t *testing.T) {
	svc, store := newTestCart(t)

	svc.AddItem(snapshot("p-1", 100), 1)
	svc.AddItem(snapshot("p-2", 50), 1)
	pw, err := svc.SetQuantity("p-2", 3)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	waitWrite(t, pw)
	time.Sleep(2 * testDebounce)

	if got := store.writeCount(); got != 1 {
		t.Fatalf("expected exactly one write, got %d", got)
	}

	persisted := store.stored(port.KeyGuestCart)
	if len(persisted) != 2 {
		t.Fatalf("expected final state with 2 lines, got %d", len(persisted))
	}
	if persisted[1].Quantity != 3 {
		t.Errorf("persisted snapshot is stale: quantity %d", persisted[1].Quantity)
	}
}

func TestPersistFailure_KeepsCartAuthoritative(t *testing.T) {
	svc, store := newTestCart(t)

	store.setFailure(port.ErrStorageQuotaExceeded)
	pw, err := svc.AddItem(snapshot("p-1", 100), 1)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if werr := pw.Wait(ctx); !errors.Is(werr, port.ErrStorageQuotaExceeded) {
		t.Fatalf("expected quota error from the write, got %v", werr)
	}

	if svc.Len() != 1 {
		t.Error("persistence failure must not roll back the cart")
	}
	if svc.StorageAvailable() {
		t.Error("expected storage flagged unavailable")
	}
	if !errors.Is(svc.LastWriteError(), port.ErrStorageQuotaExceeded) {
		t.Errorf("expected last-error surfaced, got %v", svc.LastWriteError())
	}

	// Recovery clears the flag on the next successful write.
	store.setFailure(nil)
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if !svc.StorageAvailable() || svc.LastWriteError() != nil {
		t.Error("expected storage availability restored after a good write")
	}
}

func TestHydrate_NormalizesPersistedState(t *testing.T) {
	store := newMockLocalStore()
	store.data[port.KeyGuestCart] = []domain.CartItem{
		{ID: "a", Name: "A", UnitPrice: 100}, // no quantity, no previousPrice
	}
	svc := NewCartService(store, nil, &mockAuth{}, testDebounce, zap.NewNop())
	defer svc.Close()

	svc.Hydrate(context.Background())

	items := svc.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Quantity != 1 || items[0].PreviousPrice != 100 {
		t.Errorf("expected normalized defaults, got %+v", items[0])
	}
	if store.writeCount() != 0 {
		t.Error("hydrate must not write")
	}
}

func TestHydrate_StorageFailureStartsEmpty(t *testing.T) {
	store := newMockLocalStore()
	store.setFailure(port.ErrStorageUnavailable)
	svc := NewCartService(store, nil, &mockAuth{}, testDebounce, zap.NewNop())
	defer svc.Close()

	svc.Hydrate(context.Background())

	if svc.Len() != 0 {
		t.Error("expected empty cart after failed hydrate")
	}
	if svc.StorageAvailable() {
		t.Error("expected storage flagged unavailable")
	}
}

func TestTotals(t *testing.T) {
	svc, _ := newTestCart(t)

	snap := snapshot("p-1", 100)
	snap.DiscountPercent = 10
	svc.AddItem(snap, 2) // 90 * 2 = 180
	svc.AddItem(snapshot("p-2", 50), 3)

	if got := svc.TotalQuantity(); got != 5 {
		t.Errorf("expected total quantity 5, got %d", got)
	}
	if got := svc.ItemSubtotal("p-1"); got != 180 {
		t.Errorf("expected item subtotal 180, got %d", got)
	}
	if got := svc.ItemSubtotal("ghost"); got != 0 {
		t.Errorf("expected 0 for absent id, got %d", got)
	}
	if got := svc.Subtotal(); got != 330 {
		t.Errorf("expected subtotal 330, got %d", got)
	}
	if got := svc.Total(); got != 330 {
		t.Errorf("expected total to pass through subtotal, got %d", got)
	}
}

func TestStorageKey_FollowsAuth(t *testing.T) {
	store := newMockLocalStore()
	auth := &mockAuth{}
	svc := NewCartService(store, nil, auth, testDebounce, zap.NewNop())
	defer svc.Close()

	svc.AddItem(snapshot("p-1", 100), 1)
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(store.stored(port.KeyGuestCart)) != 1 {
		t.Error("expected guest key while unauthenticated")
	}

	auth.authenticated = true
	if err := svc.Flush(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if len(store.stored(port.KeyAuthCart)) != 1 {
		t.Error("expected authenticated key after login")
	}
}
