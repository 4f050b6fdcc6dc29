package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/port"
)

// MergeSnapshots combines a local and a server cart snapshot:
// local-wins-on-conflict, union-on-disjoint. The local snapshot is kept
// verbatim and in order; server items whose id is absent locally are
// appended in server order. The result is normalized per the
// persisted-snapshot defaulting rules.
func MergeSnapshots(local, server []domain.CartItem) []domain.CartItem {
	merged := domain.CloneItems(local)
	seen := make(map[string]struct{}, len(local))
	for _, it := range local {
		seen[it.ID] = struct{}{}
	}
	for _, it := range server {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		merged = append(merged, it)
	}
	return domain.NormalizeItems(merged)
}

// SyncOnLogin combines the current cart with the server-held one at the
// login transition and replaces the cart with the result. With a remote
// store configured the server performs the merge; any remote failure
// leaves the pre-merge cart untouched and is returned as-is. Without a
// remote, the snapshot under the authenticated storage key stands in
// for the server cart. The merged cart is flushed immediately, past the
// debounce, before the call returns.
func (s *CartService) SyncOnLogin(ctx context.Context) error {
	s.mu.Lock()
	local := domain.CloneItems(s.items)
	s.mu.Unlock()

	var merged []domain.CartItem
	if s.remote != nil {
		server, err := s.remote.FetchCart(ctx)
		if err != nil {
			return fmt.Errorf("fetch server cart: %w", err)
		}
		merged, err = s.remote.SyncCart(ctx, local, server)
		if err != nil {
			return fmt.Errorf("sync carts: %w", err)
		}
		merged = domain.NormalizeItems(merged)
	} else {
		server, err := s.store.Read(ctx, port.KeyAuthCart)
		if err != nil {
			// Treat an unreadable authenticated snapshot as empty so a
			// broken store cannot discard offline edits.
			s.log.Warn("reading authenticated cart failed, merging against empty", zap.Error(err))
			server = nil
		}
		merged = MergeSnapshots(local, server)
	}

	s.mu.Lock()
	s.items = merged
	s.mu.Unlock()

	s.log.Info("cart merged on login",
		zap.Int("local_items", len(local)),
		zap.Int("merged_items", len(merged)))

	return s.Flush(ctx)
}

// ClearGuestCart wipes the guest-key snapshot, typically after its
// contents were merged on login or on logout.
func (s *CartService) ClearGuestCart(ctx context.Context) error {
	if err := s.store.Write(ctx, port.KeyGuestCart, nil); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}
