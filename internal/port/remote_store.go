package port

import (
	"context"
	"fmt"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// Machine-readable codes carried by RemoteError.
const (
	CodeFetchFailed  = "FETCH_FAILED"
	CodeSaveFailed   = "SAVE_FAILED"
	CodeSyncFailed   = "SYNC_FAILED"
	CodeNetworkError = "NETWORK_ERROR"
)

// RemoteError is a failed exchange with the remote cart service. Status
// is the HTTP status when one was received, 0 for transport failures.
type RemoteError struct {
	Code   string
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote cart: %s (status %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("remote cart: %s (status %d): %s", e.Code, e.Status, e.Detail)
}

type RemoteStore interface {
	// FetchCart returns the server-held cart for the current user.
	FetchCart(ctx context.Context) ([]domain.CartItem, error)

	// SaveCart replaces the server-held cart and returns the canonical
	// items as the server stored them.
	SaveCart(ctx context.Context, items []domain.CartItem) ([]domain.CartItem, error)

	// SyncCart asks the server to merge a local and a server snapshot
	// into one authoritative cart. All-or-nothing: on error the caller
	// must keep its pre-merge state.
	SyncCart(ctx context.Context, local, server []domain.CartItem) ([]domain.CartItem, error)
}
