package port

import (
	"context"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// CartRepository is the server-side durable store behind the remote
// cart API.
type CartRepository interface {
	// GetCart returns the stored cart for a user in insertion order.
	GetCart(ctx context.Context, userID string) ([]domain.CartItem, error)

	// ReplaceCart overwrites the stored cart in one transaction.
	ReplaceCart(ctx context.Context, userID string, items []domain.CartItem) error
}
