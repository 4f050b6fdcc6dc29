package port

import (
	"context"
	"errors"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// Storage keys for the two cart modes. The guest key holds edits made
// before login so they survive into the merge.
const (
	KeyAuthCart  = "cart_items_v1"
	KeyGuestCart = "cart_items_guest_v1"
)

// Persistence failures. They occur after the in-memory cart has already
// been mutated and never roll it back; callers record them and keep the
// in-memory state authoritative for the session.
var (
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")
)

type LocalStore interface {
	// Read returns the persisted snapshot under key, or an empty slice
	// when nothing has been written yet.
	Read(ctx context.Context, key string) ([]domain.CartItem, error)

	// Write replaces the snapshot under key in full.
	Write(ctx context.Context, key string, items []domain.CartItem) error
}

// AuthProvider tells the engine which storage key to address. The
// engine never inspects credentials.
type AuthProvider interface {
	IsAuthenticated() bool
}
