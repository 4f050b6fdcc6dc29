package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rlin26/cart-engine/internal/core/domain"
)

// MySQLAdapter is the server-side cart store behind the remote cart
// API. One row per cart line, keyed by (user_id, position) so insertion
// order survives the round trip. Writes replace the whole cart in one
// transaction. It implements port.CartRepository.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, name, unit_price, previous_price, price_changed,
		       discount_percent, quantity, stock_limit, unavailable,
		       image_ref, size, color
		FROM cart_items
		WHERE user_id = ?
		ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var (
			it         domain.CartItem
			stockLimit sql.NullInt64
			size       sql.NullString
			color      sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.PreviousPrice,
			&it.PriceChanged, &it.DiscountPercent, &it.Quantity, &stockLimit,
			&it.Unavailable, &it.ImageRef, &size, &color); err != nil {
			return nil, fmt.Errorf("scan cart row: %w", err)
		}
		if stockLimit.Valid {
			limit := stockLimit.Int64
			it.StockLimit = &limit
		}
		if size.Valid {
			s := size.String
			it.Size = &s
		}
		if color.Valid {
			c := color.String
			it.Color = &c
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart rows: %w", err)
	}
	return items, nil
}

func (m *MySQLAdapter) ReplaceCart(ctx context.Context, userID string, items []domain.CartItem) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	for pos, it := range items {
		var (
			stockLimit sql.NullInt64
			size       sql.NullString
			color      sql.NullString
		)
		if it.StockLimit != nil {
			stockLimit = sql.NullInt64{Int64: *it.StockLimit, Valid: true}
		}
		if it.Size != nil {
			size = sql.NullString{String: *it.Size, Valid: true}
		}
		if it.Color != nil {
			color = sql.NullString{String: *it.Color, Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items
				(user_id, position, item_id, name, unit_price, previous_price,
				 price_changed, discount_percent, quantity, stock_limit,
				 unavailable, image_ref, size, color, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`,
			userID, pos, it.ID, it.Name, it.UnitPrice, it.PreviousPrice,
			it.PriceChanged, it.DiscountPercent, it.Quantity, stockLimit,
			it.Unavailable, it.ImageRef, size, color,
		); err != nil {
			return fmt.Errorf("insert cart row %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}
