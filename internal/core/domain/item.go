package domain

// CartItem is one line in the cart. Field names match the persisted
// snapshot format byte for byte; unknown fields on read are dropped and
// missing ones defaulted by NormalizeItems.
type CartItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	UnitPrice       int64   `json:"unitPrice"`
	PreviousPrice   int64   `json:"previousPrice"`
	PriceChanged    bool    `json:"priceChanged"`
	DiscountPercent int     `json:"discountPercent"`
	Quantity        int     `json:"quantity"`
	StockLimit      *int64  `json:"stockLimit"` // nil = unconstrained
	Unavailable     bool    `json:"unavailable"`
	ImageRef        string  `json:"imageRef"`
	Size            *string `json:"size"`
	Color           *string `json:"color"`
}

// ProductSnapshot is the catalog-side payload handed to AddItem.
// Price and Active are pointers so that an absent field is
// distinguishable from a zero value.
type ProductSnapshot struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           *int64  `json:"price"`
	ImageRef        string  `json:"imageRef"`
	StockLimit      *int64  `json:"stockLimit"`
	DiscountPercent int     `json:"discountPercent"`
	Size            *string `json:"size"`
	Color           *string `json:"color"`
	Active          *bool   `json:"isActive"` // nil means active
}

// Validate checks the snapshot before it touches the cart.
func (p ProductSnapshot) Validate() error {
	if p.ID == "" || p.Name == "" || p.Price == nil {
		return ErrIncompleteProduct
	}
	if *p.Price < 0 {
		return ErrInvalidPrice
	}
	if p.Active != nil && !*p.Active {
		return ErrProductInactive
	}
	return nil
}

// CatalogUpdate carries server-sourced truth for one product. Pointer
// fields distinguish "not reported" from an explicit value; only
// reported fields are applied.
type CatalogUpdate struct {
	ID              string `json:"id"`
	Price           *int64 `json:"price"`
	DiscountPercent *int   `json:"discountPercent"`
	StockLimit      *int64 `json:"stockLimit"`
	Active          *bool  `json:"isActive"`
}

// ClampDiscount forces a discount percent into [0, 100].
func ClampDiscount(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NormalizeItems applies the persisted-snapshot defaulting rules:
// quantity >= 1, discount clamped, an absent previousPrice backfilled
// from the price, quantity clamped to a non-nil stock limit. Items
// without an id are dropped. The input slice is not modified.
func NormalizeItems(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		it.DiscountPercent = ClampDiscount(it.DiscountPercent)
		if it.UnitPrice < 0 {
			it.UnitPrice = 0
		}
		if it.PreviousPrice < 0 {
			it.PreviousPrice = 0
		}
		// An unflagged zero previousPrice is an absent field, not a
		// recorded rise from a free price.
		if it.PreviousPrice == 0 && !it.PriceChanged {
			it.PreviousPrice = it.UnitPrice
		}
		if it.StockLimit != nil {
			limit := *it.StockLimit
			it.StockLimit = &limit
			if limit <= 0 {
				it.Unavailable = true
			} else if int64(it.Quantity) > limit {
				it.Quantity = int(limit)
			}
		}
		if it.Size != nil {
			s := *it.Size
			it.Size = &s
		}
		if it.Color != nil {
			c := *it.Color
			it.Color = &c
		}
		out = append(out, it)
	}
	return out
}

// CloneItems deep-copies a ledger snapshot so it can cross a goroutine
// boundary without aliasing the live cart.
func CloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	for i, it := range items {
		if it.StockLimit != nil {
			limit := *it.StockLimit
			it.StockLimit = &limit
		}
		if it.Size != nil {
			s := *it.Size
			it.Size = &s
		}
		if it.Color != nil {
			c := *it.Color
			it.Color = &c
		}
		out[i] = it
	}
	return out
}
