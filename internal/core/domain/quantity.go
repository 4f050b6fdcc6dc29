package domain

// ValidateQuantity gates every caller-supplied quantity before a cart
// mutation is applied.
func ValidateQuantity(q int) error {
	if q < 1 {
		return ErrInvalidQuantity
	}
	return nil
}
