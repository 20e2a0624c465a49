package cart

import "errors"

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrAmountMismatch     = errors.New("amount does not match offer price")
	ErrEmptyCart          = errors.New("cart has no items")
	ErrCartAlreadyOrdered = errors.New("cart already ordered")
)
