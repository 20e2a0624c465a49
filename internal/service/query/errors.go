package query

import "errors"

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrEventNotFound = errors.New("event not found")
)
