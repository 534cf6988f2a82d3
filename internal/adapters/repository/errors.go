package repository

import "errors"

// Sentinel kinds for drop totals errors.
var (
	ErrInvalidQuantity = errors.New("invalid drop quantity")
	ErrEmptyItemID     = errors.New("empty item id")
)
