package service

import "errors"

var (
	ErrInventoryExhausted = errors.New("inventory exhausted")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrUnknownProduct     = errors.New("unknown product")
)
