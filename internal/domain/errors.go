package domain

import "errors"

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrOutOfStock    = errors.New("out of stock")
	ErrOrderNotFound = errors.New("order not found")
	ErrLineNotFound  = errors.New("order line not found")
	ErrLineClosed    = errors.New("order line already received")
	ErrSaleNotFound  = errors.New("sale not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrForbidden     = errors.New("admin role required")
)
