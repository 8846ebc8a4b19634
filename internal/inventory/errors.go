package inventory

import "errors"

var (
	// ErrInvalidItem wraps validation failures for items passed to the gateway
	ErrInvalidItem = errors.New("invalid item")

	// ErrClosed is returned for mutations submitted after the database was closed
	ErrClosed = errors.New("item database closed")
)
