package collisiongrid

import "errors"

var (
	// ErrGridTooLarge is returned when the world needs more cells per axis
	// than the configured limit.
	ErrGridTooLarge = errors.New("grid exceeds cell limit")
	// ErrPoolExhausted is returned when the record pool cannot grow.
	ErrPoolExhausted = errors.New("record pool exhausted")
	ErrInvalidConfig = errors.New("invalid config")
)
