package workshop

import "errors"

var (
	ErrLoad      = errors.New("composition load failed")
	ErrNotFound  = errors.New("composition not found")
	ErrBadIndex  = errors.New("image index out of range")
	ErrNotLoaded = errors.New("image not loaded")
)
