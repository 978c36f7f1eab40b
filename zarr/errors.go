package zarr

import "errors"

var (
	// ErrNotfound is returned by stores when a key does not exist
	ErrNotfound = errors.New("not found")
	// ErrUnsupported marks array features this package cannot decode
	ErrUnsupported = errors.New("unsupported feature")
	// ErrOutOfBounds is returned when a read reaches past the array shape
	ErrOutOfBounds = errors.New("selection out of bounds")
	// ErrReadOnly is returned when writing to an array opened with ModeRead
	ErrReadOnly = errors.New("array is read-only")
	// ErrNoField is returned when a structured dtype lacks a named field
	ErrNoField = errors.New("no such field")
)
