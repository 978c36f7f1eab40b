package meds

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors
var (
	ErrOutOfRange       = errors.New("index out of range")
	ErrMalformed        = errors.New("malformed archive")
	ErrMissingTable     = errors.New("missing table")
	ErrMissingColumn    = errors.New("missing column")
	ErrMissingExtension = errors.New("missing image extension")
	ErrNonContiguous    = errors.New("cutouts are not contiguous")
	ErrClosed           = errors.New("archive is closed")
)

// IndexError reports an object, cutout or source id outside its valid range
// [0, Limit). It matches ErrOutOfRange with errors.Is; a bad source id also
// matches ErrMalformed since the catalog itself stored it.
type IndexError struct {
	What  string
	Index int64
	Limit int64
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.What, e.Index, e.Limit)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrOutOfRange || (target == ErrMalformed && e.What == whatSourceID)
}

const whatSourceID = "source id"
