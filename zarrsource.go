package meds

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/qri-io/meds/zarr"
)

// ZarrSource is a DataSource over a zarr hierarchy. Each table is a one
// dimensional array with a record dtype, one record per row and one field
// per column; per-cutout columns are subarray fields. Each image extension
// is a one dimensional numeric array.
type ZarrSource struct {
	group *zarr.Group

	lk     sync.Mutex
	arrays map[string]*zarr.Array
	closed bool
}

var _ DataSource = (*ZarrSource)(nil)

// NewZarrSource opens the root group of store
func NewZarrSource(store zarr.Store, opts ...zarr.ArrayOption) (*ZarrSource, error) {
	g, err := zarr.OpenGroup(store, "", opts...)
	if err != nil {
		return nil, errors.Wrap(err, "opening archive root")
	}
	return &ZarrSource{
		group:  g,
		arrays: map[string]*zarr.Array{},
	}, nil
}

func (s *ZarrSource) array(name string, missing error) (*zarr.Array, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if a, ok := s.arrays[name]; ok {
		return a, nil
	}
	a, err := s.group.Array(name)
	if errors.Is(err, zarr.ErrNotfound) {
		return nil, errors.Wrap(missing, name)
	} else if err != nil {
		return nil, errors.Wrapf(err, "opening %q", name)
	}
	s.arrays[name] = a
	return a, nil
}

func (s *ZarrSource) table(name string) (*zarr.Array, error) {
	a, err := s.array(name, ErrMissingTable)
	if err != nil {
		return nil, err
	}
	if !a.Dtype().IsRecord() {
		return nil, errors.Wrapf(ErrMalformed, "table %q has non-record dtype %s", name, a.Dtype().Human())
	}
	return a, nil
}

func (s *ZarrSource) field(table, column string) (*zarr.Array, zarr.Field, error) {
	a, err := s.table(table)
	if err != nil {
		return nil, zarr.Field{}, err
	}
	f, err := a.Dtype().Field(column)
	if errors.Is(err, zarr.ErrNoField) {
		return nil, zarr.Field{}, errors.Wrapf(ErrMissingColumn, "%s.%s (table has %s)", table, column, strings.Join(a.Dtype().Fieldnames(), ", "))
	} else if err != nil {
		return nil, zarr.Field{}, err
	}
	return a, f, nil
}

// fieldBytes returns the packed bytes of the first count elements of a
// field in one row
func (s *ZarrSource) fieldBytes(table, column string, row, count int) ([]byte, zarr.Field, error) {
	a, f, err := s.field(table, column)
	if err != nil {
		return nil, f, err
	}
	if count < 0 || count > f.Len() {
		return nil, f, errors.Errorf("%s.%s: cannot read %d elements from a column of width %d", table, column, count, f.Len())
	}
	rec, err := a.ReadItems(row, 1)
	if err != nil {
		return nil, f, errors.Wrapf(err, "reading %s row %d", table, row)
	}
	size := f.Dtype.Itemsize()
	return rec[f.Offset : f.Offset+count*size], f, nil
}

func (s *ZarrSource) RowCount(table string) (int, error) {
	a, err := s.table(table)
	if err != nil {
		return 0, err
	}
	return a.Len(), nil
}

func (s *ZarrSource) ArrayColumnWidth(table, column string) (int, error) {
	_, f, err := s.field(table, column)
	if err != nil {
		return 0, err
	}
	switch f.Dtype.BasicType {
	case zarr.BTString, zarr.BTUnicode:
		return f.Dtype.ByteSize, nil
	}
	return f.Len(), nil
}

func (s *ZarrSource) ReadInt(table, column string, row int) (int64, error) {
	vals, err := s.ReadInts(table, column, row, 1)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (s *ZarrSource) ReadFloat(table, column string, row int) (float64, error) {
	vals, err := s.ReadFloats(table, column, row, 1)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (s *ZarrSource) ReadInts(table, column string, row, count int) ([]int64, error) {
	b, f, err := s.fieldBytes(table, column, row, count)
	if err != nil {
		return nil, err
	}
	vals, err := zarr.DecodeInts(f.Dtype, b)
	return vals, errors.Wrapf(err, "decoding %s.%s", table, column)
}

func (s *ZarrSource) ReadFloats(table, column string, row, count int) ([]float64, error) {
	b, f, err := s.fieldBytes(table, column, row, count)
	if err != nil {
		return nil, err
	}
	vals, err := zarr.DecodeFloats(f.Dtype, b)
	return vals, errors.Wrapf(err, "decoding %s.%s", table, column)
}

// ReadString reads a fixed width string column. NUL and trailing blank
// padding is removed.
func (s *ZarrSource) ReadString(table, column string, row int) (string, error) {
	b, f, err := s.fieldBytes(table, column, row, 1)
	if err != nil {
		return "", err
	}
	strs, err := zarr.DecodeStrings(f.Dtype, b)
	if err != nil {
		return "", errors.Wrapf(err, "decoding %s.%s", table, column)
	}
	return strings.TrimRight(strs[0], " "), nil
}

func (s *ZarrSource) ReadPixels(ext Extension, offset, count int64) ([]float64, error) {
	a, err := s.array(string(ext), ErrMissingExtension)
	if err != nil {
		return nil, err
	}
	if !a.Dtype().IsBasic() {
		return nil, errors.Wrapf(ErrMalformed, "image extension with non-numeric dtype %s", a.Info())
	}
	b, err := a.ReadItems(int(offset), int(count))
	if errors.Is(err, zarr.ErrOutOfBounds) {
		return nil, errors.Wrapf(ErrMalformed, "%s: pixels [%d, %d) past store length %d", ext, offset, offset+count, a.Len())
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading %s", ext)
	}
	pix, err := zarr.DecodeFloats(a.Dtype().Dtype, b)
	return pix, errors.Wrapf(err, "decoding %s", ext)
}

// PixelCount is the length of an image extension
func (s *ZarrSource) PixelCount(ext Extension) (int64, error) {
	a, err := s.array(string(ext), ErrMissingExtension)
	if err != nil {
		return 0, err
	}
	return int64(a.Len()), nil
}

// Close drops every open array. Further reads fail with ErrClosed.
func (s *ZarrSource) Close() error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.closed = true
	s.arrays = nil
	return nil
}
