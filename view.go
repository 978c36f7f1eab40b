package meds

import (
	"github.com/pkg/errors"
)

// View is a row-addressable image over a flat pixel buffer. A single cutout
// view has one cutout; a mosaic view stacks NCutout cutouts along rows, so
// row r of cutout c is row c*CutoutNRow()+r of the view.
//
// The view owns its buffer. Release drops it; after release the view is
// empty and pixel access panics like an out of range slice index.
type View struct {
	pix      []float64
	rows     [][]float64
	shape    Shape
	released bool
}

// NewView takes ownership of pix and indexes it by row without copying.
// len(pix) must equal shape.Size().
func NewView(pix []float64, shape Shape) (*View, error) {
	if shape.NCutout < 0 || shape.NRow < 0 || shape.NCol < 0 {
		return nil, errors.Errorf("invalid view shape %+v", shape)
	}
	if len(pix) != shape.Size() {
		return nil, errors.Errorf("view shape %+v needs %d pixels, got %d", shape, shape.Size(), len(pix))
	}
	nrows := shape.NCutout * shape.NRow
	v := &View{pix: pix, shape: shape}
	if shape.NCol > 0 {
		v.rows = make([][]float64, nrows)
		for r := range v.rows {
			lo := r * shape.NCol
			v.rows[r] = pix[lo : lo+shape.NCol : lo+shape.NCol]
		}
	}
	return v, nil
}

// Size is the total pixel count
func (v *View) Size() int { return len(v.pix) }

// NRow is the total number of stacked rows, NCutout*CutoutNRow
func (v *View) NRow() int { return v.shape.NCutout * v.shape.NRow }

func (v *View) NCol() int { return v.shape.NCol }

// NCutout is the number of stacked cutouts, 1 for a single cutout
func (v *View) NCutout() int { return v.shape.NCutout }

// CutoutNRow is the row count of each cutout
func (v *View) CutoutNRow() int { return v.shape.NRow }

// CutoutSize is the pixel count of each cutout
func (v *View) CutoutSize() int { return v.shape.NRow * v.shape.NCol }

// Shape returns the view's shape; a released view has a zero shape
func (v *View) Shape() Shape { return v.shape }

// At returns the pixel at stacked row row and column col
func (v *View) At(row, col int) float64 {
	return v.rows[row][col]
}

// MosaicAt returns pixel (row, col) of cutout cutout
func (v *View) MosaicAt(cutout, row, col int) float64 {
	return v.rows[cutout*v.shape.NRow+row][col]
}

// Row returns stacked row r, sharing the view's buffer
func (v *View) Row(r int) []float64 {
	return v.rows[r]
}

// CutoutPixels returns the pixels of cutout c, sharing the view's buffer
func (v *View) CutoutPixels(c int) []float64 {
	n := v.CutoutSize()
	return v.pix[c*n : (c+1)*n : (c+1)*n]
}

// Pixels returns the whole buffer. It remains owned by the view.
func (v *View) Pixels() []float64 { return v.pix }

// Release drops the view's buffer. Releasing again does nothing.
func (v *View) Release() {
	if v == nil || v.released {
		return
	}
	v.released = true
	v.pix = nil
	v.rows = nil
	v.shape = Shape{}
}

// Released reports whether Release has been called
func (v *View) Released() bool { return v.released }
