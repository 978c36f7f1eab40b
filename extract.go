package meds

import (
	"github.com/pkg/errors"
)

// Shape describes extracted pixels: NCutout cutouts of NRow x NCol pixels
// stacked along rows
type Shape struct {
	NCutout int
	NRow    int
	NCol    int
}

// Size is the pixel count, NCutout*NRow*NCol
func (s Shape) Size() int { return s.NCutout * s.NRow * s.NCol }

// addresser maps catalog entries to pixel store ranges and reads them from
// the data source it is handed
type addresser struct {
	src             DataSource
	checkContiguity bool
}

func (e addresser) cutout(ext Extension, o *Object, c int) ([]float64, Shape, error) {
	shape := Shape{NCutout: 1, NRow: o.boxSize, NCol: o.boxSize}
	pix, err := e.read(ext, o.startRow[c], shape)
	if err != nil {
		return nil, Shape{}, errors.Wrapf(err, "object %d cutout %d", o.id, c)
	}
	return pix, shape, nil
}

// mosaic reads all cutouts of o with a single read starting at the first
// cutout. Unless contiguity checking is on, the offsets of the other cutouts
// are assumed to follow on.
func (e addresser) mosaic(ext Extension, o *Object) ([]float64, Shape, error) {
	shape := Shape{NCutout: o.ncutout, NRow: o.boxSize, NCol: o.boxSize}
	if o.ncutout == 0 {
		return []float64{}, shape, nil
	}
	if e.checkContiguity {
		if err := o.CheckContiguous(); err != nil {
			return nil, Shape{}, err
		}
	}
	pix, err := e.read(ext, o.startRow[0], shape)
	if err != nil {
		return nil, Shape{}, errors.Wrapf(err, "object %d mosaic", o.id)
	}
	return pix, shape, nil
}

func (e addresser) read(ext Extension, offset int64, shape Shape) ([]float64, error) {
	npix := shape.Size()
	if npix == 0 {
		return []float64{}, nil
	}
	if offset < 0 {
		return nil, errors.Wrapf(ErrMalformed, "negative pixel offset %d", offset)
	}
	pix, err := e.src.ReadPixels(ext, offset, int64(npix))
	if err != nil {
		return nil, err
	}
	if len(pix) != npix {
		return nil, errors.Wrapf(ErrMalformed, "read %d pixels, want %d", len(pix), npix)
	}
	return pix, nil
}

// CutoutPixels reads cutout c of object i from the image extension as a flat
// row-major buffer
func (a *Archive) CutoutPixels(i, c int) ([]float64, Shape, error) {
	return a.CutoutPixelsFrom(a.opts.imageExt, i, c)
}

// CutoutPixelsFrom reads cutout c of object i from the named extension
func (a *Archive) CutoutPixelsFrom(ext Extension, i, c int) ([]float64, Shape, error) {
	o, err := a.ObjectAndCutout(i, c)
	if err != nil {
		return nil, Shape{}, err
	}
	return a.engine.cutout(ext, o, c)
}

// MosaicPixels reads every cutout of object i from the image extension,
// stacked along rows
func (a *Archive) MosaicPixels(i int) ([]float64, Shape, error) {
	return a.MosaicPixelsFrom(a.opts.imageExt, i)
}

// MosaicPixelsFrom reads every cutout of object i from the named extension
func (a *Archive) MosaicPixelsFrom(ext Extension, i int) ([]float64, Shape, error) {
	o, err := a.Object(i)
	if err != nil {
		return nil, Shape{}, err
	}
	return a.engine.mosaic(ext, o)
}

// Cutout reads cutout c of object i into a view
func (a *Archive) Cutout(i, c int) (*View, error) {
	return a.CutoutFrom(a.opts.imageExt, i, c)
}

// CutoutFrom reads cutout c of object i of the named extension into a view
func (a *Archive) CutoutFrom(ext Extension, i, c int) (*View, error) {
	return viewOf(a.CutoutPixelsFrom(ext, i, c))
}

// Mosaic reads every cutout of object i into a view
func (a *Archive) Mosaic(i int) (*View, error) {
	return a.MosaicFrom(a.opts.imageExt, i)
}

// MosaicFrom reads every cutout of object i of the named extension into a
// view
func (a *Archive) MosaicFrom(ext Extension, i int) (*View, error) {
	return viewOf(a.MosaicPixelsFrom(ext, i))
}

// WeightCutout reads cutout c of object i from the weight map
func (a *Archive) WeightCutout(i, c int) (*View, error) {
	return a.CutoutFrom(WeightCutouts, i, c)
}

// WeightMosaic reads every weight map cutout of object i
func (a *Archive) WeightMosaic(i int) (*View, error) {
	return a.MosaicFrom(WeightCutouts, i)
}

func viewOf(pix []float64, shape Shape, err error) (*View, error) {
	if err != nil {
		return nil, err
	}
	return NewView(pix, shape)
}
