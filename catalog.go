package meds

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// sentinel fills per-cutout slots past ncutout so stray reads stand out
const sentinel = -9999

// Object is one catalog entry. Its per-cutout arrays all have the catalog's
// capacity; only the first NCutout entries are meaningful.
type Object struct {
	id      int64
	ncutout int
	boxSize int

	fileID       []int64
	startRow     []int64
	origRow      []float64
	origCol      []float64
	origStartRow []int64
	origStartCol []int64
	cutoutRow    []float64
	cutoutCol    []float64
}

// CutoutInfo holds the per-cutout columns of one cutout
type CutoutInfo struct {
	// FileID indexes the image info table
	FileID int64
	// StartRow is the offset of the cutout's first pixel in the pixel store
	StartRow int64
	// OrigRow and OrigCol give the object center in the source image
	OrigRow, OrigCol float64
	// OrigStartRow and OrigStartCol give the cutout corner in the source image
	OrigStartRow, OrigStartCol int64
	// CutoutRow and CutoutCol give the object center within the cutout
	CutoutRow, CutoutCol float64
}

func (o *Object) ID() int64     { return o.id }
func (o *Object) NCutout() int  { return o.ncutout }
func (o *Object) BoxSize() int  { return o.boxSize }
func (o *Object) Capacity() int { return len(o.fileID) }

// CutoutSize is the pixel count of one cutout, box_size squared
func (o *Object) CutoutSize() int { return o.boxSize * o.boxSize }

// MosaicSize is the pixel count of all cutouts
func (o *Object) MosaicSize() int { return o.CutoutSize() * o.ncutout }

// Cutout returns the columns of cutout c
func (o *Object) Cutout(c int) (CutoutInfo, error) {
	if err := o.checkCutout(c); err != nil {
		return CutoutInfo{}, err
	}
	return CutoutInfo{
		FileID:       o.fileID[c],
		StartRow:     o.startRow[c],
		OrigRow:      o.origRow[c],
		OrigCol:      o.origCol[c],
		OrigStartRow: o.origStartRow[c],
		OrigStartCol: o.origStartCol[c],
		CutoutRow:    o.cutoutRow[c],
		CutoutCol:    o.cutoutCol[c],
	}, nil
}

func (o *Object) checkCutout(c int) error {
	if c < 0 || c >= o.ncutout {
		return &IndexError{What: "cutout", Index: int64(c), Limit: int64(o.ncutout)}
	}
	return nil
}

// FileIDs returns a copy of the valid file ids
func (o *Object) FileIDs() []int64 {
	return append([]int64(nil), o.fileID[:o.ncutout]...)
}

// StartRows returns a copy of the valid pixel store offsets
func (o *Object) StartRows() []int64 {
	return append([]int64(nil), o.startRow[:o.ncutout]...)
}

// CheckContiguous verifies that cutout c starts at start_row[0] + c*box_size²
// for every cutout, which mosaic extraction relies on
func (o *Object) CheckContiguous() error {
	step := int64(o.CutoutSize())
	for c := 1; c < o.ncutout; c++ {
		if want := o.startRow[0] + int64(c)*step; o.startRow[c] != want {
			return errors.Wrapf(ErrNonContiguous, "object %d cutout %d starts at %d, want %d", o.id, c, o.startRow[c], want)
		}
	}
	return nil
}

// Catalog is the immutable object table of an archive
type Catalog struct {
	objects  []Object
	capacity int
	log      logrus.FieldLogger
}

// newCatalog allocates n objects whose per-cutout arrays are carved from one
// sentinel-filled arena per column
func newCatalog(n, capacity int, log logrus.FieldLogger) (*Catalog, error) {
	if n < 0 || capacity < 0 {
		return nil, errors.Wrapf(ErrMalformed, "invalid catalog dimensions %d x %d", n, capacity)
	}
	if capacity > 0 && n > math.MaxInt32/capacity {
		return nil, errors.Wrapf(ErrMalformed, "catalog of %d objects x %d cutouts is too large", n, capacity)
	}

	total := n * capacity
	ints := func() []int64 {
		s := make([]int64, total)
		for i := range s {
			s[i] = sentinel
		}
		return s
	}
	floats := func() []float64 {
		s := make([]float64, total)
		for i := range s {
			s[i] = sentinel
		}
		return s
	}
	fileID, startRow, origStartRow, origStartCol := ints(), ints(), ints(), ints()
	origRow, origCol, cutoutRow, cutoutCol := floats(), floats(), floats(), floats()

	cat := &Catalog{
		objects:  make([]Object, n),
		capacity: capacity,
		log:      log,
	}
	for i := range cat.objects {
		lo, hi := i*capacity, (i+1)*capacity
		cat.objects[i] = Object{
			fileID:       fileID[lo:hi:hi],
			startRow:     startRow[lo:hi:hi],
			origRow:      origRow[lo:hi:hi],
			origCol:      origCol[lo:hi:hi],
			origStartRow: origStartRow[lo:hi:hi],
			origStartCol: origStartCol[lo:hi:hi],
			cutoutRow:    cutoutRow[lo:hi:hi],
			cutoutCol:    cutoutCol[lo:hi:hi],
		}
	}
	return cat, nil
}

// buildCatalog reads the object table. The capacity of every object is the
// declared width of the file_id column.
func buildCatalog(src DataSource, log logrus.FieldLogger) (*Catalog, error) {
	n, err := src.RowCount(ObjectTableName)
	if err != nil {
		return nil, errors.Wrap(err, "reading object table")
	}
	capacity, err := src.ArrayColumnWidth(ObjectTableName, ColFileID)
	if err != nil {
		return nil, errors.Wrap(err, "reading ncutout max")
	}
	for _, col := range ObjectColumns {
		width, err := src.ArrayColumnWidth(ObjectTableName, col)
		if err != nil {
			return nil, errors.Wrap(err, "checking object table columns")
		}
		if isCutoutColumn(col) && width != capacity {
			return nil, errors.Wrapf(ErrMalformed, "column %s has width %d, %s has %d", col, width, ColFileID, capacity)
		}
	}
	log.WithFields(logrus.Fields{"objects": n, "ncutout_max": capacity}).Debug("reading object table")

	cat, err := newCatalog(n, capacity, log)
	if err != nil {
		return nil, err
	}
	for i := range cat.objects {
		if err := loadObject(src, &cat.objects[i], i); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func isCutoutColumn(col string) bool {
	for _, c := range cutoutColumns {
		if c == col {
			return true
		}
	}
	return false
}

func loadObject(src DataSource, o *Object, row int) error {
	var err error
	if o.id, err = src.ReadInt(ObjectTableName, ColID, row); err != nil {
		return errors.Wrapf(err, "row %d", row)
	}
	ncutout, err := src.ReadInt(ObjectTableName, ColNCutout, row)
	if err != nil {
		return errors.Wrapf(err, "row %d", row)
	}
	if ncutout < 0 || ncutout > int64(o.Capacity()) {
		return errors.Wrapf(ErrMalformed, "row %d: ncutout %d outside [0, %d]", row, ncutout, o.Capacity())
	}
	box, err := src.ReadInt(ObjectTableName, ColBoxSize, row)
	if err != nil {
		return errors.Wrapf(err, "row %d", row)
	}
	if box < 0 {
		return errors.Wrapf(ErrMalformed, "row %d: box_size %d", row, box)
	}
	o.ncutout, o.boxSize = int(ncutout), int(box)
	if o.ncutout == 0 {
		return nil
	}

	ints := []struct {
		col string
		dst []int64
	}{
		{ColFileID, o.fileID},
		{ColStartRow, o.startRow},
		{ColOrigStartRow, o.origStartRow},
		{ColOrigStartCol, o.origStartCol},
	}
	for _, c := range ints {
		vals, err := src.ReadInts(ObjectTableName, c.col, row, o.ncutout)
		if err != nil {
			return errors.Wrapf(err, "row %d", row)
		}
		if len(vals) != o.ncutout {
			return errors.Wrapf(ErrMalformed, "row %d: read %d %s values, want %d", row, len(vals), c.col, o.ncutout)
		}
		copy(c.dst, vals)
	}

	floats := []struct {
		col string
		dst []float64
	}{
		{ColOrigRow, o.origRow},
		{ColOrigCol, o.origCol},
		{ColCutoutRow, o.cutoutRow},
		{ColCutoutCol, o.cutoutCol},
	}
	for _, c := range floats {
		vals, err := src.ReadFloats(ObjectTableName, c.col, row, o.ncutout)
		if err != nil {
			return errors.Wrapf(err, "row %d", row)
		}
		if len(vals) != o.ncutout {
			return errors.Wrapf(ErrMalformed, "row %d: read %d %s values, want %d", row, len(vals), c.col, o.ncutout)
		}
		copy(c.dst, vals)
	}
	return nil
}

// Size is the number of objects
func (c *Catalog) Size() int { return len(c.objects) }

// Capacity is the per-object cutout capacity, ncutout_max
func (c *Catalog) Capacity() int { return c.capacity }

// Object returns object i
func (c *Catalog) Object(i int) (*Object, error) {
	if i < 0 || i >= len(c.objects) {
		c.log.WithFields(logrus.Fields{"index": i, "size": len(c.objects)}).Warn("object index out of range")
		return nil, &IndexError{What: "object", Index: int64(i), Limit: int64(len(c.objects))}
	}
	return &c.objects[i], nil
}

// CutoutCount returns the number of cutouts of object i, or 0 when i is out
// of range
func (c *Catalog) CutoutCount(i int) int {
	if i < 0 || i >= len(c.objects) {
		return 0
	}
	return c.objects[i].ncutout
}

// ObjectAndCutout returns object i after checking that cutout is one of its
// cutouts. Every per-cutout lookup goes through here.
func (c *Catalog) ObjectAndCutout(i, cutout int) (*Object, error) {
	o, err := c.Object(i)
	if err != nil {
		return nil, err
	}
	if err := o.checkCutout(cutout); err != nil {
		c.log.WithFields(logrus.Fields{"index": i, "cutout": cutout, "ncutout": o.ncutout}).Warn("cutout index out of range")
		return nil, err
	}
	return o, nil
}
