package meds

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/qri-io/meds/zarr"
)

var (
	i8 = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTInteger, ByteSize: 8}
	f4 = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTFloatingPoint, ByteSize: 4}
	f8 = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTFloatingPoint, ByteSize: 8}
)

var columnTypes = map[string]zarr.Dtype{
	ColID:           i8,
	ColNCutout:      i8,
	ColBoxSize:      i8,
	ColFileID:       i8,
	ColStartRow:     i8,
	ColOrigRow:      f8,
	ColOrigCol:      f8,
	ColOrigStartRow: i8,
	ColOrigStartCol: i8,
	ColCutoutRow:    f8,
	ColCutoutCol:    f8,
}

type fixtureCutout struct {
	fileID                     int64
	startRow                   int64
	origRow, origCol           float64
	origStartRow, origStartCol int64
	cutoutRow, cutoutCol       float64
}

type fixtureObject struct {
	id  int64
	box int
	// ncutout overrides len(cutouts) when non-zero
	ncutout int
	cutouts []fixtureCutout
}

// fixture describes a MEDS archive to lay out in a zarr store. Image pixel k
// holds k and weight pixel k holds -k, so extracted values name their offset.
type fixture struct {
	capacity  int
	objects   []fixtureObject
	filenames []string
	namelen   int
	// unicode stores filenames as UCS-4 ("<U") instead of byte strings
	unicode bool

	chunk        int
	compressor   *zarr.CompressionMeta
	consolidated bool
	// npix overrides the pixel store length when non-zero
	npix int
	// widths overrides the subarray width of per-cutout columns
	widths map[string]int
	// skip leaves out columns, tables or extensions by name
	skip map[string]bool
}

func cutoutAt(fileID, startRow int64) fixtureCutout {
	f := float64(startRow)
	return fixtureCutout{
		fileID:       fileID,
		startRow:     startRow,
		origRow:      1000.5 + f,
		origCol:      2000.25 + f,
		origStartRow: 996 + startRow,
		origStartCol: 1996 + startRow,
		cutoutRow:    3.5,
		cutoutCol:    4.5,
	}
}

// defaultFixture is the two object archive: capacity 3, object 0 with one
// 8x8 cutout, object 1 with two
func defaultFixture() *fixture {
	return &fixture{
		capacity: 3,
		objects: []fixtureObject{
			{id: 101, box: 8, cutouts: []fixtureCutout{cutoutAt(0, 0)}},
			{id: 102, box: 8, cutouts: []fixtureCutout{cutoutAt(1, 64), cutoutAt(2, 128)}},
		},
		filenames: []string{"se_r_0001.fits", "se_i_0002.fits", "se_z_0003.fits"},
		namelen:   32,
		chunk:     50,
	}
}

func (fx *fixture) pixelCount() int {
	if fx.npix != 0 {
		return fx.npix
	}
	n := 0
	for _, o := range fx.objects {
		for _, c := range o.cutouts {
			if end := int(c.startRow) + o.box*o.box; end > n {
				n = end
			}
		}
	}
	return n
}

func (fx *fixture) width(col string) int {
	if w, ok := fx.widths[col]; ok {
		return w
	}
	return fx.capacity
}

func (fx *fixture) columnValues(o fixtureObject, col string) []float64 {
	switch col {
	case ColID:
		return []float64{float64(o.id)}
	case ColNCutout:
		n := len(o.cutouts)
		if o.ncutout != 0 {
			n = o.ncutout
		}
		return []float64{float64(n)}
	case ColBoxSize:
		return []float64{float64(o.box)}
	}

	// unused slots hold zero, which the catalog must not expose
	vals := make([]float64, fx.width(col))
	for i, c := range o.cutouts {
		if i >= len(vals) {
			break
		}
		switch col {
		case ColFileID:
			vals[i] = float64(c.fileID)
		case ColStartRow:
			vals[i] = float64(c.startRow)
		case ColOrigRow:
			vals[i] = c.origRow
		case ColOrigCol:
			vals[i] = c.origCol
		case ColOrigStartRow:
			vals[i] = float64(c.origStartRow)
		case ColOrigStartCol:
			vals[i] = float64(c.origStartCol)
		case ColCutoutRow:
			vals[i] = c.cutoutRow
		case ColCutoutCol:
			vals[i] = c.cutoutCol
		}
	}
	return vals
}

func (fx *fixture) chunkLen() int {
	if fx.chunk > 0 {
		return fx.chunk
	}
	return 16
}

// write lays the archive out in s
func (fx *fixture) write(t *testing.T, s zarr.Store) {
	t.Helper()
	_, err := zarr.CreateGroup(s, "")
	require.NoError(t, err)

	var arrays []string
	if !fx.skip[ObjectTableName] {
		fx.writeObjects(t, s)
		arrays = append(arrays, ObjectTableName)
	}
	if !fx.skip[ImageInfoTableName] {
		fx.writeImageInfo(t, s)
		arrays = append(arrays, ImageInfoTableName)
	}

	npix := fx.pixelCount()
	stores := []struct {
		ext   Extension
		dt    zarr.Dtype
		value func(k int) float64
	}{
		{ImageCutouts, f4, func(k int) float64 { return float64(k) }},
		{WeightCutouts, f8, func(k int) float64 { return -float64(k) }},
	}
	for _, ps := range stores {
		if fx.skip[string(ps.ext)] {
			continue
		}
		a, err := zarr.Create(s, string(ps.ext), &zarr.ArrayMeta{
			Shape:      []int{npix},
			Chunks:     []int{fx.chunkLen()},
			Dtype:      zarr.StructuredType{Dtype: ps.dt},
			Compressor: fx.compressor,
			FillValue:  zarr.FillValueNaN,
		})
		require.NoError(t, err)
		vals := make([]float64, npix)
		for k := range vals {
			vals[k] = ps.value(k)
		}
		data, err := zarr.EncodeFloats(ps.dt, vals)
		require.NoError(t, err)
		require.NoError(t, a.Write(data))
		arrays = append(arrays, string(ps.ext))
	}

	if fx.consolidated {
		require.NoError(t, zarr.Consolidate(s, "", arrays...))
	}
}

func (fx *fixture) writeObjects(t *testing.T, s zarr.Store) {
	t.Helper()
	var cols []string
	rec := zarr.StructuredType{}
	for _, col := range ObjectColumns {
		if fx.skip[col] {
			continue
		}
		field := zarr.StructuredType{Fieldname: col, Dtype: columnTypes[col]}
		if isCutoutColumn(col) {
			field.Shape = []int{fx.width(col)}
		}
		rec.Children = append(rec.Children, field)
		cols = append(cols, col)
	}

	var data []byte
	for _, o := range fx.objects {
		for _, col := range cols {
			b, err := zarr.EncodeFloats(columnTypes[col], fx.columnValues(o, col))
			require.NoError(t, err)
			data = append(data, b...)
		}
	}

	a, err := zarr.Create(s, ObjectTableName, &zarr.ArrayMeta{
		Shape:      []int{len(fx.objects)},
		Chunks:     []int{fx.chunkLen()},
		Dtype:      rec,
		Compressor: fx.compressor,
	})
	require.NoError(t, err)
	require.NoError(t, a.Write(data))
}

func (fx *fixture) writeImageInfo(t *testing.T, s zarr.Store) {
	t.Helper()
	name := ColFilename
	if fx.skip[ColFilename] {
		name = "path"
	}
	dt := zarr.Dtype{ByteOrder: zarr.BONotRelevant, BasicType: zarr.BTString, ByteSize: fx.namelen}
	if fx.unicode {
		dt = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTUnicode, ByteSize: fx.namelen}
	}
	a, err := zarr.Create(s, ImageInfoTableName, &zarr.ArrayMeta{
		Shape:  []int{len(fx.filenames)},
		Chunks: []int{fx.chunkLen()},
		Dtype: zarr.StructuredType{Children: []zarr.StructuredType{
			{Fieldname: name, Dtype: dt},
		}},
		Compressor: fx.compressor,
	})
	require.NoError(t, err)
	data, err := zarr.EncodeStrings(dt, fx.filenames)
	require.NoError(t, err)
	require.NoError(t, a.Write(data))
}

// store writes the archive into a fresh memory store
func (fx *fixture) store(t *testing.T) *zarr.MemoryStore {
	t.Helper()
	s := zarr.NewMemoryStore()
	fx.write(t, s)
	return s
}

// open writes the archive and opens it with a silent logger
func (fx *fixture) open(t *testing.T, opts ...Option) *Archive {
	t.Helper()
	log, _ := test.NewNullLogger()
	a, err := OpenStore(fx.store(t), append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// openErr writes the archive and returns the error from opening it
func (fx *fixture) openErr(t *testing.T) error {
	t.Helper()
	log, _ := test.NewNullLogger()
	a, err := OpenStore(fx.store(t), WithLogger(log))
	if err == nil {
		a.Close()
	}
	return err
}

// expectedPixels is what an extraction starting at offset returns from the
// image store of a fixture
func expectedPixels(offset int64, n int) []float64 {
	pix := make([]float64, n)
	for k := range pix {
		pix[k] = float64(offset) + float64(k)
	}
	return pix
}

var errInjected = errors.New("injected read failure")

// faultySource wraps a DataSource and fails selected reads
type faultySource struct {
	DataSource
	failColumn  string
	failPixels  bool
	shortPixels bool
	pixelReads  int
	closes      int
}

func (f *faultySource) ReadInts(table, column string, row, count int) ([]int64, error) {
	if column == f.failColumn {
		return nil, errInjected
	}
	return f.DataSource.ReadInts(table, column, row, count)
}

func (f *faultySource) ReadFloats(table, column string, row, count int) ([]float64, error) {
	if column == f.failColumn {
		return nil, errInjected
	}
	return f.DataSource.ReadFloats(table, column, row, count)
}

func (f *faultySource) ReadPixels(ext Extension, offset, count int64) ([]float64, error) {
	f.pixelReads++
	if f.failPixels {
		return nil, errInjected
	}
	pix, err := f.DataSource.ReadPixels(ext, offset, count)
	if err == nil && f.shortPixels {
		pix = pix[:len(pix)-1]
	}
	return pix, err
}

func (f *faultySource) Close() error {
	f.closes++
	return f.DataSource.Close()
}

func newFaultySource(t *testing.T, fx *fixture) *faultySource {
	t.Helper()
	src, err := NewZarrSource(fx.store(t))
	require.NoError(t, err)
	return &faultySource{DataSource: src}
}
