package meds

// DataSource is the tabular and image backend an archive reads from. Rows
// are zero-based. Errors for absent tables, columns and image extensions
// wrap ErrMissingTable, ErrMissingColumn and ErrMissingExtension.
//
// A DataSource is one mutable handle; implementations need not be safe for
// concurrent use.
type DataSource interface {
	// RowCount returns the number of rows in table.
	RowCount(table string) (int, error)
	// ArrayColumnWidth returns the declared fixed capacity of a column: the
	// element count of an array column, the character width of a string
	// column (bytes for byte strings, code points for unicode strings) and 1
	// for a scalar column.
	ArrayColumnWidth(table, column string) (int, error)

	ReadInt(table, column string, row int) (int64, error)
	ReadFloat(table, column string, row int) (float64, error)
	// ReadInts reads the first count elements of an array column.
	ReadInts(table, column string, row, count int) ([]int64, error)
	// ReadFloats reads the first count elements of an array column.
	ReadFloats(table, column string, row, count int) ([]float64, error)
	ReadString(table, column string, row int) (string, error)

	// ReadPixels reads count pixels starting at the linear offset of the
	// named image extension.
	ReadPixels(ext Extension, offset, count int64) ([]float64, error)

	Close() error
}

// Archive layout
const (
	ObjectTableName    = "object_data"
	ImageInfoTableName = "image_info"
)

// Object table columns
const (
	ColID           = "id"
	ColNCutout      = "ncutout"
	ColBoxSize      = "box_size"
	ColFileID       = "file_id"
	ColStartRow     = "start_row"
	ColOrigRow      = "orig_row"
	ColOrigCol      = "orig_col"
	ColOrigStartRow = "orig_start_row"
	ColOrigStartCol = "orig_start_col"
	ColCutoutRow    = "cutout_row"
	ColCutoutCol    = "cutout_col"
)

// ColFilename is the image info table column naming each source exposure
const ColFilename = "filename"

// ObjectColumns lists every column the object table must provide
var ObjectColumns = []string{
	ColID, ColNCutout, ColBoxSize,
	ColFileID, ColStartRow,
	ColOrigRow, ColOrigCol, ColOrigStartRow, ColOrigStartCol,
	ColCutoutRow, ColCutoutCol,
}

// cutoutColumns are the per-cutout array columns sized by the catalog
// capacity
var cutoutColumns = ObjectColumns[3:]

// Extension names a shared pixel store in the archive
type Extension string

const (
	ImageCutouts  Extension = "image_cutouts"
	WeightCutouts Extension = "weight_cutouts"
	SegCutouts    Extension = "seg_cutouts"
	BmaskCutouts  Extension = "bmask_cutouts"
)
