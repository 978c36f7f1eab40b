package zarr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

type MetaType string

const (
	// MTAttributes stores userland metadata keyed by array name
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key for storing metadata on an array store
	MTArray MetaType = ".zarray"
	// MTGroup is the key for storing group definitions on an array store
	MTGroup MetaType = ".zgroup"
	// MTMetadata is the key for composite metadata
	MTMetadata MetaType = ".zmetadata"
)

// FormatVersion is the zarr storage specification version this package reads
// and writes
const FormatVersion = 2

type MetaTyper interface {
	MetaType() MetaType
}

var metaTypes = map[MetaType]struct{}{
	MTAttributes: {},
	MTArray:      {},
	MTGroup:      {},
}

// relies on the fact that all keynames are 7 characters long
func KeyMetaType(s string) (mt MetaType, ok bool) {
	if len(s) < 7 {
		return mt, false
	}
	mt = MetaType(s[len(s)-7:])
	_, ok = metaTypes[mt]
	return mt, ok
}

type Attributes map[string]interface{}

func (Attributes) MetaType() MetaType { return MTAttributes }

// Arrays can be organized into groups which can also contain other groups.
// A group is created by storing group metadata under the “.zgroup” key under
// some logical path. E.g., a group exists at the root of an array store if the
// “.zgroup” key exists in the store, and a group exists at logical path
// “foo/bar” if the “foo/bar/.zgroup” key exists in the store.
type GroupMeta struct {
	ZarrFormat int `json:"zarr_format"`
}

func (GroupMeta) MetaType() MetaType { return MTGroup }

type ConsolidatedMetadata struct {
	ConsolidatedFormat int                  `json:"zarr_consolidated_format"`
	Metadata           map[string]MetaTyper `json:"metadata"`
}

type consolidatedMetaDecoder struct {
	ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
	Metadata           map[string]json.RawMessage `json:"metadata"`
}

func (m *ConsolidatedMetadata) UnmarshalJSON(d []byte) error {
	cd := consolidatedMetaDecoder{}
	if err := json.Unmarshal(d, &cd); err != nil {
		return err
	}
	cm := ConsolidatedMetadata{
		ConsolidatedFormat: cd.ConsolidatedFormat,
		Metadata:           map[string]MetaTyper{},
	}

	for key, data := range cd.Metadata {
		kt, ok := KeyMetaType(key)
		if !ok {
			return fmt.Errorf("invalid consoldated metadata key: %q", key)
		}

		switch kt {
		case MTArray:
			arr := &ArrayMeta{}
			if err := json.Unmarshal(data, arr); err != nil {
				return fmt.Errorf("reading %q metadata: %w", key, err)
			}
			cm.Metadata[key] = arr
		case MTAttributes:
			attr := Attributes{}
			if err := json.Unmarshal(data, &attr); err != nil {
				return fmt.Errorf("reading %q attributes: %w", key, err)
			}
			cm.Metadata[key] = attr
		case MTGroup:
			grp := GroupMeta{}
			if err := json.Unmarshal(data, &grp); err != nil {
				return fmt.Errorf("reading %q group: %w", key, err)
			}
			cm.Metadata[key] = grp
		}
	}

	*m = cm
	return nil
}

// Array returns the array metadata stored for the array at path
func (m *ConsolidatedMetadata) Array(path string) (*ArrayMeta, bool) {
	if m == nil {
		return nil, false
	}
	key := string(MTArray)
	if path != "" {
		key = path + "/" + key
	}
	am, ok := m.Metadata[key].(*ArrayMeta)
	return am, ok
}

// Each array requires essential configuration metadata to be stored,
// enabling correct interpretation of the stored data.
// This metadata is encoded using JSON and stored as the value of the
// “.zarray” key within an array store.
type ArrayMeta struct {
	// An integer defining the version of the storage specification to which
	// the array store adheres.
	ZarrFormat int `json:"zarr_format"`
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// A list of integers defining the length of each dimension of a chunk of the
	// array. Note that all chunks within a Zarr array have the same shape.
	Chunks []int `json:"chunks"`
	// A string or list defining a valid data type for the array. See also the
	// subsection below on data type encoding.
	Dtype StructuredType `json:"dtype"`
	// A JSON object identifying the primary compression codec and providing
	// configuration parameters, or null if no compressor is to be used. The
	// object MUST contain an "id" key identifying the codec to be used.
	Compressor *CompressionMeta `json:"compressor"`

	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is to be used.
	// If an array has a fixed length byte string data type (e.g., "|S12"), or a
	// structured data type, and if the fill value is not null, then the fill
	// value MUST be encoded as an ASCII string using the standard Base64
	// alphabet.
	FillValue interface{} `json:"fill_value"`
	// Either “C” or “F”, defining the layout of bytes within each chunk of the
	// array. “C” means row-major order, i.e., the last dimension varies fastest;
	// “F” means column-major order, i.e., the first dimension varies fastest.
	Order string `json:"order"`
	// A list of JSON objects providing codec configurations, or null if no
	// filters are to be applied. Each codec configuration object MUST contain a
	// "id" key identifying the codec to be used.
	Filters []Filter `json:"filters"`

	// optional fields

	// If present, either the string "." or "/"" definining the separator placed
	// between the dimensions of a chunk. If the value is not set, then the
	// default MUST be assumed to be ".", leading to chunk keys of the form “0.0”.
	// Arrays defined with "/" as the dimension separator can be considered to
	// have nested, or hierarchical, keys of the form “0/0” that SHOULD where
	// possible produce a directory-like structure.
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

func (a ArrayMeta) MetaType() MetaType { return MTArray }

// Validate checks the subset of the format this package can read: one
// dimensional arrays without filters
func (a *ArrayMeta) Validate() error {
	if a.ZarrFormat != FormatVersion {
		return fmt.Errorf("%w: zarr_format %d", ErrUnsupported, a.ZarrFormat)
	}
	if len(a.Shape) != 1 || len(a.Chunks) != 1 {
		return fmt.Errorf("%w: %d-dimensional array", ErrUnsupported, len(a.Shape))
	}
	if a.Shape[0] < 0 {
		return fmt.Errorf("invalid shape %v", a.Shape)
	}
	if a.Chunks[0] <= 0 {
		return fmt.Errorf("invalid chunk shape %v", a.Chunks)
	}
	if len(a.Filters) > 0 {
		return fmt.Errorf("%w: filters", ErrUnsupported)
	}
	if a.Dtype.Itemsize() <= 0 {
		return fmt.Errorf("invalid dtype itemsize %d", a.Dtype.Itemsize())
	}
	return nil
}

// Len is the number of items in a one dimensional array
func (a *ArrayMeta) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// ChunkLen is the number of items in each chunk of a one dimensional array
func (a *ArrayMeta) ChunkLen() int {
	if len(a.Chunks) == 0 {
		return 0
	}
	return a.Chunks[0]
}

type Filter struct {
	ID     string `json:"id"`
	Delta  string `json:"delta,omitempty"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

const (
	// Not a Number
	FillValueNaN = "NaN"
	// Infinity
	FillValueInfinity = "Infinity"
	// -Infinity
	FillValueNegativeInfinity = "-Infinity"
)

// fillBytes encodes one item of the array's fill value. A null fill value
// fills with zero bytes, as does any fill value for a record dtype that is
// not base64 encoded.
func (a *ArrayMeta) fillBytes() ([]byte, error) {
	size := a.Dtype.Itemsize()
	if a.FillValue == nil {
		return make([]byte, size), nil
	}
	if !a.Dtype.IsBasic() || a.Dtype.Dtype.BasicType == BTString || a.Dtype.Dtype.BasicType == BTOther {
		s, ok := a.FillValue.(string)
		if !ok {
			return make([]byte, size), nil
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decoding fill_value: %w", err)
		}
		out := make([]byte, size)
		copy(out, b)
		return out, nil
	}

	var f float64
	switch v := a.FillValue.(type) {
	case float64:
		f = v
	case bool:
		if v {
			f = 1
		}
	case string:
		switch v {
		case FillValueNaN:
			f = math.NaN()
		case FillValueInfinity:
			f = math.Inf(1)
		case FillValueNegativeInfinity:
			f = math.Inf(-1)
		default:
			return nil, fmt.Errorf("invalid fill_value %q", v)
		}
	default:
		return nil, fmt.Errorf("invalid fill_value type %T", a.FillValue)
	}
	return EncodeFloats(a.Dtype.Dtype, []float64{f})
}
