package zarr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Dtype is the set of all zarr data types
// Simple data types as a string following the NumPy array protocol type string
// (typestr) format. The format consists of 3 parts:
//   - One character describing the byteorder of the data:
//     "<": little-endian; ">": big-endian; "|": not-relevant)
//   - One character code giving the basic type of the array:
//   - "b": Boolean (integer type where all values are only True or False)
//   - "i": integer;
//   - "u": unsigned integer
//   - "f": floating point
//   - "c": complex floating point
//   - "m": timedelta;
//   - "M": datetime
//   - "S": string (fixed-length sequence of char)
//   - "U": unicode (fixed-length sequence of Py_UNICODE)
//   - "V": other (void * – each item is a fixed-size chunk of memory))
//   - An integer specifying the number of bytes the type uses.
//
// The byte order is optional in some circumstances, within the zarr format
// byte order MUST be specified
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

func ParseDtype(s string) (dt Dtype, err error) {
	// bug in python implementation uses HTML escape sequences when serializaing JSON
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 3 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	sizeStr := s
	if i := strings.IndexByte(s, '['); i >= 0 {
		sizeStr, dt.Units = s[:i], s[i:]
		if !strings.HasSuffix(dt.Units, "]") {
			return dt, fmt.Errorf("invalid Dtype units %q", dt.Units)
		}
	}

	size, err := strconv.ParseInt(sizeStr, 10, 0)
	if err != nil {
		return dt, fmt.Errorf("invalid Dtype size %q: %w", sizeStr, err)
	}
	if size <= 0 {
		return dt, fmt.Errorf("invalid Dtype size %d", size)
	}
	dt.ByteSize = int(size)

	return dt, nil
}

func (dt Dtype) String() string {
	s := fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
	if dt.Units != "" {
		s += dt.Units
	}
	return s
}

// Itemsize is the number of bytes one element occupies. It differs from
// ByteSize only for unicode strings, which numpy sizes in 4-byte code points.
func (dt Dtype) Itemsize() int {
	if dt.BasicType == BTUnicode {
		return 4 * dt.ByteSize
	}
	return dt.ByteSize
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTOther         BasicType = 'V'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timeDelta",
	BTDatetime:      "dateTime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTOther:         "other",
}

// StructuredType is either a basic dtype (Fieldname empty, no Children), a
// record type (Children only) or a named field of a record. Fields may carry
// a subarray Shape, as in ["file_id", "<i8", [3]].
type StructuredType struct {
	Fieldname string
	Dtype     Dtype
	Shape     []int
	Children  []StructuredType
}

var (
	_ json.Unmarshaler = (*StructuredType)(nil)
	_ json.Marshaler   = StructuredType{}
)

func ParseStructuredType(d interface{}) (StructuredType, error) {
	switch v := d.(type) {
	case string:
		// string is a Dtype literal
		dt, err := ParseDtype(v)
		if err != nil {
			return StructuredType{}, err
		}
		return StructuredType{Dtype: dt}, nil
	case []interface{}:
		if len(v) > 0 {
			if _, ok := v[0].(string); ok {
				return parseStructuredField(v)
			}
		}
		return parseStructuredRecord(v)
	default:
		return StructuredType{}, fmt.Errorf("unexpected type %T", d)
	}
}

func parseStructuredRecord(d []interface{}) (StructuredType, error) {
	if len(d) == 0 {
		return StructuredType{}, fmt.Errorf("invalid structured Dtype: record has no fields")
	}
	rec := StructuredType{}
	seen := map[string]struct{}{}
	for i, el := range d {
		f, ok := el.([]interface{})
		if !ok {
			return StructuredType{}, fmt.Errorf("element %d: expected a field definition list, got %T", i, el)
		}
		ch, err := parseStructuredField(f)
		if err != nil {
			return StructuredType{}, fmt.Errorf("element %d: %w", i, err)
		}
		if _, dup := seen[ch.Fieldname]; dup {
			return StructuredType{}, fmt.Errorf("element %d: duplicate field %q", i, ch.Fieldname)
		}
		seen[ch.Fieldname] = struct{}{}
		rec.Children = append(rec.Children, ch)
	}
	return rec, nil
}

func parseStructuredField(d []interface{}) (StructuredType, error) {
	if len(d) < 2 || len(d) > 3 {
		return StructuredType{}, fmt.Errorf("invalid structured Dtype: field definition needs 2 or 3 elements, got %d", len(d))
	}

	t := StructuredType{}
	fieldName, ok := d[0].(string)
	if !ok {
		return StructuredType{}, fmt.Errorf("invalid structured Dtype: field name must be a string. got %T", d[0])
	}
	t.Fieldname = fieldName

	switch x := d[1].(type) {
	case string:
		dtype, err := ParseDtype(x)
		if err != nil {
			return StructuredType{}, fmt.Errorf("field %q: %w", fieldName, err)
		}
		t.Dtype = dtype
	case []interface{}:
		ch, err := parseStructuredRecord(x)
		if err != nil {
			return StructuredType{}, fmt.Errorf("field %q: %w", fieldName, err)
		}
		t.Children = ch.Children
	default:
		return t, fmt.Errorf("invalid structured Dtype: want either string or Structured Type. got %T", d[1])
	}

	if len(d) == 3 {
		shape, err := parseShape(d[2])
		if err != nil {
			return StructuredType{}, fmt.Errorf("field %q: %w", fieldName, err)
		}
		t.Shape = shape
	}

	return t, nil
}

// shapes decode from JSON as []interface{} of float64, or a bare number for
// one-dimensional subarrays
func parseShape(v interface{}) ([]int, error) {
	switch s := v.(type) {
	case float64:
		return parseShape([]interface{}{s})
	case []interface{}:
		shape := make([]int, len(s))
		for i, el := range s {
			n, ok := el.(float64)
			if !ok || n < 0 || n != float64(int(n)) {
				return nil, fmt.Errorf("invalid shape element %v", el)
			}
			shape[i] = int(n)
		}
		return shape, nil
	default:
		return nil, fmt.Errorf("invalid shape %v", v)
	}
}

func (st StructuredType) IsBasic() bool {
	return st.Fieldname == "" && len(st.Children) == 0 && st.Shape == nil
}

// IsRecord reports whether st is a record of named fields
func (st StructuredType) IsRecord() bool {
	return st.Fieldname == "" && len(st.Children) > 0
}

func (st StructuredType) Human() string {
	if st.IsBasic() {
		return st.Dtype.BasicType.Human()
	}
	return "struct"
}

// Len is the number of elements in a field's subarray, 1 for scalars
func (st StructuredType) Len() int {
	n := 1
	for _, d := range st.Shape {
		n *= d
	}
	return n
}

// Itemsize is the packed size in bytes of one value of st, including any
// subarray shape. numpy packs structured dtypes without padding.
func (st StructuredType) Itemsize() int {
	elem := st.Dtype.Itemsize()
	if len(st.Children) > 0 {
		elem = 0
		for _, ch := range st.Children {
			elem += ch.Itemsize()
		}
	}
	return elem * st.Len()
}

// Field describes a top-level field of a record dtype as laid out in a
// packed record
type Field struct {
	Name   string
	Dtype  Dtype
	Shape  []int
	Offset int
}

// Len is the number of elements in the field
func (f Field) Len() int {
	n := 1
	for _, d := range f.Shape {
		n *= d
	}
	return n
}

// Field locates a named top-level field. Nested record fields are reported
// as ErrUnsupported.
func (st StructuredType) Field(name string) (Field, error) {
	off := 0
	for _, ch := range st.Children {
		if ch.Fieldname == name {
			if len(ch.Children) > 0 {
				return Field{}, fmt.Errorf("%w: nested record field %q", ErrUnsupported, name)
			}
			return Field{Name: name, Dtype: ch.Dtype, Shape: ch.Shape, Offset: off}, nil
		}
		off += ch.Itemsize()
	}
	return Field{}, fmt.Errorf("%w: %q", ErrNoField, name)
}

// Fieldnames lists the top-level field names in declaration order
func (st StructuredType) Fieldnames() []string {
	names := make([]string, 0, len(st.Children))
	for _, ch := range st.Children {
		names = append(names, ch.Fieldname)
	}
	return names
}

func (st StructuredType) MarshalJSON() ([]byte, error) {
	if st.IsBasic() {
		return st.Dtype.MarshalJSON()
	}
	if st.IsRecord() {
		return json.Marshal(st.Children)
	}

	d := []interface{}{st.Fieldname}
	if len(st.Children) > 0 {
		d = append(d, st.Children)
	} else {
		d = append(d, st.Dtype)
	}
	if st.Shape != nil {
		d = append(d, st.Shape)
	}

	return json.Marshal(d)
}

func (st *StructuredType) UnmarshalJSON(d []byte) error {
	var v interface{}
	if err := json.Unmarshal(d, &v); err != nil {
		return err
	}

	t, err := ParseStructuredType(v)
	if err != nil {
		return err
	}

	*st = t
	return nil
}
