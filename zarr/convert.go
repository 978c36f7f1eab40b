package zarr

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

func (dt Dtype) order() binary.ByteOrder {
	if dt.ByteOrder == BOLittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (dt Dtype) numeric() bool {
	switch dt.BasicType {
	case BTBoolean, BTInteger, BTUnsigned, BTFloatingPoint:
		return true
	}
	return false
}

func checkLen(dt Dtype, b []byte) (int, error) {
	size := dt.Itemsize()
	if size <= 0 || len(b)%size != 0 {
		return 0, fmt.Errorf("%d bytes is not a whole number of %s items", len(b), dt)
	}
	return len(b) / size, nil
}

// DecodeFloats converts packed numeric items to float64
func DecodeFloats(dt Dtype, b []byte) ([]float64, error) {
	n, err := checkLen(dt, b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	if err := decodeNumeric(dt, b, func(i int, f float64, _ int64) { out[i] = f }); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInts converts packed numeric items to int64. Floating point values
// are truncated toward zero.
func DecodeInts(dt Dtype, b []byte) ([]int64, error) {
	n, err := checkLen(dt, b)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	if err := decodeNumeric(dt, b, func(i int, _ float64, v int64) { out[i] = v }); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNumeric(dt Dtype, b []byte, set func(i int, f float64, v int64)) error {
	if !dt.numeric() {
		return fmt.Errorf("%w: %s is not numeric", ErrUnsupported, dt)
	}
	bo := dt.order()
	size := dt.ByteSize
	for i := 0; i*size < len(b); i++ {
		p := b[i*size : (i+1)*size]
		switch dt.BasicType {
		case BTBoolean, BTUnsigned:
			var u uint64
			switch size {
			case 1:
				u = uint64(p[0])
			case 2:
				u = uint64(bo.Uint16(p))
			case 4:
				u = uint64(bo.Uint32(p))
			case 8:
				u = bo.Uint64(p)
			default:
				return fmt.Errorf("%w: %s", ErrUnsupported, dt)
			}
			set(i, float64(u), int64(u))
		case BTInteger:
			var v int64
			switch size {
			case 1:
				v = int64(int8(p[0]))
			case 2:
				v = int64(int16(bo.Uint16(p)))
			case 4:
				v = int64(int32(bo.Uint32(p)))
			case 8:
				v = int64(bo.Uint64(p))
			default:
				return fmt.Errorf("%w: %s", ErrUnsupported, dt)
			}
			set(i, float64(v), v)
		case BTFloatingPoint:
			var f float64
			switch size {
			case 4:
				f = float64(math.Float32frombits(bo.Uint32(p)))
			case 8:
				f = math.Float64frombits(bo.Uint64(p))
			default:
				return fmt.Errorf("%w: %s", ErrUnsupported, dt)
			}
			set(i, f, int64(f))
		}
	}
	return nil
}

// DecodeStrings converts fixed width byte ("S") or UCS-4 ("U") strings,
// trimming numpy's trailing NUL padding
func DecodeStrings(dt Dtype, b []byte) ([]string, error) {
	n, err := checkLen(dt, b)
	if err != nil {
		return nil, err
	}
	size := dt.Itemsize()
	out := make([]string, n)
	for i := range out {
		p := b[i*size : (i+1)*size]
		switch dt.BasicType {
		case BTString:
			out[i] = strings.TrimRight(string(p), "\x00")
		case BTUnicode:
			var sb strings.Builder
			bo := dt.order()
			for j := 0; j < len(p); j += 4 {
				r := rune(bo.Uint32(p[j:]))
				if r == 0 {
					break
				}
				if !utf8.ValidRune(r) {
					r = utf8.RuneError
				}
				sb.WriteRune(r)
			}
			out[i] = sb.String()
		default:
			return nil, fmt.Errorf("%w: %s is not a string type", ErrUnsupported, dt)
		}
	}
	return out, nil
}

// EncodeFloats packs values as items of a numeric dtype
func EncodeFloats(dt Dtype, vals []float64) ([]byte, error) {
	if !dt.numeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupported, dt)
	}
	bo := dt.order()
	size := dt.ByteSize
	b := make([]byte, size*len(vals))
	for i, f := range vals {
		p := b[i*size : (i+1)*size]
		switch {
		case dt.BasicType == BTFloatingPoint && size == 4:
			bo.PutUint32(p, math.Float32bits(float32(f)))
		case dt.BasicType == BTFloatingPoint && size == 8:
			bo.PutUint64(p, math.Float64bits(f))
		case dt.BasicType == BTFloatingPoint:
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, dt)
		default:
			if err := putInt(bo, p, int64(f)); err != nil {
				return nil, fmt.Errorf("%w: %s", err, dt)
			}
		}
	}
	return b, nil
}

// EncodeInts packs values as items of a numeric dtype
func EncodeInts(dt Dtype, vals []int64) ([]byte, error) {
	if dt.BasicType == BTFloatingPoint {
		fs := make([]float64, len(vals))
		for i, v := range vals {
			fs[i] = float64(v)
		}
		return EncodeFloats(dt, fs)
	}
	if !dt.numeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupported, dt)
	}
	bo := dt.order()
	size := dt.ByteSize
	b := make([]byte, size*len(vals))
	for i, v := range vals {
		if err := putInt(bo, b[i*size:(i+1)*size], v); err != nil {
			return nil, fmt.Errorf("%w: %s", err, dt)
		}
	}
	return b, nil
}

func putInt(bo binary.ByteOrder, p []byte, v int64) error {
	switch len(p) {
	case 1:
		p[0] = byte(v)
	case 2:
		bo.PutUint16(p, uint16(v))
	case 4:
		bo.PutUint32(p, uint32(v))
	case 8:
		bo.PutUint64(p, uint64(v))
	default:
		return ErrUnsupported
	}
	return nil
}

// EncodeStrings packs values as fixed width byte ("S") strings, NUL padded,
// or UCS-4 ("U") strings. Values longer than the dtype width are an error;
// the width of a unicode dtype counts code points.
func EncodeStrings(dt Dtype, vals []string) ([]byte, error) {
	switch dt.BasicType {
	case BTString, BTUnicode:
	default:
		return nil, fmt.Errorf("%w: %s is not a string type", ErrUnsupported, dt)
	}
	size := dt.Itemsize()
	b := make([]byte, size*len(vals))
	for i, s := range vals {
		p := b[i*size : (i+1)*size]
		if dt.BasicType == BTString {
			if len(s) > size {
				return nil, fmt.Errorf("string %q exceeds %s width", s, dt)
			}
			copy(p, s)
			continue
		}
		if utf8.RuneCountInString(s) > dt.ByteSize {
			return nil, fmt.Errorf("string %q exceeds %s width", s, dt)
		}
		bo := dt.order()
		j := 0
		for _, r := range s {
			bo.PutUint32(p[j:], uint32(r))
			j += 4
		}
	}
	return b, nil
}
