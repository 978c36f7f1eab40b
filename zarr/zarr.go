package zarr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the number of decoded chunks an Array keeps by default
const DefaultCacheSize = 8

// Array is a one dimensional chunked array in a Store. Items are addressed
// by their linear index; an item is one value of the array's dtype, which for
// a record dtype is a whole packed record.
type Array struct {
	path  Path
	store Store
	mode  PersistenceMode
	meta  *ArrayMeta
	fill  []byte

	lk    sync.Mutex
	cache *lru.Cache
}

// ArrayOption configures how an Array is opened or created
type ArrayOption func(*arrayOptions)

type arrayOptions struct {
	cacheSize int
	meta      *ArrayMeta
}

func defaultArrayOptions() *arrayOptions {
	return &arrayOptions{cacheSize: DefaultCacheSize}
}

// WithCacheSize sets how many decoded chunks are kept in memory. Zero
// disables the cache.
func WithCacheSize(n int) ArrayOption {
	return func(o *arrayOptions) {
		if n >= 0 {
			o.cacheSize = n
		}
	}
}

// WithMeta supplies array metadata that was already loaded, typically from
// consolidated metadata, so Open doesn't read the .zarray key
func WithMeta(m *ArrayMeta) ArrayOption {
	return func(o *arrayOptions) {
		o.meta = m
	}
}

// Create writes array metadata to store at path and returns the array open
// for writing. Existing metadata at path is replaced.
func Create(store Store, path string, m *ArrayMeta, opts ...ArrayOption) (*Array, error) {
	if m.ZarrFormat == 0 {
		m.ZarrFormat = FormatVersion
	}
	if m.Order == "" {
		m.Order = "C"
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(p.Join(string(MTArray)).String(), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("writing %q metadata: %w", path, err)
	}

	return newArray(store, p, ModeWrite, m, opts)
}

// Open loads the array at path. The array must exist in every mode.
func Open(store Store, path string, mode PersistenceMode, opts ...ArrayOption) (*Array, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}

	o := defaultArrayOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := o.meta
	if m == nil {
		f, err := store.Get(p.Join(string(MTArray)).String())
		if err != nil {
			return nil, fmt.Errorf("opening array %q: %w", path, err)
		}
		defer f.Close()
		m = &ArrayMeta{}
		if err := json.NewDecoder(f).Decode(m); err != nil {
			return nil, fmt.Errorf("decoding %q metadata: %w", path, err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", path, err)
	}

	return newArray(store, p, mode, m, opts)
}

func newArray(store Store, p Path, mode PersistenceMode, m *ArrayMeta, opts []ArrayOption) (*Array, error) {
	o := defaultArrayOptions()
	for _, opt := range opts {
		opt(o)
	}
	fill, err := m.fillBytes()
	if err != nil {
		return nil, err
	}
	a := &Array{
		path:  p,
		store: store,
		mode:  mode,
		meta:  m,
		fill:  fill,
	}
	if o.cacheSize > 0 {
		a.cache = lru.New(o.cacheSize)
	}
	return a, nil
}

// Info is a one line description of the array for messages
func (a *Array) Info() string {
	return fmt.Sprintf("<zarr.Array %q shape=%v chunks=%v dtype=%s>", a.Path(), a.meta.Shape, a.meta.Chunks, a.meta.Dtype.Human())
}

func (a *Array) Path() string {
	return a.path.String()
}

// Meta returns the array's metadata. It must not be modified.
func (a *Array) Meta() *ArrayMeta { return a.meta }

// Len is the number of items in the array
func (a *Array) Len() int { return a.meta.Len() }

// Dtype is the dtype of one item
func (a *Array) Dtype() StructuredType { return a.meta.Dtype }

// Itemsize is the size in bytes of one item
func (a *Array) Itemsize() int { return a.meta.Dtype.Itemsize() }

// Slice returns the packed bytes of items [start, stop)
func (a *Array) Slice(start, stop int) ([]byte, error) {
	return a.ReadItems(start, stop-start)
}

// ReadAll returns the packed bytes of every item
func (a *Array) ReadAll() ([]byte, error) {
	return a.ReadItems(0, a.Len())
}

// ReadItems returns the packed bytes of count items starting at item start,
// reading across as many chunks as the range covers
func (a *Array) ReadItems(start, count int) ([]byte, error) {
	if start < 0 || count < 0 || start > a.Len()-count {
		return nil, fmt.Errorf("%w: items [%d, %d) of %q with length %d", ErrOutOfBounds, start, start+count, a.Path(), a.Len())
	}
	size := a.Itemsize()
	out := make([]byte, count*size)
	for _, p := range projectRange(start, count, a.meta.ChunkLen()) {
		chunk, err := a.chunk(p.ChunkIX)
		if err != nil {
			return nil, err
		}
		copy(out[p.OutSel*size:(p.OutSel+p.Count)*size], chunk[p.ChunkSel*size:])
	}
	return out, nil
}

// Write stores data, the packed bytes of every item, as chunks. The final
// chunk is padded to full size with the fill value.
func (a *Array) Write(data []byte) error {
	if a.mode == ModeRead {
		return ErrReadOnly
	}
	size := a.Itemsize()
	if len(data) != a.Len()*size {
		return fmt.Errorf("writing %q: got %d bytes, want %d", a.Path(), len(data), a.Len()*size)
	}

	chunkBytes := a.meta.ChunkLen() * size
	for ix := 0; ix*chunkBytes < len(data); ix++ {
		end := (ix + 1) * chunkBytes
		var chunk []byte
		if end <= len(data) {
			chunk = data[ix*chunkBytes : end]
		} else {
			chunk = make([]byte, 0, chunkBytes)
			chunk = append(chunk, data[ix*chunkBytes:]...)
			for len(chunk) < chunkBytes {
				chunk = append(chunk, a.fill...)
			}
		}
		if err := a.writeChunk(ix, chunk); err != nil {
			return err
		}
	}

	a.lk.Lock()
	if a.cache != nil {
		a.cache = lru.New(a.cache.MaxEntries)
	}
	a.lk.Unlock()
	return nil
}

func (a *Array) writeChunk(ix int, chunk []byte) error {
	buf := &bytes.Buffer{}
	w, err := a.meta.Compressor.Compressor(buf)
	if err != nil {
		return err
	}
	if _, err := w.Write(chunk); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return a.store.Put(a.chunkPath(ix).String(), buf)
}

func (a *Array) chunk(ix int) ([]byte, error) {
	a.lk.Lock()
	if a.cache != nil {
		if v, ok := a.cache.Get(ix); ok {
			a.lk.Unlock()
			return v.([]byte), nil
		}
	}
	a.lk.Unlock()

	data, err := a.readChunk(ix)
	if err != nil {
		return nil, err
	}

	a.lk.Lock()
	if a.cache != nil {
		a.cache.Add(ix, data)
	}
	a.lk.Unlock()
	return data, nil
}

func (a *Array) readChunk(ix int) ([]byte, error) {
	want := a.meta.ChunkLen() * a.Itemsize()
	f, err := a.openChunk(ix)
	if errors.Is(err, ErrNotfound) {
		// uninitialized chunks read as the fill value
		return bytes.Repeat(a.fill, a.meta.ChunkLen()), nil
	} else if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("reading chunk %s: %w", a.chunkPath(ix), err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("chunk %s: decoded %d bytes, want %d", a.chunkPath(ix), len(data), want)
	}
	return data, nil
}

func (a *Array) openChunk(ix int) (io.ReadCloser, error) {
	f, err := a.store.Get(a.chunkPath(ix).String())
	if err != nil {
		return nil, err
	}
	rc, err := a.meta.Compressor.Decompressor(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("chunk %s: %w", a.chunkPath(ix), err)
	}
	return rc, nil
}

func (a *Array) chunkPath(ix int) Path {
	return a.path.Join(strconv.Itoa(ix))
}

type PersistenceMode string

const (
	// Persistence mode:
	// ‘r’ means read only (must exist);
	ModeRead PersistenceMode = "r"
	//‘r+’ means read/write (must exist)
	ModeReadWrite PersistenceMode = "r+"
	// ‘a’ means read/write (create if doesn’t exist)
	ModeReadWriteCreate PersistenceMode = "a"
	// ‘w’ means create (overwrite if exists)
	ModeWrite PersistenceMode = "w"
	// ‘w-’ means create (fail if exists).
	ModeWriteFail PersistenceMode = "w-"
)

// Path is a logical, slash separated location in a Store
type Path []string

// NewPath normalizes a posix-style path: backslashes become forward slashes,
// leading, trailing and repeated slashes are dropped. "." and ".." segments
// are rejected.
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, `\`, "/")
	p := Path{}
	for _, seg := range strings.Split(posix, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("invalid path %q: relative segment %q", posix, seg)
		}
		p = append(p, seg)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

func (p Path) Join(elems ...string) Path {
	joined := make(Path, 0, len(p)+len(elems))
	joined = append(joined, p...)
	return append(joined, elems...)
}
