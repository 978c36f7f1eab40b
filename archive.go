package meds

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/qri-io/meds/zarr"
)

// Archive is an open MEDS archive. The catalog and image info table are read
// once by Open and never change; pixels are read from the data source on
// every extraction.
//
// Lookups may be called concurrently. Extractions share the data source
// handle and should be serialized by the caller.
type Archive struct {
	filename string
	src      DataSource
	cat      *Catalog
	info     *ImageInfoTable
	engine   addresser
	opts     *options
	log      logrus.FieldLogger
	closed   bool
}

// Open opens the zarr hierarchy at path as an archive
func Open(path string, opts ...Option) (*Archive, error) {
	store, err := zarr.OpenLocalStore(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening meds archive %s", path)
	}
	a, err := OpenStore(store, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "opening meds archive %s", path)
	}
	a.filename = path
	a.log.WithFields(logrus.Fields{"path": path, "objects": a.Size()}).Debug("opened meds archive")
	return a, nil
}

// OpenStore opens an archive held in a zarr store
func OpenStore(store zarr.Store, opts ...Option) (*Archive, error) {
	o := applyOptions(opts)
	src, err := NewZarrSource(store, zarr.WithCacheSize(o.cacheSize))
	if err != nil {
		return nil, err
	}
	a, err := openSource(src, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	return a, nil
}

// OpenSource builds an archive over src. On success the archive owns src and
// closes it on Close; on failure src is left open.
func OpenSource(src DataSource, opts ...Option) (*Archive, error) {
	return openSource(src, applyOptions(opts))
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func openSource(src DataSource, o *options) (*Archive, error) {
	cat, err := buildCatalog(src, o.logger)
	if err != nil {
		return nil, err
	}

	info, err := buildImageInfo(src, o.logger)
	if errors.Is(err, ErrMissingTable) {
		o.logger.WithError(err).Warn("archive has no image info table")
		info = nil
	} else if err != nil {
		return nil, err
	}

	return &Archive{
		src:    src,
		cat:    cat,
		info:   info,
		engine: addresser{src: src, checkContiguity: o.checkContiguity},
		opts:   o,
		log:    o.logger,
	}, nil
}

// Close releases the data source and the catalog. Closing twice is a no-op.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.cat = nil
	a.info = nil
	return a.src.Close()
}

// Filename is the path the archive was opened from, empty for archives not
// opened with Open
func (a *Archive) Filename() string { return a.filename }

// Catalog returns the object catalog, nil once the archive is closed
func (a *Archive) Catalog() *Catalog { return a.cat }

// ImageInfo returns the image info table, nil when the archive has none or
// is closed
func (a *Archive) ImageInfo() *ImageInfoTable { return a.info }

// Source returns the archive's data source
func (a *Archive) Source() DataSource { return a.src }

// Size is the number of objects in the catalog
func (a *Archive) Size() int {
	if a.closed {
		return 0
	}
	return a.cat.Size()
}

// Capacity is the catalog's per-object cutout capacity
func (a *Archive) Capacity() int {
	if a.closed {
		return 0
	}
	return a.cat.Capacity()
}

// Object returns object i
func (a *Archive) Object(i int) (*Object, error) {
	if a.closed {
		return nil, ErrClosed
	}
	return a.cat.Object(i)
}

// CutoutCount returns the number of cutouts of object i, 0 when i is out of
// range, so callers can loop over objects without checking indices first
func (a *Archive) CutoutCount(i int) int {
	if a.closed {
		return 0
	}
	return a.cat.CutoutCount(i)
}

// ObjectAndCutout returns object i after checking cutout is valid for it
func (a *Archive) ObjectAndCutout(i, cutout int) (*Object, error) {
	if a.closed {
		return nil, ErrClosed
	}
	return a.cat.ObjectAndCutout(i, cutout)
}

// CutoutInfo returns the catalog columns of cutout c of object i
func (a *Archive) CutoutInfo(i, c int) (CutoutInfo, error) {
	o, err := a.ObjectAndCutout(i, c)
	if err != nil {
		return CutoutInfo{}, err
	}
	return o.Cutout(c)
}

// SourceID returns the image info index of the exposure cutout c of object i
// was taken from
func (a *Archive) SourceID(i, c int) (int64, error) {
	o, err := a.ObjectAndCutout(i, c)
	if err != nil {
		return 0, err
	}
	return o.fileID[c], nil
}

// SourceInfo resolves the source exposure of cutout c of object i
func (a *Archive) SourceInfo(i, c int) (ImageInfo, error) {
	id, err := a.SourceID(i, c)
	if err != nil {
		return ImageInfo{}, err
	}
	if a.info == nil {
		return ImageInfo{}, errors.Wrap(ErrMissingTable, ImageInfoTableName)
	}
	info, err := a.info.Info(id)
	if err != nil {
		a.log.WithFields(logrus.Fields{"index": i, "cutout": c, "source_id": id, "images": a.info.Size()}).Warn("source id out of range")
		return ImageInfo{}, err
	}
	return info, nil
}

// SourceFilename returns the filename of the exposure cutout c of object i
// was taken from
func (a *Archive) SourceFilename(i, c int) (string, error) {
	info, err := a.SourceInfo(i, c)
	if err != nil {
		return "", err
	}
	return info.Filename, nil
}
