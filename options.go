package meds

import (
	"github.com/sirupsen/logrus"

	"github.com/qri-io/meds/zarr"
)

// Option configures how an archive is opened.
type Option func(*options)

type options struct {
	logger          logrus.FieldLogger
	imageExt        Extension
	checkContiguity bool
	cacheSize       int
}

func defaultOptions() *options {
	return &options{
		logger:    logrus.StandardLogger(),
		imageExt:  ImageCutouts,
		cacheSize: zarr.DefaultCacheSize,
	}
}

// WithLogger sets the logger used for catalog construction and rejected
// lookups. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithImageExtension sets the pixel store read by Cutout, Mosaic and their
// raw variants. The default is ImageCutouts.
func WithImageExtension(ext Extension) Option {
	return func(o *options) {
		if ext != "" {
			o.imageExt = ext
		}
	}
}

// WithContiguityCheck makes mosaic extraction verify that every cutout of
// the object starts where the previous one ends before reading, failing with
// ErrNonContiguous otherwise.
func WithContiguityCheck() Option {
	return func(o *options) {
		o.checkContiguity = true
	}
}

// WithChunkCacheSize sets how many decoded chunks each zarr array keeps.
// It only applies to archives opened with Open or OpenStore.
func WithChunkCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.cacheSize = n
		}
	}
}
