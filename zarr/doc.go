// Package zarr reads and writes one dimensional zarr v2 arrays.
//
// Arrays live in a Store under a logical path. Metadata follows the v2
// storage specification: ".zarray" documents with numpy typestr dtypes,
// including structured record dtypes whose fields may carry a subarray
// shape, ".zgroup" and ".zattrs" documents, and optional consolidated
// ".zmetadata" at a group root. Chunks may be stored raw or compressed with
// zlib, gzip or zstd; other codec ids are resolved through
// github.com/qri-io/dataset/compression.
//
// Reading a range of items touches only the chunks that cover it, and
// recently decoded chunks are kept in a small LRU per array.
package zarr
