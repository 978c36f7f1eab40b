package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/qri-io/meds"
	"github.com/qri-io/meds/zarr"
)

var (
	i8 = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTInteger, ByteSize: 8}
	f8 = zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTFloatingPoint, ByteSize: 8}
)

// writeArchive lays out two objects with capacity 2 and 4x4 boxes. Object 1
// has two cutouts; the second starts at startRow1.
func writeArchive(t *testing.T, startRow1 int64) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "test-meds.zarr")
	s, err := zarr.NewLocalStore(dir)
	require.NoError(t, err)
	_, err = zarr.CreateGroup(s, "")
	require.NoError(t, err)

	rows := [][]float64{
		// id, ncutout, box_size
		{10, 1, 4},
		{11, 2, 4},
	}
	cutouts := [][]float64{
		// file_id, start_row per cutout
		{0, 0, 0, 0},
		{1, 0, 16, float64(startRow1)},
	}

	rec := zarr.StructuredType{}
	var data []byte
	for _, col := range meds.ObjectColumns {
		dt := i8
		switch col {
		case meds.ColOrigRow, meds.ColOrigCol, meds.ColCutoutRow, meds.ColCutoutCol:
			dt = f8
		}
		field := zarr.StructuredType{Fieldname: col, Dtype: dt}
		switch col {
		case meds.ColID, meds.ColNCutout, meds.ColBoxSize:
		default:
			field.Shape = []int{2}
		}
		rec.Children = append(rec.Children, field)
	}
	for i := range rows {
		for _, col := range meds.ObjectColumns {
			var vals []float64
			switch col {
			case meds.ColID:
				vals = rows[i][0:1]
			case meds.ColNCutout:
				vals = rows[i][1:2]
			case meds.ColBoxSize:
				vals = rows[i][2:3]
			case meds.ColFileID:
				vals = cutouts[i][0:2]
			case meds.ColStartRow:
				vals = cutouts[i][2:4]
			default:
				vals = []float64{1.5, 2.5}
			}
			f, err := rec.Field(col)
			require.NoError(t, err)
			b, err := zarr.EncodeFloats(f.Dtype, vals)
			require.NoError(t, err)
			data = append(data, b...)
		}
	}
	objects, err := zarr.Create(s, meds.ObjectTableName, &zarr.ArrayMeta{Shape: []int{2}, Chunks: []int{2}, Dtype: rec})
	require.NoError(t, err)
	require.NoError(t, objects.Write(data))

	sdt := zarr.Dtype{ByteOrder: zarr.BONotRelevant, BasicType: zarr.BTString, ByteSize: 16}
	images, err := zarr.Create(s, meds.ImageInfoTableName, &zarr.ArrayMeta{
		Shape:  []int{2},
		Chunks: []int{2},
		Dtype:  zarr.StructuredType{Children: []zarr.StructuredType{{Fieldname: meds.ColFilename, Dtype: sdt}}},
	})
	require.NoError(t, err)
	names, err := zarr.EncodeStrings(sdt, []string{"a.fits", "b.fits"})
	require.NoError(t, err)
	require.NoError(t, images.Write(names))

	pix := make([]float64, 48)
	for k := range pix {
		pix[k] = float64(k)
	}
	store, err := zarr.Create(s, string(meds.ImageCutouts), &zarr.ArrayMeta{
		Shape:      []int{48},
		Chunks:     []int{10},
		Dtype:      zarr.StructuredType{Dtype: f8},
		Compressor: &zarr.CompressionMeta{ID: zarr.CodecZstd},
	})
	require.NoError(t, err)
	b, err := zarr.EncodeFloats(f8, pix)
	require.NoError(t, err)
	require.NoError(t, store.Write(b))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"medsinfo"}, args...))
	return out.String(), err
}

func TestSummary(t *testing.T) {
	dir := writeArchive(t, 32)
	out, err := run(t, "summary", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "objects        : 2\n")
	assert.Contains(t, out, "ncutout_max    : 2\n")
	assert.Contains(t, out, "cutouts        : 3\n")
	assert.Contains(t, out, "images         : 2\n")
	assert.Contains(t, out, "image_cutouts  : 48 pixels\n")
}

func TestObject(t *testing.T) {
	dir := writeArchive(t, 32)
	out, err := run(t, "object", dir, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "id             : 11\n")
	assert.Contains(t, out, "file_id        :  1 0\n")
	assert.Contains(t, out, "start_row      :  16 32\n")
	assert.Contains(t, out, "orig_row       :  1.500000 2.500000\n")

	_, err = run(t, "object", dir, "2")
	assert.True(t, strings.Contains(err.Error(), "out of range"), "got %v", err)
	_, err = run(t, "object", dir, "x")
	assert.Error(t, err)
}

func TestImages(t *testing.T) {
	out, err := run(t, "images", writeArchive(t, 32))
	require.NoError(t, err)
	assert.Equal(t, "0 filename: a.fits\n1 filename: b.fits\n", out)
}

func TestCutoutDigestMatchesMosaic(t *testing.T) {
	dir := writeArchive(t, 32)
	out, err := run(t, "cutout", "--digest", "--pixels", dir, "1", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "source         : a.fits\n")
	assert.Contains(t, out, "shape          : (1, 4, 4)\n")
	assert.Contains(t, out, "\n32 33 34 35\n")

	pix := make([]float64, 16)
	for k := range pix {
		pix[k] = float64(32 + k)
	}
	d, err := pixelDigest(pix)
	require.NoError(t, err)
	assert.Contains(t, out, "digest         : "+d.String()+"\n")

	out, err = run(t, "mosaic", "--digest", dir, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "shape          : (2, 4, 4)\n")
	assert.NotContains(t, out, d.String())
}

func TestVerify(t *testing.T) {
	out, err := run(t, "verify", writeArchive(t, 32))
	require.NoError(t, err)
	assert.Equal(t, "ok: 2 objects\n", out)

	out, err = run(t, "verify", writeArchive(t, 40))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 problems found")
	assert.Contains(t, out, "not contiguous")
	assert.Contains(t, out, "pixels [40, 56) outside image_cutouts of 48 pixels")
}

func TestMissingExtension(t *testing.T) {
	dir := writeArchive(t, 32)
	_, err := run(t, "cutout", "--ext", "weight_cutouts", dir, "0", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), meds.ErrMissingExtension.Error())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Len(t, cfg.options(), 2)

	path := filepath.Join(t.TempDir(), "medsinfo.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
log_level = "debug"
extension = "weight_cutouts"
check_contiguity = true
cache_size = 0
`), 0644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{LogLevel: "debug", Extension: "weight_cutouts", CheckContiguity: true, CacheSize: 0}, cfg)
	assert.Len(t, cfg.options(), 4)

	require.NoError(t, ioutil.WriteFile(path, []byte(`log_level = "loud"`), 0644))
	_, err = loadConfig(path)
	assert.Error(t, err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfigContiguityCheck(t *testing.T) {
	dir := writeArchive(t, 40)
	path := filepath.Join(t.TempDir(), "medsinfo.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("check_contiguity = true\nlog_level = \"error\"\n"), 0644))

	_, err := run(t, "--config", path, "mosaic", dir, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), meds.ErrNonContiguous.Error())
	assert.Equal(t, logrus.ErrorLevel, logrus.GetLevel())

	// without the check the mosaic is read from the first offset
	out, err := run(t, "mosaic", dir, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "shape          : (2, 4, 4)\n")
}
