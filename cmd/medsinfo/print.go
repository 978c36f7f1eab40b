package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	digest "github.com/opencontainers/go-digest"

	"github.com/qri-io/meds"
	"github.com/qri-io/meds/zarr"
)

const fieldFormat = "%-14s : "

func printScalar(w io.Writer, name string, v interface{}) {
	fmt.Fprintf(w, fieldFormat+"%v\n", name, v)
}

func printInts(w io.Writer, name string, vals []int64) {
	fmt.Fprintf(w, fieldFormat, name)
	for _, v := range vals {
		fmt.Fprintf(w, " %d", v)
	}
	fmt.Fprintln(w)
}

func printFloats(w io.Writer, name string, vals []float64) {
	fmt.Fprintf(w, fieldFormat, name)
	for _, v := range vals {
		fmt.Fprintf(w, " %f", v)
	}
	fmt.Fprintln(w)
}

func printObject(w io.Writer, o *meds.Object) error {
	printScalar(w, meds.ColID, o.ID())
	printScalar(w, meds.ColNCutout, o.NCutout())
	printScalar(w, meds.ColBoxSize, o.BoxSize())

	n := o.NCutout()
	cols := struct {
		origRow, origCol, cutoutRow, cutoutCol []float64
		origStartRow, origStartCol             []int64
	}{}
	for c := 0; c < n; c++ {
		ci, err := o.Cutout(c)
		if err != nil {
			return err
		}
		cols.origRow = append(cols.origRow, ci.OrigRow)
		cols.origCol = append(cols.origCol, ci.OrigCol)
		cols.origStartRow = append(cols.origStartRow, ci.OrigStartRow)
		cols.origStartCol = append(cols.origStartCol, ci.OrigStartCol)
		cols.cutoutRow = append(cols.cutoutRow, ci.CutoutRow)
		cols.cutoutCol = append(cols.cutoutCol, ci.CutoutCol)
	}
	printInts(w, meds.ColFileID, o.FileIDs())
	printInts(w, meds.ColStartRow, o.StartRows())
	printFloats(w, meds.ColOrigRow, cols.origRow)
	printFloats(w, meds.ColOrigCol, cols.origCol)
	printInts(w, meds.ColOrigStartRow, cols.origStartRow)
	printInts(w, meds.ColOrigStartCol, cols.origStartCol)
	printFloats(w, meds.ColCutoutRow, cols.cutoutRow)
	printFloats(w, meds.ColCutoutCol, cols.cutoutCol)
	return nil
}

func printSummary(w io.Writer, a *meds.Archive, ext meds.Extension) error {
	printScalar(w, "filename", a.Filename())
	printScalar(w, "objects", humanize.Comma(int64(a.Size())))
	printScalar(w, "ncutout_max", a.Capacity())

	ncutout := 0
	for i := 0; i < a.Size(); i++ {
		ncutout += a.CutoutCount(i)
	}
	printScalar(w, "cutouts", humanize.Comma(int64(ncutout)))

	if info := a.ImageInfo(); info != nil {
		printScalar(w, "images", humanize.Comma(int64(info.Size())))
		printScalar(w, "namelen_max", info.NameLenMax())
	} else {
		printScalar(w, "images", "none")
	}

	if zs, ok := a.Source().(*meds.ZarrSource); ok {
		npix, err := zs.PixelCount(ext)
		if err != nil {
			return err
		}
		printScalar(w, string(ext), fmt.Sprintf("%s pixels", humanize.Comma(npix)))
	}
	return nil
}

func printImageInfo(w io.Writer, t *meds.ImageInfoTable) error {
	for id := 0; id < t.Size(); id++ {
		info, err := t.Info(int64(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d filename: %s\n", id, info.Filename)
	}
	return nil
}

// pixelDigest is the sha256 digest of the pixels packed as little endian
// float64, which does not depend on the dtype of the store they came from
func pixelDigest(pix []float64) (digest.Digest, error) {
	b, err := zarr.EncodeFloats(zarr.Dtype{ByteOrder: zarr.BOLittleEndian, BasicType: zarr.BTFloatingPoint, ByteSize: 8}, pix)
	if err != nil {
		return "", err
	}
	return digest.FromBytes(b), nil
}

type viewOutput struct {
	digest bool
	pixels bool
}

func printView(w io.Writer, v *meds.View, out viewOutput) error {
	s := v.Shape()
	printScalar(w, "shape", fmt.Sprintf("(%d, %d, %d)", s.NCutout, s.NRow, s.NCol))
	printScalar(w, "size", humanize.Bytes(uint64(v.Size()*8)))
	if out.digest {
		d, err := pixelDigest(v.Pixels())
		if err != nil {
			return err
		}
		printScalar(w, "digest", d)
	}
	if out.pixels {
		for r := 0; r < v.NRow(); r++ {
			strs := make([]string, v.NCol())
			for c, p := range v.Row(r) {
				strs[c] = fmt.Sprintf("%g", p)
			}
			fmt.Fprintln(w, strings.Join(strs, " "))
		}
	}
	return nil
}
