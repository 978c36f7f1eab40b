// Package meds reads Multi Epoch Data Structure archives.
//
// A MEDS archive holds a catalog of objects, each with up to ncutout_max
// square cutouts taken from different source exposures, and one or more
// shared pixel stores ("image_cutouts", "weight_cutouts", ...) into which
// every cutout of every object is packed. The cutouts of one object are
// stored back to back, so all of them can be read as one mosaic.
//
//	m, err := meds.Open("DES0123-4567-meds.zarr")
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	for i := 0; i < m.Size(); i++ {
//		if m.CutoutCount(i) == 0 {
//			continue
//		}
//		cutout, err := m.Cutout(i, 0)
//		if err != nil {
//			return err
//		}
//		fmt.Println(cutout.NRow(), cutout.NCol(), cutout.At(5, 8))
//		cutout.Release()
//
//		mosaic, err := m.Mosaic(i)
//		if err != nil {
//			return err
//		}
//		// agrees with cutout.At(5, 8)
//		fmt.Println(mosaic.MosaicAt(0, 5, 8))
//		mosaic.Release()
//
//		name, err := m.SourceFilename(i, 0)
//		...
//	}
//
// CutoutPixels and MosaicPixels return the flat buffers with their shape for
// callers that bring their own image type.
//
// Archives are read through a DataSource. Open and OpenStore use the zarr
// layout described on ZarrSource; OpenSource accepts any other backend.
package meds
