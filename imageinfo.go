package meds

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ImageInfo describes one source exposure
type ImageInfo struct {
	Filename string
}

// ImageInfoTable maps source ids to source exposures
type ImageInfoTable struct {
	infos      []ImageInfo
	namelenMax int
}

func buildImageInfo(src DataSource, log logrus.FieldLogger) (*ImageInfoTable, error) {
	n, err := src.RowCount(ImageInfoTableName)
	if err != nil {
		return nil, errors.Wrap(err, "reading image info table")
	}
	namelen, err := src.ArrayColumnWidth(ImageInfoTableName, ColFilename)
	if err != nil {
		return nil, errors.Wrap(err, "reading filename width")
	}
	log.WithFields(logrus.Fields{"images": n, "namelen_max": namelen}).Debug("reading image info table")

	t := &ImageInfoTable{
		infos:      make([]ImageInfo, n),
		namelenMax: namelen,
	}
	for i := range t.infos {
		name, err := src.ReadString(ImageInfoTableName, ColFilename, i)
		if err != nil {
			return nil, errors.Wrapf(err, "image info row %d", i)
		}
		if n := utf8.RuneCountInString(name); n > namelen {
			return nil, errors.Wrapf(ErrMalformed, "image info row %d: filename of %d characters exceeds width %d", i, n, namelen)
		}
		t.infos[i].Filename = name
	}
	return t, nil
}

// Size is the number of source exposures
func (t *ImageInfoTable) Size() int { return len(t.infos) }

// NameLenMax is the declared maximum filename length
func (t *ImageInfoTable) NameLenMax() int { return t.namelenMax }

// Info resolves a source id
func (t *ImageInfoTable) Info(id int64) (ImageInfo, error) {
	if id < 0 || id >= int64(len(t.infos)) {
		return ImageInfo{}, &IndexError{What: whatSourceID, Index: id, Limit: int64(len(t.infos))}
	}
	return t.infos[id], nil
}
