package zarr

import (
	"encoding/json"
	"errors"
	"testing"
)

// https://zarr.readthedocs.io/en/stable/spec/v2.html#metadata
const specExample = `{
  "chunks": [
    1000,
    1000
  ],
	"compressor": {
			"id": "blosc",
			"cname": "lz4",
			"clevel": 5,
			"shuffle": 1
	},
	"dtype": "<f8",
	"fill_value": "NaN",
	"filters": [
			{"id": "delta", "dtype": "<f8", "astype": "<f4"}
	],
	"order": "C",
	"shape": [
			10000,
			10000
	],
	"zarr_format": 2
}`

func TestMetadataSerialization(t *testing.T) {
	m := &ArrayMeta{}
	err := json.Unmarshal([]byte(specExample), m)
	if err != nil {
		t.Fatal(err)
	}
	if m.Compressor == nil || m.Compressor.ID != "blosc" || m.Compressor.Clevel != 5 {
		t.Errorf("unexpected compressor: %#v", m.Compressor)
	}
	if m.Dtype.Dtype.String() != "<f8" {
		t.Errorf("dtype = %s, want <f8", m.Dtype.Dtype)
	}
	if len(m.Filters) != 1 || m.Filters[0].ID != "delta" || m.Filters[0].AsType != "<f4" {
		t.Errorf("unexpected filters: %#v", m.Filters)
	}

	// two dimensions and filters are beyond what this package reads
	if err := m.Validate(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Validate() error = %v, want ErrUnsupported", err)
	}
}

func TestArrayMetaRoundTrip(t *testing.T) {
	m := &ArrayMeta{
		ZarrFormat: FormatVersion,
		Shape:      []int{10},
		Chunks:     []int{4},
		Dtype: StructuredType{Children: []StructuredType{
			{Fieldname: "id", Dtype: Dtype{BOLittleEndian, BTInteger, 8, ""}},
			{Fieldname: "file_id", Dtype: Dtype{BOLittleEndian, BTInteger, 4, ""}, Shape: []int{3}},
		}},
		Order: "C",
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}

	got := &ArrayMeta{}
	if err := json.Unmarshal(data, got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if err := got.Validate(); err != nil {
		t.Fatal(err)
	}
	if got.Compressor != nil {
		t.Errorf("null compressor decoded as %#v", got.Compressor)
	}
	if got.Dtype.Itemsize() != 20 {
		t.Errorf("itemsize = %d, want 20", got.Dtype.Itemsize())
	}
	f, err := got.Dtype.Field("file_id")
	if err != nil {
		t.Fatal(err)
	}
	if f.Offset != 8 || f.Len() != 3 {
		t.Errorf("file_id field = %+v", f)
	}
}

const consolidatedExample = `{
  "metadata": {
    ".zgroup": {"zarr_format": 2},
    ".zattrs": {"tile": "DES0123-4567"},
    "image_cutouts/.zarray": {
      "chunks": [1024],
      "compressor": {"id": "zstd", "level": 3},
      "dtype": "<f4",
      "fill_value": 0.0,
      "filters": null,
      "order": "C",
      "shape": [4096],
      "zarr_format": 2
    },
    "object_data/.zarray": {
      "chunks": [100],
      "compressor": null,
      "dtype": [["id", "<i8"], ["ncutout", "<i8"], ["file_id", "<i8", [5]]],
      "fill_value": null,
      "filters": null,
      "order": "C",
      "shape": [250],
      "zarr_format": 2
    }
  },
  "zarr_consolidated_format": 1
}`

func TestConsolidatedMetadata(t *testing.T) {
	cm := &ConsolidatedMetadata{}
	if err := json.Unmarshal([]byte(consolidatedExample), cm); err != nil {
		t.Fatal(err)
	}
	if cm.ConsolidatedFormat != 1 {
		t.Errorf("consolidated format = %d, want 1", cm.ConsolidatedFormat)
	}
	if _, ok := cm.Metadata[".zgroup"].(GroupMeta); !ok {
		t.Errorf("missing root group, got %#v", cm.Metadata[".zgroup"])
	}
	if attrs, ok := cm.Metadata[".zattrs"].(Attributes); !ok || attrs["tile"] != "DES0123-4567" {
		t.Errorf("unexpected attributes %#v", cm.Metadata[".zattrs"])
	}

	am, ok := cm.Array("object_data")
	if !ok {
		t.Fatal("object_data metadata missing")
	}
	if am.Len() != 250 || am.ChunkLen() != 100 {
		t.Errorf("shape %v chunks %v", am.Shape, am.Chunks)
	}
	if got := am.Dtype.Fieldnames(); len(got) != 3 || got[2] != "file_id" {
		t.Errorf("fieldnames = %v", got)
	}
	if _, ok := cm.Array("weight_cutouts"); ok {
		t.Error("expected no weight_cutouts metadata")
	}
}

func TestKeyMetaType(t *testing.T) {
	cases := []struct {
		key string
		mt  MetaType
		ok  bool
	}{
		{".zarray", MTArray, true},
		{"object_data/.zarray", MTArray, true},
		{"a/b/.zgroup", MTGroup, true},
		{".zattrs", MTAttributes, true},
		{"image_cutouts/0", "", false},
		{"short", "", false},
	}
	for _, c := range cases {
		mt, ok := KeyMetaType(c.key)
		if ok != c.ok || (ok && mt != c.mt) {
			t.Errorf("KeyMetaType(%q) = %q, %t; want %q, %t", c.key, mt, ok, c.mt, c.ok)
		}
	}
}
