package zarr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Group is an open group in a hierarchy. When the group root carries
// consolidated metadata (".zmetadata") array metadata is served from it
// instead of per-array ".zarray" keys.
type Group struct {
	store        Store
	path         Path
	meta         GroupMeta
	consolidated *ConsolidatedMetadata
	opts         []ArrayOption
}

// OpenGroup opens the group at path. Array options are applied to every
// array opened through the group.
func OpenGroup(store Store, path string, opts ...ArrayOption) (*Group, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	g := &Group{store: store, path: p, opts: opts}

	cm, err := readConsolidated(store, p)
	if err != nil {
		return nil, err
	}
	g.consolidated = cm

	if cm != nil {
		gm, ok := cm.Metadata[string(MTGroup)].(GroupMeta)
		if !ok {
			return nil, fmt.Errorf("%w: consolidated metadata for %q has no root group", ErrNotfound, path)
		}
		g.meta = gm
	} else if err := readJSON(store, p.Join(string(MTGroup)).String(), &g.meta); err != nil {
		return nil, fmt.Errorf("opening group %q: %w", path, err)
	}

	if g.meta.ZarrFormat != FormatVersion {
		return nil, fmt.Errorf("%w: group zarr_format %d", ErrUnsupported, g.meta.ZarrFormat)
	}
	return g, nil
}

// CreateGroup writes group metadata at path
func CreateGroup(store Store, path string) (*Group, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	g := &Group{store: store, path: p, meta: GroupMeta{ZarrFormat: FormatVersion}}
	if err := writeJSON(store, p.Join(string(MTGroup)).String(), g.meta); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) Path() string { return g.path.String() }

// Consolidated reports whether array metadata comes from ".zmetadata"
func (g *Group) Consolidated() bool { return g.consolidated != nil }

// Array opens the member array name for reading
func (g *Group) Array(name string) (*Array, error) {
	opts := g.opts
	if am, ok := g.consolidated.Array(name); ok {
		opts = append(append([]ArrayOption{}, g.opts...), WithMeta(am))
	} else if g.consolidated != nil {
		return nil, fmt.Errorf("opening array %q: %w: not in consolidated metadata", name, ErrNotfound)
	}
	return Open(g.store, g.path.Join(name).String(), ModeRead, opts...)
}

// Attributes reads the group's user attributes. A group without attributes
// returns an empty map.
func (g *Group) Attributes() (Attributes, error) {
	if g.consolidated != nil {
		if attrs, ok := g.consolidated.Metadata[string(MTAttributes)].(Attributes); ok {
			return attrs, nil
		}
		return Attributes{}, nil
	}
	attrs := Attributes{}
	err := readJSON(g.store, g.path.Join(string(MTAttributes)).String(), &attrs)
	if errors.Is(err, ErrNotfound) {
		return Attributes{}, nil
	}
	return attrs, err
}

// SetAttributes replaces the group's user attributes
func (g *Group) SetAttributes(attrs Attributes) error {
	return writeJSON(g.store, g.path.Join(string(MTAttributes)).String(), attrs)
}

// Consolidate gathers the metadata of the group and the named member arrays
// into a ".zmetadata" document at the group root
func Consolidate(store Store, path string, arrays ...string) error {
	p, err := NewPath(path)
	if err != nil {
		return err
	}
	docs := map[string]json.RawMessage{}
	keys := []string{string(MTGroup), string(MTAttributes)}
	for _, name := range arrays {
		keys = append(keys, name+"/"+string(MTArray))
	}
	for _, key := range keys {
		var raw json.RawMessage
		err := readJSON(store, p.Join(key).String(), &raw)
		if errors.Is(err, ErrNotfound) && key == string(MTAttributes) {
			continue
		} else if err != nil {
			return fmt.Errorf("consolidating %q: %w", key, err)
		}
		docs[key] = raw
	}
	doc := struct {
		ConsolidatedFormat int                        `json:"zarr_consolidated_format"`
		Metadata           map[string]json.RawMessage `json:"metadata"`
	}{1, docs}
	return writeJSON(store, p.Join(string(MTMetadata)).String(), doc)
}

func readConsolidated(store Store, p Path) (*ConsolidatedMetadata, error) {
	cm := &ConsolidatedMetadata{}
	err := readJSON(store, p.Join(string(MTMetadata)).String(), cm)
	if errors.Is(err, ErrNotfound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading consolidated metadata: %w", err)
	}
	return cm, nil
}

func readJSON(store Store, key string, v interface{}) error {
	f, err := store.Get(key)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func writeJSON(store Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(key, bytes.NewReader(data))
}
