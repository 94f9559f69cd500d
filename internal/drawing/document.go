// Package drawing defines the persisted drawing document and directory
// listing entries shared by the store, its HTTP client and the editor.
package drawing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

const (
	// DocumentType is the type tag of every drawing document
	DocumentType = "excalidraw"
	// DocumentVersion is the current document schema version
	DocumentVersion = 2
	// Extension is appended to new drawing names
	Extension = ".excalidraw"

	// CollaboratorsKey holds live session presence in appState and is never persisted
	CollaboratorsKey = "collaborators"

	defaultBackground = "#ffffff"
)

// Document is a drawing as stored on disk and exchanged over HTTP.
//
// Elements and Files are opaque to the store and kept as raw JSON. AppState
// is decoded with json.Number so numeric settings survive a round trip
// unchanged. Top-level fields this type does not know about are carried in
// Extra and written back verbatim.
type Document struct {
	Type     string
	Version  int
	Elements []json.RawMessage
	AppState map[string]any
	Files    map[string]json.RawMessage
	Extra    map[string]json.RawMessage
}

// Blank returns a fresh blank document.
func Blank() *Document {
	return &Document{
		Type:     DocumentType,
		Version:  DocumentVersion,
		Elements: []json.RawMessage{},
		AppState: map[string]any{"viewBackgroundColor": defaultBackground},
		Files:    map[string]json.RawMessage{},
	}
}

// Clone returns a copy that shares no maps or slices with d. Values inside
// AppState are copied shallowly.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Type:     d.Type,
		Version:  d.Version,
		Elements: slices.Clone(d.Elements),
		AppState: maps.Clone(d.AppState),
		Files:    maps.Clone(d.Files),
		Extra:    maps.Clone(d.Extra),
	}
}

// WithoutCollaborators returns a copy of d whose appState has no collaborators key.
func (d *Document) WithoutCollaborators() *Document {
	out := d.Clone()
	delete(out.AppState, CollaboratorsKey)
	return out
}

var knownFields = []string{"type", "version", "elements", "appState", "files"}

// MarshalJSON writes known fields first, in schema order, then any preserved
// unknown fields sorted by key.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		buf.Write(v)
		return nil
	}

	docType := d.Type
	if docType == "" {
		docType = DocumentType
	}
	version := d.Version
	if version == 0 {
		version = DocumentVersion
	}
	elements := d.Elements
	if elements == nil {
		elements = []json.RawMessage{}
	}
	appState := d.AppState
	if appState == nil {
		appState = map[string]any{}
	}
	files := d.Files
	if files == nil {
		files = map[string]json.RawMessage{}
	}

	for _, f := range []struct {
		key   string
		value any
	}{
		{"type", docType},
		{"version", version},
		{"elements", elements},
		{"appState", appState},
		{"files", files},
	} {
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}

	for _, key := range slices.Sorted(maps.Keys(d.Extra)) {
		if slices.Contains(knownFields, key) {
			continue
		}
		if err := write(key, d.Extra[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any JSON object. Missing known fields stay at their
// zero value; callers wanting blank defaults use Normalize.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("drawing document must be a JSON object")
	}

	*d = Document{}

	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &d.Type); err != nil {
			return fmt.Errorf("decode type: %w", err)
		}
	}
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &d.Version); err != nil {
			return fmt.Errorf("decode version: %w", err)
		}
	}
	if v, ok := raw["elements"]; ok {
		if err := json.Unmarshal(v, &d.Elements); err != nil {
			return fmt.Errorf("decode elements: %w", err)
		}
		for i := range d.Elements {
			d.Elements[i] = compact(d.Elements[i])
		}
	}
	if v, ok := raw["appState"]; ok {
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		if err := dec.Decode(&d.AppState); err != nil {
			return fmt.Errorf("decode appState: %w", err)
		}
	}
	if v, ok := raw["files"]; ok {
		if err := json.Unmarshal(v, &d.Files); err != nil {
			return fmt.Errorf("decode files: %w", err)
		}
		for id, f := range d.Files {
			d.Files[id] = compact(f)
		}
	}

	for key, value := range raw {
		if slices.Contains(knownFields, key) {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[key] = compact(value)
	}

	return nil
}

// compact strips insignificant whitespace so raw values read from an
// indented file compare equal to the values that were written.
func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

// Normalize fills absent fields with blank-document defaults.
func (d *Document) Normalize() {
	if d.Type == "" {
		d.Type = DocumentType
	}
	if d.Version == 0 {
		d.Version = DocumentVersion
	}
	if d.Elements == nil {
		d.Elements = []json.RawMessage{}
	}
	if d.AppState == nil {
		d.AppState = map[string]any{}
	}
	if d.Files == nil {
		d.Files = map[string]json.RawMessage{}
	}
}

// Encode renders the document as JSON indented with two spaces, the on-disk format.
func (d *Document) Encode() ([]byte, error) {
	compact, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Decode parses a document from JSON and applies Normalize.
func Decode(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}

// DirectoryEntry describes one child of a listed directory.
type DirectoryEntry struct {
	Name  string    `json:"name"`
	IsDir bool      `json:"isDir"`
	Size  int64     `json:"size"`
	MTime time.Time `json:"mtime"`
}
