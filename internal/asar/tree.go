package asar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
)

// EntryKind discriminates the three entry shapes the header can declare.
type EntryKind int

const (
	KindDirectory EntryKind = iota
	KindFile
	KindSymlink
)

func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "dir"
	case KindFile:
		return "file"
	case KindSymlink:
		return "link"
	}
	return "unknown"
}

// Entry is one node of the archive tree. The concrete type is decided
// once at build time, so consumers switch on it instead of re-inspecting
// JSON key presence.
type Entry interface {
	Kind() EntryKind
}

// Directory holds its children in header declaration order.
type Directory struct {
	names    []string
	children map[string]Entry
}

func (d *Directory) Kind() EntryKind { return KindDirectory }

// Names returns the child names in declaration order.
func (d *Directory) Names() []string { return d.names }

func (d *Directory) Child(name string) (Entry, bool) {
	e, ok := d.children[name]
	return e, ok
}

// File records where its bytes live. Offset is relative to the data
// region, already validated against it unless the file is unpacked.
type File struct {
	Size       uint64
	Offset     uint64
	Executable bool
	Unpacked   bool
	Integrity  *Integrity
}

func (f *File) Kind() EntryKind { return KindFile }

// Symlink stores its target verbatim; resolution is the extraction
// engine's job.
type Symlink struct {
	Target string
}

func (s *Symlink) Kind() EntryKind { return KindSymlink }

// Tree is the immutable decoded archive header: the root directory plus
// the byte position of the data region within the source.
type Tree struct {
	Root       *Directory
	DataOffset int64

	dataLen int64
}

// BuildTree interprets a decoded header against a source of totalSize
// bytes. Pure and deterministic; all schema validation happens here so
// extraction never re-parses.
func BuildTree(hdr *RawHeader, totalSize int64) (*Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(hdr.JSON))
	dec.UseNumber()
	top, err := decodeOrdered(dec)
	if err != nil {
		// The payload is known-valid JSON by the time it gets here, so
		// decode failures are schema-level (duplicate names).
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	root, ok := top.(*jsonObject)
	if !ok {
		return nil, fmt.Errorf("%w: header root is not an object", ErrInvalidEntry)
	}
	filesVal, ok := root.get("files")
	if !ok {
		return nil, fmt.Errorf("%w: header root has no files table", ErrInvalidEntry)
	}

	dataLen := totalSize - hdr.DataOffset
	b := &treeBuilder{dataLen: dataLen}
	rootDir, err := b.buildDirectory(filesVal, "")
	if err != nil {
		return nil, err
	}

	return &Tree{
		Root:       rootDir,
		DataOffset: hdr.DataOffset,
		dataLen:    dataLen,
	}, nil
}

type treeBuilder struct {
	dataLen int64
}

func (b *treeBuilder) buildDirectory(filesVal any, dir string) (*Directory, error) {
	files, ok := filesVal.(*jsonObject)
	if !ok {
		return nil, fmt.Errorf("%w: files table of %q is not an object", ErrInvalidEntry, orRoot(dir))
	}

	d := &Directory{children: make(map[string]Entry, len(files.keys))}
	for _, name := range files.keys {
		full := path.Join(dir, name)
		if err := validateName(name); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrInvalidEntry, full, err)
		}
		node, ok := files.vals[name].(*jsonObject)
		if !ok {
			return nil, fmt.Errorf("%w: entry %q is not an object", ErrInvalidEntry, full)
		}

		entry, err := b.buildEntry(node, full)
		if err != nil {
			return nil, err
		}
		d.names = append(d.names, name)
		d.children[name] = entry
	}
	return d, nil
}

func (b *treeBuilder) buildEntry(node *jsonObject, full string) (Entry, error) {
	// Precedence mirrors the header convention: a link key wins, then a
	// nested files table, otherwise the node must be a file.
	if linkVal, ok := node.get("link"); ok {
		target, ok := linkVal.(string)
		if !ok || target == "" {
			return nil, fmt.Errorf("%w: symlink %q has no usable target", ErrInvalidEntry, full)
		}
		return &Symlink{Target: target}, nil
	}
	if filesVal, ok := node.get("files"); ok {
		return b.buildDirectory(filesVal, full)
	}
	return b.buildFile(node, full)
}

func (b *treeBuilder) buildFile(node *jsonObject, full string) (*File, error) {
	sizeVal, ok := node.get("size")
	if !ok {
		return nil, fmt.Errorf("%w: entry %q matches no known shape (no link, files, or size)", ErrInvalidEntry, full)
	}
	size, err := parseUint(sizeVal)
	if err != nil {
		return nil, fmt.Errorf("%w: file %q: bad size: %v", ErrInvalidEntry, full, err)
	}

	offsetVal, ok := node.get("offset")
	if !ok {
		return nil, fmt.Errorf("%w: file %q has no offset", ErrInvalidEntry, full)
	}
	offset, err := parseUint(offsetVal)
	if err != nil {
		return nil, fmt.Errorf("%w: file %q: bad offset: %v", ErrInvalidEntry, full, err)
	}

	f := &File{Size: size, Offset: offset}

	if v, ok := node.get("executable"); ok {
		if f.Executable, ok = v.(bool); !ok {
			return nil, fmt.Errorf("%w: file %q: executable is not a boolean", ErrInvalidEntry, full)
		}
	}
	if v, ok := node.get("unpacked"); ok {
		if f.Unpacked, ok = v.(bool); !ok {
			return nil, fmt.Errorf("%w: file %q: unpacked is not a boolean", ErrInvalidEntry, full)
		}
	}

	// Offsets of unpacked files are ignored; the bytes live outside the
	// archive.
	if !f.Unpacked {
		if offset > math.MaxUint64-size {
			return nil, fmt.Errorf("%w: file %q: offset+size overflows", ErrInvalidEntry, full)
		}
		if b.dataLen < 0 || offset+size > uint64(b.dataLen) {
			return nil, fmt.Errorf("%w: file %q: range [%d, %d) exceeds data region of %d bytes",
				ErrInvalidEntry, full, offset, offset+size, b.dataLen)
		}
	}

	if v, ok := node.get("integrity"); ok {
		integ, err := buildIntegrity(v, size)
		if err != nil {
			return nil, fmt.Errorf("%w: file %q: %v", ErrInvalidEntry, full, err)
		}
		f.Integrity = integ
	}

	return f, nil
}

// validateName rejects names that could compose into a path outside the
// extraction root. Rejecting them here is what lets ExtractAll join
// component names without re-checking each one.
func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is a path reference", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q contains a path separator", name)
	}
	return nil
}

// parseUint accepts the header's two encodings of offsets and sizes:
// JSON numbers and decimal strings.
func parseUint(v any) (uint64, error) {
	switch t := v.(type) {
	case json.Number:
		return strconv.ParseUint(t.String(), 10, 64)
	case string:
		return strconv.ParseUint(t, 10, 64)
	}
	return 0, fmt.Errorf("expected a number or decimal string, got %T", v)
}

func orRoot(dir string) string {
	if dir == "" {
		return "/"
	}
	return dir
}

// jsonObject is a JSON object that remembers key declaration order.
// Directory listings are stable because this order is preserved all the
// way into Directory.names.
type jsonObject struct {
	keys []string
	vals map[string]any
}

func (o *jsonObject) get(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &jsonObject{vals: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key := keyTok.(string)
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := obj.vals[key]; dup {
				return nil, fmt.Errorf("duplicate key %q", key)
			}
			obj.keys = append(obj.keys, key)
			obj.vals[key] = val
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}
