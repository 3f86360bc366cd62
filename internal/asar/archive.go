package asar

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Archive ties an open byte source to its decoded tree. It owns the
// source for its lifetime; every read operation computes its own
// absolute offset, so independent reads need no coordination.
type Archive struct {
	src  io.ReaderAt
	size int64
	tree *Tree
	raw  *RawHeader

	// path locates the .unpacked sibling directory; empty for
	// buffer-backed archives, which therefore cannot resolve unpacked
	// entries.
	path string

	closer io.Closer
}

// Open opens the archive file at path, decodes its header, and builds
// the tree. Framing and schema errors surface here, not at extraction
// time.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	a, err := New(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	a.path = path
	a.closer = f
	return a, nil
}

// New builds an archive over an arbitrary readable byte range, e.g. a
// bytes.Reader. Unpacked entries are unresolvable without an on-disk
// archive path and fail with ErrUnpackedFileMissing.
func New(src io.ReaderAt, size int64) (*Archive, error) {
	hdr, err := DecodeHeader(src, size)
	if err != nil {
		return nil, err
	}
	tree, err := BuildTree(hdr, size)
	if err != nil {
		return nil, err
	}

	slog.Debug("Archive header decoded",
		"header_bytes", len(hdr.JSON),
		"data_offset", hdr.DataOffset,
		"data_bytes", size-hdr.DataOffset)

	return &Archive{
		src:  src,
		size: size,
		tree: tree,
		raw:  hdr,
	}, nil
}

// Tree returns the immutable archive tree.
func (a *Archive) Tree() *Tree { return a.tree }

// HeaderJSON returns the header payload verbatim, for diagnostics.
func (a *Archive) HeaderJSON() []byte { return a.raw.JSON }

// UnpackedDir returns the sibling directory holding unpacked entries, or
// "" when the archive is not backed by a file.
func (a *Archive) UnpackedDir() string {
	if a.path == "" {
		return ""
	}
	return a.path + ".unpacked"
}

// Close releases the underlying source. The archive must not be used
// afterwards.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	c := a.closer
	a.closer = nil
	a.src = nil
	return c.Close()
}
