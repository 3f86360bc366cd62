package asar

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// The header framing is two little-endian u32 length prefixes: the outer
// one frames a block holding the inner prefix, the JSON payload and zero
// padding up to the next 4-byte boundary. File offsets in the tree are
// relative to the first byte after the outer block.
const headerAlign = 4

// RawHeader is the decoded-but-unstructured result of the framing: the
// verbatim JSON payload plus the offset where the data region begins.
// Interpreting the JSON is the tree builder's job, so a header can be
// decoded and dumped as-is for diagnostics.
type RawHeader struct {
	JSON       []byte
	DataOffset int64
}

// DecodeHeader reads the header framing from the start of src. size is
// the total length of the underlying source.
func DecodeHeader(src io.ReaderAt, size int64) (*RawHeader, error) {
	var prefix [8]byte
	if size < int64(len(prefix)) {
		return nil, fmt.Errorf("%w: %d bytes is too small for the length prefixes", ErrTruncatedHeader, size)
	}
	if err := readExact(src, prefix[:], 0); err != nil {
		return nil, err
	}

	outer := binary.LittleEndian.Uint32(prefix[0:4])
	inner := binary.LittleEndian.Uint32(prefix[4:8])

	if int64(outer)+4 > size {
		return nil, fmt.Errorf("%w: outer block declares %d bytes, only %d available", ErrTruncatedHeader, outer, size-4)
	}
	if outer < 4 {
		return nil, fmt.Errorf("%w: outer block of %d bytes cannot hold the inner length prefix", ErrMalformedHeader, outer)
	}

	pad := (headerAlign - inner%headerAlign) % headerAlign
	if uint64(inner)+uint64(pad)+4 > uint64(outer) {
		return nil, fmt.Errorf("%w: payload of %d bytes (+%d padding) exceeds outer block of %d bytes",
			ErrMalformedHeader, inner, pad, outer)
	}

	payload := make([]byte, inner)
	if err := readExact(src, payload, 8); err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrMalformedHeader)
	}

	return &RawHeader{
		JSON:       payload,
		DataOffset: int64(outer) + 4,
	}, nil
}

// readExact fills buf from src at off, mapping short reads to
// ErrTruncatedHeader.
func readExact(src io.ReaderAt, buf []byte, off int64) error {
	n, err := src.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%w: wanted %d bytes at offset %d, got %d", ErrTruncatedHeader, len(buf), off, n)
	}
	if err != nil {
		return fmt.Errorf("reading header at offset %d: %w", off, err)
	}
	return fmt.Errorf("%w: short read at offset %d", ErrTruncatedHeader, off)
}
