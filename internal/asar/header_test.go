package asar

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHeader(t *testing.T) {
	t.Parallel()

	header := `{"files":{}}`
	raw := buildArchive(t, header, []byte("data region"))

	hdr, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, header, string(hdr.JSON))

	// 4-byte outer prefix + 4-byte inner prefix + 12 payload bytes, no
	// padding needed.
	assert.Equal(t, int64(20), hdr.DataOffset)
}

func TestDecodeHeaderPadding(t *testing.T) {
	t.Parallel()

	// 14 payload bytes force 2 padding bytes before the data region.
	header := `{"files":{}}  `
	require.Len(t, header, 14)
	raw := buildArchive(t, header, []byte("xyz"))

	hdr, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, header, string(hdr.JSON))
	assert.Equal(t, int64(len(raw)-3), hdr.DataOffset)
}

func TestDecodeHeaderTruncatedOuter(t *testing.T) {
	t.Parallel()

	// Outer block declares 100 bytes but only 46 follow the prefix.
	raw := make([]byte, 50)
	binary.LittleEndian.PutUint32(raw, 100)

	_, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrTruncatedHeader)
}

func TestDecodeHeaderTooSmall(t *testing.T) {
	t.Parallel()

	_, err := DecodeHeader(bytes.NewReader([]byte{1, 2, 3}), 3)
	assert.ErrorIs(t, err, ErrTruncatedHeader)
}

func TestDecodeHeaderInvalidJSON(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, "not json at all", nil)
	_, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeHeaderInconsistentLengths(t *testing.T) {
	t.Parallel()

	// Inner prefix claims more payload than the outer block can hold.
	raw := make([]byte, 12)
	binary.LittleEndian.PutUint32(raw[0:], 8)
	binary.LittleEndian.PutUint32(raw[4:], 100)

	_, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestDecodeHeaderOuterTooSmallForInner(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], 2)

	_, err := DecodeHeader(bytes.NewReader(raw), int64(len(raw)))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}
