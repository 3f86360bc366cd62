package asar

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildArchive assembles the binary framing around a header JSON and a
// data region, the way a packer would.
func buildArchive(t *testing.T, header string, data []byte) []byte {
	t.Helper()

	inner := uint32(len(header))
	pad := (headerAlign - inner%headerAlign) % headerAlign
	outer := 4 + inner + pad

	var buf bytes.Buffer
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], outer)
	buf.Write(w[:])
	binary.LittleEndian.PutUint32(w[:], inner)
	buf.Write(w[:])
	buf.WriteString(header)
	buf.Write(make([]byte, pad))
	buf.Write(data)
	return buf.Bytes()
}

func openArchive(t *testing.T, header string, data []byte) *Archive {
	t.Helper()

	raw := buildArchive(t, header, data)
	a, err := New(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	return a
}

// writeArchiveFile puts a built archive on disk so file-backed behavior
// (unpacked siblings, Open/Close) can be exercised.
func writeArchiveFile(t *testing.T, dir, name, header string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buildArchive(t, header, data), 0o644))
	return p
}

// integrityFor returns a well-formed integrity node for data split into
// blocks of blockSize.
func integrityFor(t *testing.T, data []byte, blockSize int) string {
	t.Helper()

	whole := sha256.Sum256(data)
	var blocks []string
	if len(data) == 0 {
		blocks = append(blocks, fmt.Sprintf("%x", whole))
	}
	for start := 0; start < len(data); start += blockSize {
		end := start + blockSize
		if end > len(data) {
			end = len(data)
		}
		h := sha256.Sum256(data[start:end])
		blocks = append(blocks, fmt.Sprintf("%x", h))
	}

	node, err := json.Marshal(map[string]any{
		"algorithm": "SHA256",
		"hash":      fmt.Sprintf("%x", whole),
		"blockSize": blockSize,
		"blocks":    blocks,
	})
	require.NoError(t, err)
	return string(node)
}
