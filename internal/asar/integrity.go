package asar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Integrity carries the decoded hash metadata of one file. Hex digests
// from the header are decoded once at build time; verification never
// re-parses.
type Integrity struct {
	Algorithm string
	Hash      []byte
	BlockSize uint32
	Blocks    [][]byte
}

// HexHash returns the whole-file hash as uppercase hex, the way the
// header declares it.
func (in *Integrity) HexHash() string {
	return fmt.Sprintf("%X", in.Hash)
}

// Verify checks data against the declared hashes. Blocks are checked
// individually first so a corrupt middle block is localized, then the
// whole-file hash. path only labels the error.
func (in *Integrity) Verify(path string, data []byte) error {
	for i, want := range in.Blocks {
		start := uint64(i) * uint64(in.BlockSize)
		end := start + uint64(in.BlockSize)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		got := sha256.Sum256(data[start:end])
		if !hashEqual(got[:], want) {
			return &IntegrityError{Path: path, Block: i}
		}
	}

	got := sha256.Sum256(data)
	if !hashEqual(got[:], in.Hash) {
		return &IntegrityError{Path: path, Block: -1}
	}
	return nil
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildIntegrity validates and decodes an integrity node for a file of
// the given size.
func buildIntegrity(v any, size uint64) (*Integrity, error) {
	node, ok := v.(*jsonObject)
	if !ok {
		return nil, fmt.Errorf("integrity is not an object")
	}

	algVal, ok := node.get("algorithm")
	alg, isStr := algVal.(string)
	if !ok || !isStr || alg != "SHA256" {
		return nil, fmt.Errorf("unsupported integrity algorithm %v", algVal)
	}

	hashVal, _ := node.get("hash")
	hash, err := decodeDigest(hashVal)
	if err != nil {
		return nil, fmt.Errorf("bad whole-file hash: %w", err)
	}

	bsVal, ok := node.get("blockSize")
	if !ok {
		return nil, fmt.Errorf("integrity has no blockSize")
	}
	blockSize, err := parseUint(bsVal)
	if err != nil {
		return nil, fmt.Errorf("bad blockSize: %w", err)
	}
	if blockSize == 0 || blockSize > 1<<32-1 {
		return nil, fmt.Errorf("blockSize %d out of range", blockSize)
	}

	integ := &Integrity{
		Algorithm: alg,
		Hash:      hash,
		BlockSize: uint32(blockSize),
	}

	if blocksVal, ok := node.get("blocks"); ok {
		blocks, ok := blocksVal.([]any)
		if !ok {
			return nil, fmt.Errorf("blocks is not an array")
		}
		for i, b := range blocks {
			digest, err := decodeDigest(b)
			if err != nil {
				return nil, fmt.Errorf("bad hash for block %d: %w", i, err)
			}
			integ.Blocks = append(integ.Blocks, digest)
		}
	}

	// When block hashes are present they must tile the file exactly; an
	// empty file still carries one block (the hash of zero bytes).
	if len(integ.Blocks) > 0 {
		want := int((size + blockSize - 1) / blockSize)
		if size == 0 {
			want = 1
		}
		if len(integ.Blocks) != want {
			return nil, fmt.Errorf("%d block hashes for %d bytes in blocks of %d (want %d)",
				len(integ.Blocks), size, blockSize, want)
		}
	}

	return integ, nil
}

func decodeDigest(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("digest is not a string")
	}
	digest, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(digest) != sha256.Size {
		return nil, fmt.Errorf("digest is %d bytes, want %d", len(digest), sha256.Size)
	}
	return digest, nil
}
