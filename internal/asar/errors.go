package asar

import (
	"errors"
	"fmt"
)

// Sentinel errors for every failure kind the reader can produce. Callers
// match with errors.Is; everything returned by this package wraps exactly
// one of these (or is an I/O error passed through untouched).
var (
	// ErrTruncatedHeader is returned when the archive ends before a
	// declared header length is satisfied.
	ErrTruncatedHeader = errors.New("truncated header")

	// ErrMalformedHeader is returned when the header framing is
	// internally inconsistent or the payload is not valid JSON.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrInvalidEntry is returned at tree-build time for nodes that match
	// no entry shape, carry bad offsets/sizes, unsafe names, or broken
	// integrity metadata.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrNotFound is returned when a path does not exist in the archive.
	ErrNotFound = errors.New("file not found")

	// ErrNotAFile is returned when a path resolves to a directory.
	ErrNotAFile = errors.New("not a file")

	// ErrBrokenSymlink is returned when following a symlink leads outside
	// the tree or to a missing entry.
	ErrBrokenSymlink = errors.New("broken symlink")

	// ErrSymlinkLoop is returned when symlink resolution exceeds the hop
	// bound.
	ErrSymlinkLoop = errors.New("symlink loop")

	// ErrUnpackedFileMissing is returned when an entry marked unpacked has
	// no backing file in the archive's .unpacked sibling directory.
	ErrUnpackedFileMissing = errors.New("unpacked file missing")

	// ErrIntegrityMismatch is returned when stored bytes do not match the
	// declared hashes. Use errors.As with *IntegrityError for the block
	// index.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrPathTraversal is returned by the defensive containment check in
	// ExtractAll when a destination path would escape the destination
	// root.
	ErrPathTraversal = errors.New("path traversal")
)

// IntegrityError reports which file, and optionally which block, failed
// hash verification. Block is -1 for a whole-file mismatch.
type IntegrityError struct {
	Path  string
	Block int
}

func (e *IntegrityError) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("integrity mismatch in block %d of %q", e.Block, e.Path)
	}
	return fmt.Sprintf("integrity mismatch in %q", e.Path)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrityMismatch
}
