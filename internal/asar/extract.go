package asar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// maxSymlinkHops bounds symlink resolution so a cycle in the tree fails
// with ErrSymlinkLoop instead of looping.
const maxSymlinkHops = 40

// ListEntry is one record of a flat archive listing.
type ListEntry struct {
	Path       string
	Kind       EntryKind
	Size       uint64
	Executable bool
	Unpacked   bool
	Link       string
	Integrity  *Integrity
}

// Walk visits every entry depth-first in header order, parents before
// children. Paths are /-joined and relative to the archive root. Walking
// is read-only and restartable; fn returning an error stops the walk.
func (a *Archive) Walk(fn func(p string, e Entry) error) error {
	return walkDir(a.tree.Root, "", fn)
}

func walkDir(d *Directory, prefix string, fn func(p string, e Entry) error) error {
	for _, name := range d.Names() {
		e, _ := d.Child(name)
		p := name
		if prefix != "" {
			p = prefix + "/" + name
		}
		if err := fn(p, e); err != nil {
			return err
		}
		if sub, ok := e.(*Directory); ok {
			if err := walkDir(sub, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// List returns one record per entry, in walk order. Listing never reads
// the data region and never verifies integrity.
func (a *Archive) List() []ListEntry {
	var out []ListEntry
	a.Walk(func(p string, e Entry) error {
		le := ListEntry{Path: p, Kind: e.Kind()}
		switch n := e.(type) {
		case *File:
			le.Size = n.Size
			le.Executable = n.Executable
			le.Unpacked = n.Unpacked
			le.Integrity = n.Integrity
		case *Symlink:
			le.Link = n.Target
		}
		out = append(out, le)
		return nil
	})
	return out
}

// ReadFile returns the bytes of the named file. Symlinks along the path
// are followed within the tree. With verify set, files carrying
// integrity metadata are checked before the bytes are returned.
func (a *Archive) ReadFile(name string, verify bool) ([]byte, error) {
	f, resolved, err := a.resolveFile(name)
	if err != nil {
		return nil, err
	}
	data, err := a.readFileEntry(f, resolved)
	if err != nil {
		return nil, err
	}
	if verify && f.Integrity != nil {
		if err := f.Integrity.Verify(resolved, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// resolveFile walks name component by component, following symlinks
// relative to their own directory, and returns the file entry plus the
// tree path it finally resolved to.
func (a *Archive) resolveFile(name string) (*File, string, error) {
	parts, err := splitArchivePath(name)
	if err != nil {
		return nil, "", err
	}

	hops := 0
	followed := false
walk:
	for {
		cur := a.tree.Root
		var walked []string
		for i, part := range parts {
			child, ok := cur.Child(part)
			if !ok {
				if followed {
					return nil, "", fmt.Errorf("%w: %s resolves through a missing entry", ErrBrokenSymlink, name)
				}
				return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			last := i == len(parts)-1

			switch c := child.(type) {
			case *Directory:
				if last {
					return nil, "", fmt.Errorf("%w: %s is a directory", ErrNotAFile, name)
				}
				cur = c
				walked = append(walked, part)
			case *File:
				if !last {
					if followed {
						return nil, "", fmt.Errorf("%w: %s resolves through a non-directory", ErrBrokenSymlink, name)
					}
					return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
				}
				return c, strings.Join(append(walked, part), "/"), nil
			case *Symlink:
				hops++
				if hops > maxSymlinkHops {
					return nil, "", fmt.Errorf("%w: %s", ErrSymlinkLoop, name)
				}
				followed = true

				// The stored target is relative to the link's directory.
				rebased := path.Join(strings.Join(walked, "/"), c.Target)
				if !last {
					rebased = path.Join(rebased, path.Join(parts[i+1:]...))
				}
				if rebased == "." || rebased == ".." || strings.HasPrefix(rebased, "../") {
					return nil, "", fmt.Errorf("%w: %s escapes the archive root", ErrBrokenSymlink, name)
				}
				parts = strings.Split(rebased, "/")
				continue walk
			}
		}
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
}

func splitArchivePath(name string) ([]string, error) {
	cleaned := path.Clean("/" + name)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return strings.Split(cleaned, "/"), nil
}

// readFileEntry fetches the raw bytes of a file entry at tree path p,
// from the data region or from the unpacked sibling directory.
func (a *Archive) readFileEntry(f *File, p string) ([]byte, error) {
	if f.Unpacked {
		return a.readUnpacked(p)
	}
	buf := make([]byte, f.Size)
	if f.Size == 0 {
		return buf, nil
	}
	if _, err := a.src.ReadAt(buf, a.tree.DataOffset+int64(f.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s from data region (offset=%d, size=%d): %w", p, f.Offset, f.Size, err)
	}
	return buf, nil
}

func (a *Archive) readUnpacked(p string) ([]byte, error) {
	dir := a.UnpackedDir()
	if dir == "" {
		return nil, fmt.Errorf("%w: %s (archive has no unpacked sibling directory)", ErrUnpackedFileMissing, p)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnpackedFileMissing, p)
	}
	if err != nil {
		return nil, fmt.Errorf("reading unpacked %s: %w", p, err)
	}
	return data, nil
}

// ConflictPolicy decides what happens when an extraction target already
// exists on disk.
type ConflictPolicy string

const (
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictSkip      ConflictPolicy = "skip"
	ConflictError     ConflictPolicy = "error"
)

// ExtractOptions configures ExtractAll. Zero value: no verification,
// one worker per CPU, overwrite on conflict, no progress reporting.
type ExtractOptions struct {
	Verify      bool
	Concurrency int
	OnConflict  ConflictPolicy

	// Progress, when set, is called after each file is written. It may be
	// called from multiple goroutines.
	Progress func(done, total int, path string)
}

// ExtractAll writes the whole tree under dest. Directories and symlinks
// are created serially in walk order so every parent exists before its
// contents; file bytes are then written in parallel, each read at its
// own offset. The first failure aborts the operation and reports the
// failing path; output written so far is left on disk.
func (a *Archive) ExtractAll(ctx context.Context, dest string, opts ExtractOptions) error {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictOverwrite
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	type fileJob struct {
		path string
		file *File
	}
	var jobs []fileJob

	err = a.Walk(func(p string, e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := destPath(root, p)
		if err != nil {
			return err
		}
		switch n := e.(type) {
		case *Directory:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", p, err)
			}
		case *Symlink:
			if err := writeSymlink(target, n.Target, opts.OnConflict); err != nil {
				return fmt.Errorf("linking %s: %w", p, err)
			}
		case *File:
			jobs = append(jobs, fileJob{path: p, file: n})
		}
		return nil
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	var done atomic.Int64
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.extractFileTo(job.path, job.file, root, opts); err != nil {
				return fmt.Errorf("extracting %s: %w", job.path, err)
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(jobs), job.path)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *Archive) extractFileTo(p string, f *File, root string, opts ExtractOptions) error {
	target, err := destPath(root, p)
	if err != nil {
		return err
	}

	if opts.OnConflict != ConflictOverwrite {
		if _, err := os.Lstat(target); err == nil {
			if opts.OnConflict == ConflictSkip {
				slog.Debug("Skipping existing file", "path", p)
				return nil
			}
			return fmt.Errorf("%s already exists", target)
		}
	}

	data, err := a.readFileEntry(f, p)
	if err != nil {
		return err
	}
	if opts.Verify && f.Integrity != nil {
		if err := f.Integrity.Verify(p, data); err != nil {
			return err
		}
	}

	perm := os.FileMode(0o644)
	if f.Executable {
		perm = 0o755
	}
	if err := os.WriteFile(target, data, perm); err != nil {
		return err
	}
	if f.Executable {
		// WriteFile's perm only applies on create; an overwritten file
		// keeps its old mode without this.
		if err := os.Chmod(target, perm); err != nil {
			return err
		}
	}
	return nil
}

// destPath joins an archive path onto the destination root and verifies
// the result stays inside it. Entry names are already validated at
// build time; this is an independent second check.
func destPath(root, p string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(p))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, p)
	}
	return target, nil
}

func writeSymlink(target, linkTarget string, policy ConflictPolicy) error {
	err := os.Symlink(filepath.FromSlash(linkTarget), target)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return err
	}
	switch policy {
	case ConflictSkip:
		return nil
	case ConflictError:
		return err
	}
	if err := os.Remove(target); err != nil {
		return err
	}
	return os.Symlink(filepath.FromSlash(linkTarget), target)
}
